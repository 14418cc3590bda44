package hub

import (
	"log/slog"
	"sync"
	"time"
)

// EventType names a hub-internal lifecycle event.
type EventType string

const (
	EventAgentRegistered     EventType = "agent_registered"
	EventAgentUnregistered   EventType = "agent_unregistered"
	EventMessageDelivered    EventType = "message_delivered"
	EventHandoffDelegated    EventType = "handoff_delegated"
	EventHandoffAccepted     EventType = "handoff_accepted"
	EventHandoffRejected     EventType = "handoff_rejected"
	EventHandoffCompleted    EventType = "handoff_completed"
	EventConversationStarted EventType = "conversation_started"
	EventConversationEnded   EventType = "conversation_ended"
	EventConsensusReached    EventType = "consensus_reached"
)

// Event is a hub lifecycle notification delivered to subscribers.
type Event struct {
	Type EventType      `json:"type"`
	Time time.Time      `json:"time"`
	Data map[string]any `json:"data,omitempty"`
}

// EventBus fans hub lifecycle events out to subscribers synchronously. A
// panicking subscriber is recovered and logged so one bad observer cannot
// break hub operation.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[EventType]map[int]func(Event)
	nextID  int
	logger  *slog.Logger
	metrics *hubMetrics
}

// Subscription identifies one registered callback. Go functions are not
// comparable, so unsubscription goes through the handle instead of the
// callback value.
type Subscription struct {
	bus       *EventBus
	eventType EventType
	id        int
}

// Unsubscribe removes the callback. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if subs, ok := s.bus.subs[s.eventType]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(s.bus.subs, s.eventType)
		}
	}
}

func newEventBus(logger *slog.Logger, metrics *hubMetrics) *EventBus {
	return &EventBus{
		subs:    make(map[EventType]map[int]func(Event)),
		logger:  logger,
		metrics: metrics,
	}
}

// Subscribe registers a callback for one event type and returns the handle
// used to remove it.
func (b *EventBus) Subscribe(eventType EventType, fn func(Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[int]func(Event))
	}
	b.nextID++
	b.subs[eventType][b.nextID] = fn

	return &Subscription{bus: b, eventType: eventType, id: b.nextID}
}

// publish invokes every subscriber for the event's type synchronously.
func (b *EventBus) publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()
	callbacks := make([]func(Event), 0, len(b.subs[event.Type]))
	for _, fn := range b.subs[event.Type] {
		callbacks = append(callbacks, fn)
	}
	b.mu.RUnlock()

	b.metrics.recordEvent()

	for _, fn := range callbacks {
		b.invoke(event, fn)
	}
}

func (b *EventBus) invoke(event Event, fn func(Event)) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				slog.String("event_type", string(event.Type)),
				slog.Any("panic", r),
			)
		}
	}()
	fn(event)
}

// emit is the hub-side publishing helper.
func (h *Hub) emit(eventType EventType, data map[string]any) {
	h.events.publish(Event{Type: eventType, Time: time.Now(), Data: data})
}
