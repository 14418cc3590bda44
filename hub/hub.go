package hub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultTimeout bounds Request waits when neither the message nor the
	// hub config carries one.
	DefaultTimeout = 5 * time.Minute

	// DefaultConsensusTimeout bounds consensus rounds without an explicit
	// timeout.
	DefaultConsensusTimeout = 60 * time.Second
)

// Handler is the callback an agent may register to be invoked on delivery.
// Handlers run asynchronously on the hub's lifecycle context; a returned
// error or a panic is logged with agent context and never reaches the
// sender. Handlers should not block longer than a few seconds.
type Handler func(ctx context.Context, msg *Message) error

// Config carries the knobs for one hub instance.
type Config struct {
	// Name identifies the hub in logs and spans.
	Name string

	// DefaultTimeout applies to Request calls whose message has no timeout.
	DefaultTimeout time.Duration

	// SupervisorRoles are the agent types Escalate routes to, in order of
	// preference. Defaults to ceo, supervisor.
	SupervisorRoles []string

	// Logger receives hub lifecycle and delivery logs. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Name:            "commhub",
		DefaultTimeout:  DefaultTimeout,
		SupervisorRoles: []string{"ceo", "supervisor"},
	}
}

// queuedMessage wraps a delivered message with its per-recipient read state.
type queuedMessage struct {
	msg  *Message
	read bool
}

// Hub is the single source of truth for agent profiles, message queues,
// conversations, and handoffs. One instance owns all of that state for its
// lifetime; all mutation goes through its methods, which serialize access
// with internal locks. Construct with New and pass by reference — there is
// no package-level instance.
type Hub struct {
	name            string
	defaultTimeout  time.Duration
	supervisorRoles []string
	logger          *slog.Logger

	mu            sync.RWMutex
	agents        map[string]*AgentProfile
	handlers      map[string]Handler
	order         []string // registration order, for deterministic iteration
	queues        map[string][]*queuedMessage
	history       []*Message
	conversations map[string]*Conversation
	handoffs      map[string]*Handoff

	pendingMu sync.Mutex
	pending   map[string]chan *Message

	events  *EventBus
	metrics *hubMetrics
	tracing *tracing

	handlerWG sync.WaitGroup
	closed    atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a hub bound to ctx. Cancelling ctx stops handler dispatch;
// Shutdown does the same and additionally waits for in-flight handlers.
func New(ctx context.Context, cfg Config) (*Hub, error) {
	if cfg.Name == "" {
		cfg.Name = "commhub"
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if len(cfg.SupervisorRoles) == 0 {
		cfg.SupervisorRoles = []string{"ceo", "supervisor"}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	metrics, err := newHubMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hub metrics: %w", err)
	}

	hubCtx, cancel := context.WithCancel(ctx)

	h := &Hub{
		name:            cfg.Name,
		defaultTimeout:  cfg.DefaultTimeout,
		supervisorRoles: cfg.SupervisorRoles,
		logger:          cfg.Logger,
		agents:          make(map[string]*AgentProfile),
		handlers:        make(map[string]Handler),
		queues:          make(map[string][]*queuedMessage),
		conversations:   make(map[string]*Conversation),
		handoffs:        make(map[string]*Handoff),
		pending:         make(map[string]chan *Message),
		metrics:         metrics,
		tracing:         newTracing(cfg.Name),
		ctx:             hubCtx,
		cancel:          cancel,
	}
	h.events = newEventBus(cfg.Logger, metrics)

	return h, nil
}

// Name returns the hub's configured name.
func (h *Hub) Name() string {
	return h.name
}

// Events exposes the hub's event bus for external observers.
func (h *Hub) Events() *EventBus {
	return h.events
}

// Shutdown stops intake, cancels handler dispatch, and waits up to timeout
// for in-flight handlers to drain.
func (h *Hub) Shutdown(timeout time.Duration) error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	h.logger.Info("shutting down hub", slog.String("hub", h.name))
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.handlerWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("hub shutdown timed out after %v", timeout)
	}
}

func (h *Hub) checkOpen() error {
	if h.closed.Load() {
		return ErrHubClosed
	}
	return nil
}

// prepare fills message defaults the builder may not have set when callers
// hand-construct messages.
func (h *Hub) prepare(msg *Message) {
	if msg.ID == "" {
		msg.ID = generateID()
	}
	if msg.Type == "" {
		msg.Type = MessageTypeInform
	}
	if msg.Priority == "" {
		msg.Priority = PriorityNormal
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Timeout <= 0 {
		msg.Timeout = h.defaultTimeout
	}
}
