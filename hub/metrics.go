package hub

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/agentcomm/commhub/hub"

// MetricsSnapshot is the point-in-time view of hub-wide counters exposed to
// external dashboards. All counters are monotonic for the lifetime of the
// hub instance and reset only when a new hub is constructed.
type MetricsSnapshot struct {
	AgentsRegistered    int            `json:"agents_registered"`
	MessagesSent        int64          `json:"messages_sent"`
	MessagesDelivered   int64          `json:"messages_delivered"`
	HandoffsCompleted   int64          `json:"handoffs_completed"`
	EventsEmitted       int64          `json:"events_emitted"`
	PendingRequests     int            `json:"pending_requests"`
	ActiveConversations int            `json:"active_conversations"`
	QueueDepths         map[string]int `json:"queue_depths"`
	AverageResponseTime time.Duration  `json:"average_response_time"`
}

// hubMetrics pairs atomic snapshot counters with OpenTelemetry instruments.
// The atomics back Metrics(); the instruments feed the Prometheus exporter.
type hubMetrics struct {
	messagesSent      atomic.Int64
	messagesDelivered atomic.Int64
	handoffsCompleted atomic.Int64
	eventsEmitted     atomic.Int64

	responseCount      atomic.Int64
	responseTotalNanos atomic.Int64

	sentCounter       metric.Int64Counter
	deliveredCounter  metric.Int64Counter
	handoffCounter    metric.Int64Counter
	handlerErrCounter metric.Int64Counter
	roundTripSeconds  metric.Float64Histogram
}

func newHubMetrics() (*hubMetrics, error) {
	meter := otel.Meter(meterName)
	m := &hubMetrics{}

	var err error
	m.sentCounter, err = meter.Int64Counter(
		"hub_messages_sent_total",
		metric.WithDescription("Total number of messages accepted for routing"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.deliveredCounter, err = meter.Int64Counter(
		"hub_messages_delivered_total",
		metric.WithDescription("Total number of messages enqueued to recipient queues"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.handoffCounter, err = meter.Int64Counter(
		"hub_handoffs_total",
		metric.WithDescription("Total number of handoff lifecycle transitions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.handlerErrCounter, err = meter.Int64Counter(
		"hub_handler_errors_total",
		metric.WithDescription("Total number of agent handler errors and panics"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.roundTripSeconds, err = meter.Float64Histogram(
		"hub_request_roundtrip_seconds",
		metric.WithDescription("Request to response round-trip duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *hubMetrics) recordSent(ctx context.Context, msg *Message) {
	m.messagesSent.Add(1)
	m.sentCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message_type", string(msg.Type)),
		attribute.String("priority", string(msg.Priority)),
	))
}

func (m *hubMetrics) recordDelivered(ctx context.Context, msg *Message) {
	m.messagesDelivered.Add(1)
	m.deliveredCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message_type", string(msg.Type)),
	))
}

func (m *hubMetrics) recordHandoff(ctx context.Context, status HandoffStatus) {
	if status == HandoffCompleted {
		m.handoffsCompleted.Add(1)
	}
	m.handoffCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
	))
}

func (m *hubMetrics) recordHandlerError(ctx context.Context, agentID, kind string) {
	m.handlerErrCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent_id", agentID),
		attribute.String("error", kind),
	))
}

func (m *hubMetrics) recordRoundTrip(ctx context.Context, d time.Duration) {
	m.responseCount.Add(1)
	m.responseTotalNanos.Add(d.Nanoseconds())
	m.roundTripSeconds.Record(ctx, d.Seconds())
}

func (m *hubMetrics) recordEvent() {
	m.eventsEmitted.Add(1)
}

func (m *hubMetrics) averageResponseTime() time.Duration {
	count := m.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(m.responseTotalNanos.Load() / count)
}

// Metrics returns a snapshot of hub-wide counters and per-agent queue
// depths (unread messages awaiting pickup).
func (h *Hub) Metrics() MetricsSnapshot {
	h.mu.RLock()
	depths := make(map[string]int, len(h.queues))
	for agentID, queue := range h.queues {
		unread := 0
		for _, qm := range queue {
			if !qm.read {
				unread++
			}
		}
		depths[agentID] = unread
	}
	agents := len(h.agents)
	active := 0
	for _, conv := range h.conversations {
		if !conv.Ended() {
			active++
		}
	}
	h.mu.RUnlock()

	h.pendingMu.Lock()
	pendingCount := len(h.pending)
	h.pendingMu.Unlock()

	return MetricsSnapshot{
		AgentsRegistered:    agents,
		MessagesSent:        h.metrics.messagesSent.Load(),
		MessagesDelivered:   h.metrics.messagesDelivered.Load(),
		HandoffsCompleted:   h.metrics.handoffsCompleted.Load(),
		EventsEmitted:       h.metrics.eventsEmitted.Load(),
		PendingRequests:     pendingCount,
		ActiveConversations: active,
		QueueDepths:         depths,
		AverageResponseTime: h.metrics.averageResponseTime(),
	}
}
