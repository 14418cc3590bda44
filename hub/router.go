package hub

import (
	"context"
	"log/slog"
)

// Send routes a message built with NewMessage (or hand-constructed; missing
// fields get defaults). The message is appended to the global history and
// then either delivered directly or, when the recipient is the Broadcast
// sentinel, fanned out as one distinct copy per other registered agent.
// Each broadcast copy carries a fresh id and records the original id under
// the broadcast_id metadata key. The returned message is the original, with
// id and timestamp populated.
//
// Delivery is fire-and-forget from the sender's perspective: once enqueued,
// handler failures are logged and never surface here. Messages to ids that
// are not (yet) registered are still enqueued so the recipient can pick
// them up after registering.
func (h *Hub) Send(ctx context.Context, msg *Message) (*Message, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	h.prepare(msg)

	ctx, span := h.tracing.startSpan(ctx, "hub.send", messageAttributes(msg)...)
	defer span.End()

	h.record(ctx, msg)

	if msg.IsBroadcast() {
		h.fanOut(ctx, msg)
		return msg, nil
	}

	h.deliver(ctx, msg)
	return msg, nil
}

// record appends to the global history and bumps the sent counter.
func (h *Hub) record(ctx context.Context, msg *Message) {
	h.mu.Lock()
	h.history = append(h.history, msg)
	h.mu.Unlock()
	h.metrics.recordSent(ctx, msg)
}

// fanOut delivers one clone per registered agent other than the sender.
// Fan-out order follows registration order; cross-recipient ordering is
// otherwise unspecified.
func (h *Hub) fanOut(ctx context.Context, msg *Message) {
	h.mu.RLock()
	recipients := make([]string, 0, len(h.order))
	for _, id := range h.order {
		if id != msg.From {
			recipients = append(recipients, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range recipients {
		dup := msg.Clone()
		dup.ID = generateID()
		dup.To = id
		if dup.Metadata == nil {
			dup.Metadata = make(map[string]any)
		}
		dup.Metadata[MetadataBroadcastID] = msg.ID
		h.deliver(ctx, dup)
	}

	h.logger.DebugContext(ctx, "broadcast fanned out",
		slog.String("hub", h.name),
		slog.String("message_id", msg.ID),
		slog.String("from", msg.From),
		slog.Int("recipients", len(recipients)),
	)
}

// deliver appends the message FIFO to the recipient's queue (creating the
// queue for unknown recipients) and dispatches the recipient's handler, if
// any, asynchronously.
func (h *Hub) deliver(ctx context.Context, msg *Message) {
	h.mu.Lock()
	h.queues[msg.To] = append(h.queues[msg.To], &queuedMessage{msg: msg})
	handler := h.handlers[msg.To]
	h.mu.Unlock()

	h.metrics.recordDelivered(ctx, msg)
	h.emit(EventMessageDelivered, map[string]any{
		"message_id":   msg.ID,
		"message_type": string(msg.Type),
		"from":         msg.From,
		"to":           msg.To,
	})

	if handler != nil {
		h.handlerWG.Add(1)
		go h.dispatch(msg.To, handler, msg)
	}
}

// dispatch runs one handler invocation on the hub's lifecycle context.
// Errors and panics are logged with agent context and never propagate; the
// delivery bookkeeping has already completed by the time the handler runs.
func (h *Hub) dispatch(agentID string, handler Handler, msg *Message) {
	defer h.handlerWG.Done()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("agent handler panicked",
				slog.String("hub", h.name),
				slog.String("agent_id", agentID),
				slog.String("message_id", msg.ID),
				slog.Any("panic", r),
			)
			h.metrics.recordHandlerError(h.ctx, agentID, "panic")
		}
	}()

	if err := handler(h.ctx, msg); err != nil {
		h.logger.ErrorContext(h.ctx, "agent handler failed",
			slog.String("hub", h.name),
			slog.String("agent_id", agentID),
			slog.String("message_id", msg.ID),
			slog.String("error", err.Error()),
		)
		h.metrics.recordHandlerError(h.ctx, agentID, "handler_error")
	}
}

// Messages returns the agent's queue in delivery order. With unreadOnly set
// it returns only messages not yet picked up and marks them read; with it
// unset the full queue is returned and read state is untouched.
func (h *Hub) Messages(agentID string, unreadOnly bool) []*Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	queue := h.queues[agentID]
	msgs := make([]*Message, 0, len(queue))
	for _, qm := range queue {
		if unreadOnly {
			if qm.read {
				continue
			}
			qm.read = true
		}
		msgs = append(msgs, qm.msg)
	}
	return msgs
}

// History returns the global send history. Messages are never removed from
// history for the lifetime of the hub.
func (h *Hub) History() []*Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	history := make([]*Message, len(h.history))
	copy(history, h.history)
	return history
}
