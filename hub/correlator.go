package hub

import (
	"context"
	"time"
)

// Request sends a response-required message and blocks until a reply
// arrives, the message timeout elapses, or ctx is cancelled. A timeout is
// not an error: the call returns (nil, nil) so callers can distinguish "no
// answer" from a failed call. The pending correlation entry is always
// released before returning, so a timed-out id never blocks a later
// request.
func (h *Hub) Request(ctx context.Context, msg *Message) (*Message, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	h.prepare(msg)
	msg.RequiresResponse = true
	if msg.Type == MessageTypeInform {
		msg.Type = MessageTypeRequest
	}

	ctx, span := h.tracing.startSpan(ctx, "hub.request", messageAttributes(msg)...)
	defer span.End()

	replyCh := h.openPending(msg.ID)
	defer h.closePending(msg.ID)

	start := time.Now()
	h.record(ctx, msg)
	h.deliver(ctx, msg)

	select {
	case reply := <-replyCh:
		h.metrics.recordRoundTrip(ctx, time.Since(start))
		return reply, nil
	case <-time.After(msg.Timeout):
		return nil, nil
	case <-ctx.Done():
		h.tracing.recordError(span, ctx.Err())
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, ErrHubClosed
	}
}

// Reply builds a response to an earlier message, resolves the pending
// request future for that message if one is still open, and always routes
// the response through normal delivery so the original sender's queue
// reflects it even when no one is blocked waiting. A second reply to the
// same message is a late reply: it is delivered but never re-resolves an
// already-resolved future.
func (h *Hub) Reply(ctx context.Context, original *Message, sender string, content map[string]any) (*Message, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}

	reply := NewResponse(sender, original.From, original.ID, content).Build()
	h.prepare(reply)

	ctx, span := h.tracing.startSpan(ctx, "hub.reply", messageAttributes(reply)...)
	defer span.End()

	h.resolvePending(original.ID, reply)

	h.record(ctx, reply)
	h.deliver(ctx, reply)
	return reply, nil
}

// openPending registers a buffered future for the message id. At most one
// future exists per id.
func (h *Hub) openPending(id string) chan *Message {
	ch := make(chan *Message, 1)
	h.pendingMu.Lock()
	h.pending[id] = ch
	h.pendingMu.Unlock()
	return ch
}

func (h *Hub) closePending(id string) {
	h.pendingMu.Lock()
	delete(h.pending, id)
	h.pendingMu.Unlock()
}

// resolvePending hands the reply to the waiting future, if any. The
// non-blocking send means a future already resolved (or abandoned between
// lookup and send) is simply skipped.
func (h *Hub) resolvePending(id string, reply *Message) {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()

	if ch, ok := h.pending[id]; ok {
		select {
		case ch <- reply:
		default:
		}
	}
}
