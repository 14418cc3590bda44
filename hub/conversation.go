package hub

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"
)

// StartConversation opens a named multi-party thread. Participants do not
// need to be registered yet; delivery to them queues like any other
// message.
func (h *Hub) StartConversation(ctx context.Context, participants []string, topic string) (*Conversation, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if len(participants) < 2 {
		return nil, fmt.Errorf("conversation needs at least two participants, got %d", len(participants))
	}

	conv := &Conversation{
		ID:           generateID(),
		Participants: slices.Clone(participants),
		Messages:     []*Message{},
		Topic:        topic,
		StartedAt:    time.Now(),
	}

	h.mu.Lock()
	h.conversations[conv.ID] = conv
	h.mu.Unlock()

	h.logger.InfoContext(ctx, "conversation started",
		slog.String("hub", h.name),
		slog.String("conversation_id", conv.ID),
		slog.String("topic", topic),
		slog.Int("participants", len(participants)),
	)
	h.emit(EventConversationStarted, map[string]any{
		"conversation_id": conv.ID,
		"topic":           topic,
		"participants":    slices.Clone(participants),
	})

	return conv.clone(), nil
}

// AddToConversation appends a message from sender to the conversation and
// delivers a distinct copy to every other participant. Each copy carries a
// fresh id and the conversation id in its metadata. Messages to an ended
// conversation fail with ErrConversationEnded.
func (h *Hub) AddToConversation(ctx context.Context, convID, sender string, content map[string]any) (*Message, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}

	msg := NewMessage(sender, convID, content).
		Metadata(MetadataConversationID, convID).
		Build()
	h.prepare(msg)

	ctx, span := h.tracing.startSpan(ctx, "hub.conversation_message", messageAttributes(msg)...)
	defer span.End()

	h.mu.Lock()
	conv, exists := h.conversations[convID]
	if !exists {
		h.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrConversationNotFound, convID)
		h.tracing.recordError(span, err)
		return nil, err
	}
	if conv.Ended() {
		h.mu.Unlock()
		err := fmt.Errorf("%w: %s", ErrConversationEnded, convID)
		h.tracing.recordError(span, err)
		return nil, err
	}
	conv.Messages = append(conv.Messages, msg)
	h.history = append(h.history, msg)
	recipients := make([]string, 0, len(conv.Participants))
	for _, id := range conv.Participants {
		if id != sender {
			recipients = append(recipients, id)
		}
	}
	h.mu.Unlock()

	h.metrics.recordSent(ctx, msg)

	for _, id := range recipients {
		dup := msg.Clone()
		dup.ID = generateID()
		dup.To = id
		h.deliver(ctx, dup)
	}

	return msg, nil
}

// GetConversation returns a copy of the conversation record, including its
// message log.
func (h *Hub) GetConversation(id string) (*Conversation, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conv, exists := h.conversations[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	return conv.clone(), nil
}

// EndConversation terminates the thread with an optional outcome. The
// record stays retrievable; only further AddToConversation calls are
// refused. Ending an already-ended conversation just restates the stored
// record.
func (h *Hub) EndConversation(ctx context.Context, convID string, outcome map[string]any) (*Conversation, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	conv, exists := h.conversations[convID]
	if !exists {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, convID)
	}
	alreadyEnded := conv.Ended()
	if !alreadyEnded {
		conv.EndedAt = time.Now()
		conv.Outcome = maps.Clone(outcome)
	}
	snapshot := conv.clone()
	h.mu.Unlock()

	if alreadyEnded {
		return snapshot, nil
	}

	h.logger.InfoContext(ctx, "conversation ended",
		slog.String("hub", h.name),
		slog.String("conversation_id", convID),
		slog.Int("messages", len(snapshot.Messages)),
	)
	h.emit(EventConversationEnded, map[string]any{
		"conversation_id": convID,
		"topic":           snapshot.Topic,
		"messages":        len(snapshot.Messages),
	})

	return snapshot, nil
}
