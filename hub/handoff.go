package hub

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"
)

// HandoffSpec describes a task to delegate.
type HandoffSpec struct {
	From         string
	To           string
	Description  string
	Context      map[string]any
	Artifacts    []string
	Instructions string
	Deadline     time.Time
}

func (s HandoffSpec) validate() error {
	if s.From == "" {
		return fmt.Errorf("handoff from_agent must not be empty")
	}
	if s.To == "" {
		return fmt.Errorf("handoff to_agent must not be empty")
	}
	if s.Description == "" {
		return fmt.Errorf("handoff description must not be empty")
	}
	return nil
}

// DelegateTask creates a pending handoff and notifies the target agent with
// a high-priority delegate message that requires a response. The target
// answers by calling AcceptHandoff or RejectHandoff.
func (h *Hub) DelegateTask(ctx context.Context, spec HandoffSpec) (*Handoff, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	handoff := &Handoff{
		ID:           generateID(),
		Description:  spec.Description,
		From:         spec.From,
		To:           spec.To,
		Context:      maps.Clone(spec.Context),
		Artifacts:    slices.Clone(spec.Artifacts),
		Instructions: spec.Instructions,
		Deadline:     spec.Deadline,
		Status:       HandoffPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ctx, span := h.tracing.startSpan(ctx, "hub.delegate_task", handoffAttributes(handoff)...)
	defer span.End()

	h.mu.Lock()
	h.handoffs[handoff.ID] = handoff
	h.mu.Unlock()

	content := map[string]any{
		"handoff_id":  handoff.ID,
		"description": handoff.Description,
	}
	if handoff.Instructions != "" {
		content["instructions"] = handoff.Instructions
	}
	if len(handoff.Context) > 0 {
		content["context"] = handoff.Context
	}
	if len(handoff.Artifacts) > 0 {
		content["artifacts"] = handoff.Artifacts
	}
	if !handoff.Deadline.IsZero() {
		content["deadline"] = handoff.Deadline
	}

	msg := NewMessage(spec.From, spec.To, content).
		Type(MessageTypeDelegate).
		Priority(PriorityHigh).
		RequiresResponse(true).
		Build()
	if _, err := h.Send(ctx, msg); err != nil {
		h.tracing.recordError(span, err)
		return nil, err
	}

	h.metrics.recordHandoff(ctx, HandoffPending)
	h.logger.InfoContext(ctx, "task delegated",
		slog.String("hub", h.name),
		slog.String("handoff_id", handoff.ID),
		slog.String("from", spec.From),
		slog.String("to", spec.To),
	)
	h.emit(EventHandoffDelegated, map[string]any{
		"handoff_id": handoff.ID,
		"from":       spec.From,
		"to":         spec.To,
	})

	return handoff.clone(), nil
}

// GetHandoff returns a copy of the handoff record.
func (h *Hub) GetHandoff(id string) (*Handoff, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	handoff, exists := h.handoffs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrHandoffNotFound, id)
	}
	return handoff.clone(), nil
}

// AcceptHandoff transitions a pending handoff to accepted. Only the agent
// the handoff is addressed to may accept; the accepting agent is marked
// busy with the handoff's description as its current task, and the
// delegating agent is informed.
func (h *Hub) AcceptHandoff(ctx context.Context, handoffID, agentID string) (*Handoff, error) {
	handoff, err := h.transition(handoffID, agentID, HandoffPending, func(ho *Handoff, profile *AgentProfile) {
		ho.Status = HandoffAccepted
		if profile != nil {
			profile.Status = StatusBusy
			profile.CurrentTask = ho.Description
		}
	})
	if err != nil {
		return nil, err
	}

	ctx, span := h.tracing.startSpan(ctx, "hub.accept_handoff", handoffAttributes(handoff)...)
	defer span.End()

	msg := NewMessage(agentID, handoff.From, map[string]any{
		"handoff_id": handoff.ID,
		"status":     string(HandoffAccepted),
	}).Build()
	if _, err := h.Send(ctx, msg); err != nil {
		h.tracing.recordError(span, err)
		return nil, err
	}

	h.metrics.recordHandoff(ctx, HandoffAccepted)
	h.emit(EventHandoffAccepted, map[string]any{
		"handoff_id": handoff.ID,
		"agent_id":   agentID,
	})

	return handoff, nil
}

// CompleteHandoff transitions an accepted handoff to completed, stores the
// result, frees the completing agent (idle, no current task), and sends the
// result back to the delegating agent with high priority. Completion is not
// re-enterable: a handoff that is already terminal fails with
// ErrHandoffTerminal.
func (h *Hub) CompleteHandoff(ctx context.Context, handoffID, agentID string, result map[string]any) (*Handoff, error) {
	handoff, err := h.transition(handoffID, agentID, HandoffAccepted, func(ho *Handoff, profile *AgentProfile) {
		ho.Status = HandoffCompleted
		ho.Result = maps.Clone(result)
		if profile != nil {
			profile.Status = StatusIdle
			profile.CurrentTask = ""
		}
	})
	if err != nil {
		return nil, err
	}

	ctx, span := h.tracing.startSpan(ctx, "hub.complete_handoff", handoffAttributes(handoff)...)
	defer span.End()

	msg := NewMessage(agentID, handoff.From, map[string]any{
		"handoff_id": handoff.ID,
		"status":     string(HandoffCompleted),
		"result":     handoff.Result,
	}).Priority(PriorityHigh).Build()
	if _, err := h.Send(ctx, msg); err != nil {
		h.tracing.recordError(span, err)
		return nil, err
	}

	h.metrics.recordHandoff(ctx, HandoffCompleted)
	h.logger.InfoContext(ctx, "handoff completed",
		slog.String("hub", h.name),
		slog.String("handoff_id", handoff.ID),
		slog.String("agent_id", agentID),
	)
	h.emit(EventHandoffCompleted, map[string]any{
		"handoff_id": handoff.ID,
		"agent_id":   agentID,
	})

	return handoff, nil
}

// RejectHandoff transitions a pending handoff to rejected and informs the
// delegating agent with the reason. The rejecting agent's profile is left
// untouched — it was never marked busy.
func (h *Hub) RejectHandoff(ctx context.Context, handoffID, agentID, reason string) (*Handoff, error) {
	handoff, err := h.transition(handoffID, agentID, HandoffPending, func(ho *Handoff, profile *AgentProfile) {
		ho.Status = HandoffRejected
		ho.Reason = reason
	})
	if err != nil {
		return nil, err
	}

	ctx, span := h.tracing.startSpan(ctx, "hub.reject_handoff", handoffAttributes(handoff)...)
	defer span.End()

	msg := NewMessage(agentID, handoff.From, map[string]any{
		"handoff_id": handoff.ID,
		"status":     string(HandoffRejected),
		"reason":     reason,
	}).Build()
	if _, err := h.Send(ctx, msg); err != nil {
		h.tracing.recordError(span, err)
		return nil, err
	}

	h.metrics.recordHandoff(ctx, HandoffRejected)
	h.emit(EventHandoffRejected, map[string]any{
		"handoff_id": handoff.ID,
		"agent_id":   agentID,
		"reason":     reason,
	})

	return handoff, nil
}

// transition applies one guarded handoff state change. The authorization
// and state checks happen before any mutation, so a failed call leaves both
// the handoff and the agent profile untouched.
func (h *Hub) transition(handoffID, agentID string, requiredStatus HandoffStatus, apply func(*Handoff, *AgentProfile)) (*Handoff, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	handoff, exists := h.handoffs[handoffID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrHandoffNotFound, handoffID)
	}
	if handoff.To != agentID {
		return nil, fmt.Errorf("%w: handoff %s is addressed to %s, not %s",
			ErrNotAuthorized, handoffID, handoff.To, agentID)
	}
	if handoff.Status != requiredStatus {
		return nil, fmt.Errorf("%w: handoff %s is %s, expected %s",
			ErrHandoffTerminal, handoffID, handoff.Status, requiredStatus)
	}

	apply(handoff, h.agents[agentID])
	handoff.UpdatedAt = time.Now()

	return handoff.clone(), nil
}

// Escalate raises a task that needs supervisor attention. Agents whose type
// matches one of the configured supervisor roles are candidates; the first
// registered one wins (an arbitrary tie-break, not a quality-of-service
// choice). With no supervisor registered the escalation is broadcast with
// needs_help set so any agent can pick it up.
func (h *Hub) Escalate(ctx context.Context, from, description, reason string, extra map[string]any) (*Message, error) {
	if err := h.checkOpen(); err != nil {
		return nil, err
	}

	content := map[string]any{
		"description": description,
		"reason":      reason,
	}
	for k, v := range extra {
		content[k] = v
	}

	var supervisor string
	h.mu.RLock()
	for _, id := range h.order {
		profile, ok := h.agents[id]
		if !ok || id == from {
			continue
		}
		if slices.Contains(h.supervisorRoles, profile.Type) {
			supervisor = id
			break
		}
	}
	h.mu.RUnlock()

	if supervisor == "" {
		content["needs_help"] = true
		msg := NewMessage(from, Broadcast, content).
			Type(MessageTypeEscalate).
			Priority(PriorityUrgent).
			Build()
		return h.Send(ctx, msg)
	}

	msg := NewMessage(from, supervisor, content).
		Type(MessageTypeEscalate).
		Priority(PriorityUrgent).
		RequiresResponse(true).
		Build()
	return h.Send(ctx, msg)
}
