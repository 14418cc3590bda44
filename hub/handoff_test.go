package hub

import (
	"context"
	"errors"
	"testing"
	"time"
)

func delegateTestTask(t *testing.T, h *Hub) *Handoff {
	t.Helper()

	for _, id := range []string{"planner", "coder"} {
		if _, err := h.RegisterAgent(id, id, id, nil, nil); err != nil {
			t.Fatalf("RegisterAgent(%s) error = %v", id, err)
		}
	}

	handoff, err := h.DelegateTask(context.Background(), HandoffSpec{
		From:         "planner",
		To:           "coder",
		Description:  "implement the parser",
		Instructions: "follow the grammar in docs/grammar.md",
		Context:      map[string]any{"branch": "feature/parser"},
	})
	if err != nil {
		t.Fatalf("DelegateTask() error = %v", err)
	}
	return handoff
}

func TestDelegateTask(t *testing.T) {
	h := newTestHub(t)
	handoff := delegateTestTask(t, h)

	if handoff.Status != HandoffPending {
		t.Errorf("Status = %v, want %v", handoff.Status, HandoffPending)
	}

	// The target was notified with a high-priority delegate message.
	got := h.Messages("coder", false)
	if len(got) != 1 {
		t.Fatalf("coder queue = %d messages, want 1", len(got))
	}
	msg := got[0]
	if msg.Type != MessageTypeDelegate {
		t.Errorf("notification Type = %v, want %v", msg.Type, MessageTypeDelegate)
	}
	if msg.Priority != PriorityHigh {
		t.Errorf("notification Priority = %v, want %v", msg.Priority, PriorityHigh)
	}
	if !msg.RequiresResponse {
		t.Error("notification RequiresResponse = false, want true")
	}
	if msg.Content["handoff_id"] != handoff.ID {
		t.Errorf("notification handoff_id = %v, want %s", msg.Content["handoff_id"], handoff.ID)
	}
}

func TestDelegateTaskValidation(t *testing.T) {
	h := newTestHub(t)

	tests := []struct {
		name string
		spec HandoffSpec
	}{
		{"missing from", HandoffSpec{To: "coder", Description: "x"}},
		{"missing to", HandoffSpec{From: "planner", Description: "x"}},
		{"missing description", HandoffSpec{From: "planner", To: "coder"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.DelegateTask(context.Background(), tt.spec); err == nil {
				t.Error("DelegateTask() error = nil, want validation error")
			}
		})
	}
}

func TestAcceptHandoff(t *testing.T) {
	h := newTestHub(t)
	handoff := delegateTestTask(t, h)
	ctx := context.Background()

	accepted, err := h.AcceptHandoff(ctx, handoff.ID, "coder")
	if err != nil {
		t.Fatalf("AcceptHandoff() error = %v", err)
	}
	if accepted.Status != HandoffAccepted {
		t.Errorf("Status = %v, want %v", accepted.Status, HandoffAccepted)
	}

	// The accepting agent is now busy on the task.
	profile, _ := h.GetAgent("coder")
	if profile.Status != StatusBusy {
		t.Errorf("agent Status = %v, want %v", profile.Status, StatusBusy)
	}
	if profile.CurrentTask != "implement the parser" {
		t.Errorf("CurrentTask = %q, want the handoff description", profile.CurrentTask)
	}

	// The delegator was informed.
	informs := h.Messages("planner", false)
	if len(informs) != 1 {
		t.Fatalf("planner queue = %d messages, want 1", len(informs))
	}
	if informs[0].Content["status"] != string(HandoffAccepted) {
		t.Errorf("inform status = %v, want %s", informs[0].Content["status"], HandoffAccepted)
	}
}

func TestHandoffAuthorization(t *testing.T) {
	h := newTestHub(t)
	handoff := delegateTestTask(t, h)
	ctx := context.Background()

	if _, err := h.RegisterAgent("impostor", "Impostor", "coder", nil, nil); err != nil {
		t.Fatalf("RegisterAgent() error = %v", err)
	}

	if _, err := h.AcceptHandoff(ctx, handoff.ID, "impostor"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("AcceptHandoff() by wrong agent error = %v, want ErrNotAuthorized", err)
	}

	// Nothing changed: the handoff is still pending and the impostor idle.
	got, _ := h.GetHandoff(handoff.ID)
	if got.Status != HandoffPending {
		t.Errorf("Status after failed accept = %v, want %v", got.Status, HandoffPending)
	}
	impostor, _ := h.GetAgent("impostor")
	if impostor.Status != StatusIdle {
		t.Errorf("impostor Status = %v, want %v", impostor.Status, StatusIdle)
	}
}

func TestCompleteHandoff(t *testing.T) {
	h := newTestHub(t)
	handoff := delegateTestTask(t, h)
	ctx := context.Background()

	if _, err := h.AcceptHandoff(ctx, handoff.ID, "coder"); err != nil {
		t.Fatalf("AcceptHandoff() error = %v", err)
	}
	h.Messages("planner", true) // drain the accept notification

	result := map[string]any{"files_changed": 3}
	completed, err := h.CompleteHandoff(ctx, handoff.ID, "coder", result)
	if err != nil {
		t.Fatalf("CompleteHandoff() error = %v", err)
	}
	if completed.Status != HandoffCompleted {
		t.Errorf("Status = %v, want %v", completed.Status, HandoffCompleted)
	}
	if completed.Result["files_changed"] != 3 {
		t.Errorf("Result = %v, want files_changed=3", completed.Result)
	}

	// The agent is free again.
	profile, _ := h.GetAgent("coder")
	if profile.Status != StatusIdle {
		t.Errorf("agent Status = %v, want %v", profile.Status, StatusIdle)
	}
	if profile.CurrentTask != "" {
		t.Errorf("CurrentTask = %q, want empty", profile.CurrentTask)
	}

	// The delegator got the result with high priority.
	informs := h.Messages("planner", true)
	if len(informs) != 1 {
		t.Fatalf("planner queue = %d messages, want 1", len(informs))
	}
	if informs[0].Priority != PriorityHigh {
		t.Errorf("result Priority = %v, want %v", informs[0].Priority, PriorityHigh)
	}

	// Completion is terminal.
	if _, err := h.CompleteHandoff(ctx, handoff.ID, "coder", nil); !errors.Is(err, ErrHandoffTerminal) {
		t.Errorf("second CompleteHandoff() error = %v, want ErrHandoffTerminal", err)
	}
}

func TestCompleteHandoffRequiresAccept(t *testing.T) {
	h := newTestHub(t)
	handoff := delegateTestTask(t, h)

	if _, err := h.CompleteHandoff(context.Background(), handoff.ID, "coder", nil); !errors.Is(err, ErrHandoffTerminal) {
		t.Errorf("CompleteHandoff() on pending handoff error = %v, want ErrHandoffTerminal", err)
	}
}

func TestRejectHandoff(t *testing.T) {
	h := newTestHub(t)
	handoff := delegateTestTask(t, h)
	ctx := context.Background()

	rejected, err := h.RejectHandoff(ctx, handoff.ID, "coder", "overloaded")
	if err != nil {
		t.Fatalf("RejectHandoff() error = %v", err)
	}
	if rejected.Status != HandoffRejected {
		t.Errorf("Status = %v, want %v", rejected.Status, HandoffRejected)
	}
	if rejected.Reason != "overloaded" {
		t.Errorf("Reason = %q, want %q", rejected.Reason, "overloaded")
	}

	// Rejecting never marks the agent busy.
	profile, _ := h.GetAgent("coder")
	if profile.Status != StatusIdle {
		t.Errorf("agent Status = %v, want %v", profile.Status, StatusIdle)
	}

	// The delegator learns the reason.
	informs := h.Messages("planner", false)
	if len(informs) != 1 {
		t.Fatalf("planner queue = %d messages, want 1", len(informs))
	}
	if informs[0].Content["reason"] != "overloaded" {
		t.Errorf("inform reason = %v, want overloaded", informs[0].Content["reason"])
	}

	// A rejected handoff cannot be accepted afterwards.
	if _, err := h.AcceptHandoff(ctx, handoff.ID, "coder"); !errors.Is(err, ErrHandoffTerminal) {
		t.Errorf("AcceptHandoff() after reject error = %v, want ErrHandoffTerminal", err)
	}
}

func TestHandoffNotFound(t *testing.T) {
	h := newTestHub(t)

	if _, err := h.AcceptHandoff(context.Background(), "no-such-id", "coder"); !errors.Is(err, ErrHandoffNotFound) {
		t.Errorf("AcceptHandoff() error = %v, want ErrHandoffNotFound", err)
	}
	if _, err := h.GetHandoff("no-such-id"); !errors.Is(err, ErrHandoffNotFound) {
		t.Errorf("GetHandoff() error = %v, want ErrHandoffNotFound", err)
	}
}

func TestEscalateToSupervisor(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	for _, a := range []struct{ id, agentType string }{
		{"worker", "worker"},
		{"boss", "supervisor"},
		{"boss2", "supervisor"},
	} {
		if _, err := h.RegisterAgent(a.id, a.id, a.agentType, nil, nil); err != nil {
			t.Fatalf("RegisterAgent(%s) error = %v", a.id, err)
		}
	}

	msg, err := h.Escalate(ctx, "worker", "deploy is stuck", "missing credentials", nil)
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if msg.To != "boss" {
		t.Errorf("escalation went to %s, want the first registered supervisor", msg.To)
	}
	if msg.Type != MessageTypeEscalate {
		t.Errorf("Type = %v, want %v", msg.Type, MessageTypeEscalate)
	}
	if msg.Priority != PriorityUrgent {
		t.Errorf("Priority = %v, want %v", msg.Priority, PriorityUrgent)
	}

	got := h.Messages("boss", false)
	if len(got) != 1 {
		t.Fatalf("boss queue = %d messages, want 1", len(got))
	}
}

func TestEscalateWithoutSupervisorBroadcasts(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	for _, id := range []string{"worker", "peer"} {
		if _, err := h.RegisterAgent(id, id, "worker", nil, nil); err != nil {
			t.Fatalf("RegisterAgent(%s) error = %v", id, err)
		}
	}

	msg, err := h.Escalate(ctx, "worker", "deploy is stuck", "no supervisor online", nil)
	if err != nil {
		t.Fatalf("Escalate() error = %v", err)
	}
	if !msg.IsBroadcast() {
		t.Errorf("escalation To = %s, want broadcast", msg.To)
	}

	got := h.Messages("peer", false)
	if len(got) != 1 {
		t.Fatalf("peer queue = %d messages, want 1", len(got))
	}
	if got[0].Content["needs_help"] != true {
		t.Errorf("Content[needs_help] = %v, want true", got[0].Content["needs_help"])
	}
}

func TestHandoffTimestamps(t *testing.T) {
	h := newTestHub(t)
	handoff := delegateTestTask(t, h)

	time.Sleep(time.Millisecond)
	accepted, err := h.AcceptHandoff(context.Background(), handoff.ID, "coder")
	if err != nil {
		t.Fatalf("AcceptHandoff() error = %v", err)
	}
	if !accepted.UpdatedAt.After(handoff.UpdatedAt) {
		t.Error("UpdatedAt was not advanced by the transition")
	}
	if !accepted.CreatedAt.Equal(handoff.CreatedAt) {
		t.Error("CreatedAt changed across the transition")
	}
}
