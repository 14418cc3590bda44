package hub_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/agentcomm/commhub/hub"
)

// Example shows a full delegation round: a planner hands a task to a
// coder, who accepts it and reports the result back.
func Example() {
	ctx := context.Background()
	h, err := hub.New(ctx, hub.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer h.Shutdown(5 * time.Second)

	if _, err := h.RegisterAgent("planner", "Planner", "planner", nil, nil); err != nil {
		log.Fatal(err)
	}
	if _, err := h.RegisterAgent("coder", "Coder", "coder", []hub.Capability{
		{Name: "golang", Description: "writes Go"},
	}, nil); err != nil {
		log.Fatal(err)
	}

	handoff, err := h.DelegateTask(ctx, hub.HandoffSpec{
		From:        "planner",
		To:          "coder",
		Description: "implement the CSV importer",
	})
	if err != nil {
		log.Fatal(err)
	}

	if _, err := h.AcceptHandoff(ctx, handoff.ID, "coder"); err != nil {
		log.Fatal(err)
	}
	completed, err := h.CompleteHandoff(ctx, handoff.ID, "coder", map[string]any{
		"files_changed": 2,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(completed.Status)
	fmt.Println(completed.Result["files_changed"])
	// Output:
	// completed
	// 2
}

// ExampleHub_Request shows request/response correlation between two
// agents.
func ExampleHub_Request() {
	ctx := context.Background()
	h, err := hub.New(ctx, hub.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer h.Shutdown(5 * time.Second)

	answer := func(ctx context.Context, msg *hub.Message) error {
		if !msg.RequiresResponse {
			return nil
		}
		_, err := h.Reply(ctx, msg, "oracle", map[string]any{"answer": "yes"})
		return err
	}
	if _, err := h.RegisterAgent("oracle", "Oracle", "responder", nil, answer); err != nil {
		log.Fatal(err)
	}

	msg := hub.NewRequest("asker", "oracle", map[string]any{"question": "ready?"}).
		Timeout(2 * time.Second).
		Build()
	reply, err := h.Request(ctx, msg)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Content["answer"])
	// Output:
	// yes
}

// ExampleHub_Send_broadcast shows the broadcast sentinel fanning a message
// out to every other registered agent.
func ExampleHub_Send_broadcast() {
	ctx := context.Background()
	h, err := hub.New(ctx, hub.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer h.Shutdown(5 * time.Second)

	for _, id := range []string{"alice", "bob", "carol"} {
		if _, err := h.RegisterAgent(id, id, "worker", nil, nil); err != nil {
			log.Fatal(err)
		}
	}

	if _, err := h.Send(ctx, hub.NewMessage("alice", hub.Broadcast, map[string]any{
		"announcement": "standup in five",
	}).Build()); err != nil {
		log.Fatal(err)
	}

	fmt.Println("alice:", len(h.Messages("alice", false)))
	fmt.Println("bob:", len(h.Messages("bob", false)))
	fmt.Println("carol:", len(h.Messages("carol", false)))
	// Output:
	// alice: 0
	// bob: 1
	// carol: 1
}
