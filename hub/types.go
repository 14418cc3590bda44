package hub

import (
	"maps"
	"slices"
	"time"
)

// AgentStatus is the operational state of a registered agent.
type AgentStatus string

const (
	StatusIdle    AgentStatus = "idle"
	StatusBusy    AgentStatus = "busy"
	StatusWaiting AgentStatus = "waiting"
	StatusError   AgentStatus = "error"
	StatusOffline AgentStatus = "offline"
)

// Capability describes one advertised skill of an agent. Input and output
// schemas are opaque maps; the hub never interprets them.
type Capability struct {
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	InputSchema       map[string]any `json:"input_schema,omitempty"`
	OutputSchema      map[string]any `json:"output_schema,omitempty"`
	EstimatedCost     float64        `json:"estimated_cost,omitempty"`
	EstimatedDuration time.Duration  `json:"estimated_duration,omitempty"`
}

// AgentProfile is the registry record for one participant. Lookups return
// defensive copies; all mutation goes through hub methods.
type AgentProfile struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Capabilities  []Capability   `json:"capabilities"`
	Status        AgentStatus    `json:"status"`
	CurrentTask   string         `json:"current_task,omitempty"`
	LastHeartbeat time.Time      `json:"last_heartbeat"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func (p *AgentProfile) clone() *AgentProfile {
	c := *p
	c.Capabilities = slices.Clone(p.Capabilities)
	c.Metadata = maps.Clone(p.Metadata)
	return &c
}

// HasCapability reports whether the agent advertises the named capability.
func (p *AgentProfile) HasCapability(name string) bool {
	for _, cap := range p.Capabilities {
		if cap.Name == name {
			return true
		}
	}
	return false
}

// HandoffStatus tracks the lifecycle of a delegated task.
type HandoffStatus string

const (
	HandoffPending   HandoffStatus = "pending"
	HandoffAccepted  HandoffStatus = "accepted"
	HandoffRejected  HandoffStatus = "rejected"
	HandoffCompleted HandoffStatus = "completed"
)

// Handoff is a unit of work delegated from one agent to another through the
// pending -> accepted -> completed lifecycle, with pending -> rejected as the
// refusal branch.
type Handoff struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	From         string         `json:"from_agent"`
	To           string         `json:"to_agent"`
	Context      map[string]any `json:"context,omitempty"`
	Artifacts    []string       `json:"artifacts,omitempty"`
	Instructions string         `json:"instructions,omitempty"`
	Deadline     time.Time      `json:"deadline,omitempty"`
	Status       HandoffStatus  `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (ho *Handoff) clone() *Handoff {
	c := *ho
	c.Context = maps.Clone(ho.Context)
	c.Artifacts = slices.Clone(ho.Artifacts)
	c.Result = maps.Clone(ho.Result)
	return &c
}

// Conversation is a named multi-party thread. Once EndedAt is set the
// conversation is terminal and no further messages can be added.
type Conversation struct {
	ID           string         `json:"id"`
	Participants []string       `json:"participants"`
	Messages     []*Message     `json:"messages"`
	Topic        string         `json:"topic"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      time.Time      `json:"ended_at,omitempty"`
	Outcome      map[string]any `json:"outcome,omitempty"`
}

// Ended reports whether the conversation has been terminated.
func (c *Conversation) Ended() bool {
	return !c.EndedAt.IsZero()
}

func (c *Conversation) clone() *Conversation {
	cp := *c
	cp.Participants = slices.Clone(c.Participants)
	cp.Messages = slices.Clone(c.Messages)
	cp.Outcome = maps.Clone(c.Outcome)
	return &cp
}
