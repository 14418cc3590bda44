package hub

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// MessageType classifies the intent of a message.
type MessageType string

const (
	MessageTypeRequest   MessageType = "request"
	MessageTypeResponse  MessageType = "response"
	MessageTypeInform    MessageType = "inform"
	MessageTypeDelegate  MessageType = "delegate"
	MessageTypeQuery     MessageType = "query"
	MessageTypeBroadcast MessageType = "broadcast"
	MessageTypeHandshake MessageType = "handshake"
	MessageTypeHeartbeat MessageType = "heartbeat"
	MessageTypeEscalate  MessageType = "escalate"
	MessageTypeConsensus MessageType = "consensus"
)

// Priority orders messages by urgency. It has no scheduling effect inside
// the hub; it is carried for consumers and recorded on spans.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityUrgent   Priority = "urgent"
	PriorityCritical Priority = "critical"
)

// Broadcast is the sentinel recipient that fans a message out to every
// registered agent except the sender.
const Broadcast = "broadcast"

// MetadataBroadcastID is the metadata key holding the id of the original
// message a broadcast copy was fanned out from.
const MetadataBroadcastID = "broadcast_id"

// MetadataConversationID is the metadata key tagging a message with the
// conversation thread it belongs to.
const MetadataConversationID = "conversation_id"

// Message is the atomic unit of communication between agents. Messages are
// immutable once routed; Content and Metadata are free-form maps and
// consumers must treat unknown keys as forward-compatible extensions.
type Message struct {
	ID               string         `json:"id"`
	Type             MessageType    `json:"type"`
	From             string         `json:"from"`
	To               string         `json:"to"`
	Content          map[string]any `json:"content"`
	Priority         Priority       `json:"priority"`
	CreatedAt        time.Time      `json:"created_at"`
	ReplyTo          string         `json:"reply_to,omitempty"`
	RequiresResponse bool           `json:"requires_response"`
	Timeout          time.Duration  `json:"timeout,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// IsBroadcast reports whether the message targets the broadcast sentinel.
func (m *Message) IsBroadcast() bool {
	return m.To == Broadcast
}

// Clone returns a deep-enough copy for fan-out: the copy shares no map
// headers with the original.
func (m *Message) Clone() *Message {
	c := *m
	c.Content = maps.Clone(m.Content)
	c.Metadata = maps.Clone(m.Metadata)
	return &c
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{ID: %s, Type: %s, From: %s, To: %s}", m.ID, m.Type, m.From, m.To)
}

// MessageBuilder assembles a Message with sensible defaults: a fresh UUID,
// type inform, normal priority, and the creation timestamp.
type MessageBuilder struct {
	message *Message
}

// NewMessage starts a builder for a message from one agent to another (or
// to the Broadcast sentinel).
func NewMessage(from, to string, content map[string]any) *MessageBuilder {
	return &MessageBuilder{
		message: &Message{
			ID:        generateID(),
			Type:      MessageTypeInform,
			From:      from,
			To:        to,
			Content:   content,
			Priority:  PriorityNormal,
			CreatedAt: time.Now(),
		},
	}
}

// NewRequest starts a builder for a request that expects a response.
func NewRequest(from, to string, content map[string]any) *MessageBuilder {
	return NewMessage(from, to, content).Type(MessageTypeRequest).RequiresResponse(true)
}

// NewResponse starts a builder for a response to an earlier message.
func NewResponse(from, to, replyTo string, content map[string]any) *MessageBuilder {
	return NewMessage(from, to, content).Type(MessageTypeResponse).ReplyTo(replyTo)
}

func (mb *MessageBuilder) Type(t MessageType) *MessageBuilder {
	mb.message.Type = t
	return mb
}

func (mb *MessageBuilder) Priority(p Priority) *MessageBuilder {
	mb.message.Priority = p
	return mb
}

func (mb *MessageBuilder) ReplyTo(id string) *MessageBuilder {
	mb.message.ReplyTo = id
	return mb
}

func (mb *MessageBuilder) RequiresResponse(required bool) *MessageBuilder {
	mb.message.RequiresResponse = required
	return mb
}

func (mb *MessageBuilder) Timeout(d time.Duration) *MessageBuilder {
	mb.message.Timeout = d
	return mb
}

func (mb *MessageBuilder) Metadata(key string, value any) *MessageBuilder {
	if mb.message.Metadata == nil {
		mb.message.Metadata = make(map[string]any)
	}
	mb.message.Metadata[key] = value
	return mb
}

// Build returns the assembled message.
func (mb *MessageBuilder) Build() *Message {
	return mb.message
}

func generateID() string {
	return uuid.Must(uuid.NewV7()).String()
}
