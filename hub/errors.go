package hub

import "errors"

// Structural errors are returned synchronously to the caller of the hub
// method that triggered them. Timeouts are not errors: blocking calls such
// as Request and RequestConsensus return a nil message or a partial result
// instead, so callers can tell "no answer" apart from "bad call".
var (
	// ErrAgentNotFound is returned when an agent id cannot be resolved.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrDuplicateAgent is returned by RegisterAgent when the id is already
	// registered. Use UpsertAgent for the explicit overwrite path.
	ErrDuplicateAgent = errors.New("agent already registered")

	// ErrHandoffNotFound is returned when a handoff id cannot be resolved.
	ErrHandoffNotFound = errors.New("handoff not found")

	// ErrNotAuthorized is returned when an agent attempts to accept,
	// reject, or complete a handoff that is not addressed to it.
	ErrNotAuthorized = errors.New("agent not authorized for handoff")

	// ErrHandoffTerminal is returned when a lifecycle transition is applied
	// to a handoff that already reached a terminal or incompatible state.
	ErrHandoffTerminal = errors.New("handoff not in a valid state for transition")

	// ErrConversationNotFound is returned when a conversation id cannot be
	// resolved.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrConversationEnded is returned when a message is added to a
	// conversation after EndConversation.
	ErrConversationEnded = errors.New("conversation already ended")

	// ErrHubClosed is returned by operations invoked after Shutdown.
	ErrHubClosed = errors.New("hub is shut down")
)
