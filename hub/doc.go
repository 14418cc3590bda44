// Package hub implements an in-process communication hub for cooperating
// agents: a capability registry, a message router with per-recipient FIFO
// queues, request/response correlation, task handoffs, multi-party
// conversations, and consensus voting.
//
// A Hub is an explicit instance created with New; there is no package-level
// default. All state lives inside the instance and every operation is safe
// for concurrent use.
//
// Agents join with RegisterAgent, advertising typed capabilities and an
// optional Handler that is invoked asynchronously on delivery. Messages are
// built with NewMessage, NewRequest, or NewResponse and routed with Send.
// Sending to the Broadcast sentinel fans one distinct copy out to every
// other registered agent.
//
// Request blocks for a correlated reply produced by Reply on the other
// side. A request that times out returns (nil, nil): absence of an answer
// is an expected outcome, not a failure.
//
// DelegateTask opens a tracked handoff that the target agent resolves with
// AcceptHandoff and CompleteHandoff, or refuses with RejectHandoff.
// Conversations group related messages into a thread that every participant
// receives until EndConversation terminates it. RequestConsensus polls a
// set of voters and tallies their answers against a fixed option list.
//
// Observability follows OpenTelemetry: operations create spans and update
// metric instruments registered on the global providers, and lifecycle
// transitions are mirrored on the hub's EventBus for in-process observers.
package hub
