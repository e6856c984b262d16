// Package connection provides the session's connection lifecycle:
// the state set a session moves through and the backoff that paces
// reopen attempts.
//
// # States
//
//	CLOSED -> CONNECTING -> OPEN <-> AWAITING_REPLY
//	              ^           |           |
//	              |           v           v
//	              +------ RECONNECTING <--+
//
// Any state may move to CLOSED when the session is shut down.
//
// # Reconnection Strategy
//
// Reconnection is never abandoned. Delays grow exponentially:
//
//  1. Initial delay: 250 milliseconds
//  2. Exponential increase: 500ms, 1s, 2s, 4s
//  3. Maximum delay: 6 seconds, the keep-alive ceiling
//  4. Continue at 6s until successful
//  5. Reset to 250ms once the link opens
//
// # Jitter
//
// To avoid reconnecting in lockstep with other clients:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
