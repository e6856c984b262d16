// Package transport provides the device link: a WebSocket connection
// carrying text commands and binary pixel snapshots, plus the
// keep-alive monitor that decides when a link is dead.
//
// # Connections
//
// Dial opens a connection and Accept upgrades one on the device side.
// Each Conn runs a single read goroutine that hands frames to a
// ConnectionHandler in arrival order and reports the close exactly
// once. Writes are serialized per connection.
//
// # Keep-Alive
//
// The device can drop a connection without closing it, so liveness is
// judged by traffic rather than by the socket:
//   - Ping interval: 1 second of silence sends an XP probe
//   - Pong timeout: 6 seconds without any inbound frame is fatal
//   - Any inbound frame, not only a probe reply, resets both timers
//
// Probes go straight to the link and never wait behind queued commands.
package transport
