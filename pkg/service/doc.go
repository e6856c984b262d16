// Package service provides the session that drives one ESPixelStick device.
//
// A Session owns a single WebSocket connection to the device and
// everything that depends on it:
//   - the single-flight command queue (pkg/queue)
//   - the heartbeat monitor (transport.KeepAlive)
//   - reconnection with backoff (pkg/connection)
//   - the last known configuration sections, status, admin info and file list
//
// All of this state lives on one event-loop goroutine started by Run.
// Public methods are safe for concurrent use; they post work to the loop
// and wait for it to complete.
//
// Example usage:
//
//	config := service.DefaultSessionConfig()
//	config.URL = "ws://192.168.1.50/ws"
//
//	s, err := service.NewSession(config)
//	s.OnEvent(func(e service.Event) { fmt.Println(e.Type) })
//	go s.Run(ctx)
//	defer s.Close()
//
//	s.SetView(service.ViewAdmin)
//	s.Save(map[wire.Section]tree.Tree{wire.SectionSystem: sys})
//
// # Connection Lifecycle
//
// On open the session flushes the queue, pushes the wall clock, asks for
// admin info and replays the requests of the current view. Every inbound
// frame restarts the heartbeat and releases the queue for the next
// command. When the heartbeat declares the link dead, or the link
// closes, the queue is flushed and a reopen is scheduled after a backoff
// delay. Attempts continue until the session is closed.
//
// # Replies
//
// The device does not echo request identifiers. A reply is attributed to
// the command in flight when it arrives, and any inbound frame releases
// the queue, heartbeat replies included.
package service
