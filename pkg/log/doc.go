// Package log provides structured protocol capture for device sessions.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, session).
// It is separate from operational logging (slog): protocol capture is a
// complete machine-readable trace of everything exchanged with a device.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For field captures: write to a binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/tmp/esps.elog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: raw WebSocket frames (FrameEvent)
//   - Wire: classified commands and replies (MessageEvent)
//   - Session: state changes (StateChangeEvent)
//
// Heartbeat probes and closes (ControlMsgEvent) and errors have their own
// event types.
//
// # File Format
//
// Capture files are a sequence of CBOR-encoded events with the .elog
// extension. The esps-log tool views, filters and exports them.
package log
