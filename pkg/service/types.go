package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/espixelstick/esps-go/pkg/clock"
	"github.com/espixelstick/esps-go/pkg/connection"
	"github.com/espixelstick/esps-go/pkg/log"
	"github.com/espixelstick/esps-go/pkg/queue"
	"github.com/espixelstick/esps-go/pkg/transport"
	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/wire"
)

// Session errors.
var (
	ErrAlreadyStarted = errors.New("session already started")
	ErrSessionClosed  = errors.New("session closed")
	ErrNotConnected   = errors.New("not connected")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrDropped        = errors.New("command dropped")
	ErrSaveInProgress = errors.New("save already in progress")
	ErrNothingToSave  = errors.New("nothing to save")
	ErrNotLoaded      = errors.New("configuration not loaded from device")
)

// Session defaults.
const (
	DefaultStatusInterval     = 1 * time.Second
	DefaultTimeDriftThreshold = 5 * time.Second
	DefaultFileListRefresh    = 5 * time.Second
	DefaultDialTimeout        = 5 * time.Second
)

// FrameSink receives binary pixel snapshots. It is called on the session
// loop and must not block.
type FrameSink func(pixels []byte)

// SessionConfig configures a Session.
type SessionConfig struct {
	// URL is the device's WebSocket endpoint, e.g. "ws://10.0.0.5/ws".
	URL string

	// Dialer opens connections. Defaults to a transport.WebSocketDialer
	// built from Connection.
	Dialer transport.Dialer

	// Connection configures the default dialer.
	Connection transport.ConnectionConfig

	// DialTimeout bounds one connection attempt.
	DialTimeout time.Duration

	// Clock drives every timer. Defaults to clock.Real().
	Clock clock.Clock

	// Queue configures command response timeouts.
	Queue queue.Config

	// KeepAlive configures the heartbeat.
	KeepAlive transport.KeepAliveConfig

	// Backoff configures reconnect delays.
	Backoff connection.BackoffConfig

	// StatusInterval is the status poll period while the home view is shown.
	StatusInterval time.Duration

	// TimeDriftThreshold is how far the device clock may drift before
	// the session pushes the wall clock again.
	TimeDriftThreshold time.Duration

	// FileListRefresh is the delay between a file deletion and the
	// file list request that follows it.
	FileListRefresh time.Duration

	// View is the initial view.
	View View

	// FrameSink receives pixel snapshots while diagnostics are visible.
	FrameSink FrameSink

	// Logger is used for debug logging. If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives decoded messages and state changes.
	// If nil, protocol logging is disabled.
	ProtocolLogger log.Logger
}

// DefaultSessionConfig returns the default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Connection:         transport.DefaultConnectionConfig(),
		DialTimeout:        DefaultDialTimeout,
		Queue:              queue.DefaultConfig(),
		KeepAlive:          transport.DefaultKeepAliveConfig(),
		Backoff:            connection.BackoffConfig{Jitter: connection.JitterFactor},
		StatusInterval:     DefaultStatusInterval,
		TimeDriftThreshold: DefaultTimeDriftThreshold,
		FileListRefresh:    DefaultFileListRefresh,
	}
}

func (c *SessionConfig) applyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.StatusInterval <= 0 {
		c.StatusInterval = DefaultStatusInterval
	}
	if c.TimeDriftThreshold <= 0 {
		c.TimeDriftThreshold = DefaultTimeDriftThreshold
	}
	if c.FileListRefresh <= 0 {
		c.FileListRefresh = DefaultFileListRefresh
	}
	if c.Dialer == nil {
		conn := c.Connection
		if conn.Logger == nil {
			conn.Logger = c.Logger
		}
		if conn.ProtocolLogger == nil {
			conn.ProtocolLogger = c.ProtocolLogger
		}
		c.Dialer = transport.NewWebSocketDialer(conn)
	}
	if c.Queue.Logger == nil {
		c.Queue.Logger = c.Logger
	}
	if c.KeepAlive.Logger == nil {
		c.KeepAlive.Logger = c.Logger
	}
}

// View is the page a front end is showing. The view decides which
// sections are requested on open and whether status is polled.
type View uint8

const (
	// ViewHome shows live status.
	ViewHome View = iota

	// ViewNetwork edits the network part of the system section.
	ViewNetwork

	// ViewConfig edits input and output configuration.
	ViewConfig

	// ViewAdmin shows firmware info and backup/restore.
	ViewAdmin

	// ViewDiag shows the pixel stream.
	ViewDiag

	// ViewFileManagement lists files on the SD card.
	ViewFileManagement
)

// String returns the view name.
func (v View) String() string {
	switch v {
	case ViewHome:
		return "home"
	case ViewNetwork:
		return "network"
	case ViewConfig:
		return "config"
	case ViewAdmin:
		return "admin"
	case ViewDiag:
		return "diag"
	case ViewFileManagement:
		return "files"
	default:
		return "unknown"
	}
}

// ParseView returns the view with the given name.
func ParseView(name string) (View, bool) {
	for v := ViewHome; v <= ViewFileManagement; v++ {
		if v.String() == name {
			return v, true
		}
	}
	return ViewHome, false
}

// requests returns the sections a view needs when it becomes current
// or the connection reopens.
func (v View) requests() []wire.Section {
	switch v {
	case ViewHome, ViewNetwork:
		return []wire.Section{wire.SectionSystem}
	case ViewConfig:
		return []wire.Section{wire.SectionFiles, wire.SectionSystem, wire.SectionOutput, wire.SectionInput}
	case ViewAdmin:
		return []wire.Section{wire.SectionSystem, wire.SectionOutput, wire.SectionInput}
	case ViewFileManagement:
		return []wire.Section{wire.SectionFiles}
	default:
		return nil
	}
}

// pollsStatus reports whether status is polled while v is current.
func (v View) pollsStatus() bool {
	return v == ViewHome
}

// EventType identifies the kind of session event.
type EventType uint8

const (
	// EventConnected - connection opened.
	EventConnected EventType = iota

	// EventDisconnected - connection lost or an attempt failed.
	EventDisconnected

	// EventStateChanged - session state changed.
	EventStateChanged

	// EventStatus - status reply received.
	EventStatus

	// EventAdmin - admin info received.
	EventAdmin

	// EventSection - configuration section received.
	EventSection

	// EventFiles - file list received.
	EventFiles

	// EventSaveComplete - every command of a save batch completed.
	EventSaveComplete

	// EventUnrecognized - a frame matched no known shape and was dropped.
	EventUnrecognized
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventConnected:
		return "CONNECTED"
	case EventDisconnected:
		return "DISCONNECTED"
	case EventStateChanged:
		return "STATE_CHANGED"
	case EventStatus:
		return "STATUS"
	case EventAdmin:
		return "ADMIN"
	case EventSection:
		return "SECTION"
	case EventFiles:
		return "FILES"
	case EventSaveComplete:
		return "SAVE_COMPLETE"
	case EventUnrecognized:
		return "UNRECOGNIZED"
	default:
		return "UNKNOWN"
	}
}

// Event is emitted by a Session.
type Event struct {
	// Type is the event type.
	Type EventType

	// ConnectionID identifies the connection the event belongs to.
	ConnectionID string

	// State is the new state (EventStateChanged).
	State connection.State

	// Section is the section received (EventSection).
	Section wire.Section

	// Data is a copy of the received tree (status, admin, section).
	Data tree.Tree

	// Files is the received file list (EventFiles).
	Files *wire.FileList

	// Success reports the outcome of a save batch (EventSaveComplete).
	Success bool

	// Sections lists the sections of a save batch (EventSaveComplete).
	Sections []wire.Section

	// Reason describes a disconnect, state change or unrecognized frame.
	Reason string

	// Error is set if the event is an error.
	Error error
}

// EventHandler handles session events. All handlers of a session run on
// one goroutine and see events in the order they were emitted. They may
// call back into the session; a slow handler delays later events.
type EventHandler func(Event)

// Snapshot is a point-in-time view of session state.
type Snapshot struct {
	State        connection.State
	ConnectionID string
	View         View
	Hidden       bool
	DiagVisible  bool
	Queued       int
	Busy         bool
	Paused       bool
	Queue        queue.Stats
	Heartbeat    transport.KeepAliveStats
	Reconnects   int
}

// RestoreResult reports what a Restore changed.
type RestoreResult struct {
	// Written counts overwritten leaves per submitted section.
	Written map[wire.Section]int

	// Skipped lists sections present in the backup whose live copy has
	// not been loaded from the device yet.
	Skipped []wire.Section
}
