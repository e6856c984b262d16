package transport

import (
	"log/slog"
	"time"

	"github.com/espixelstick/esps-go/pkg/clock"
)

// Keep-alive defaults.
const (
	// DefaultPingInterval is how long the link may be quiet before a
	// heartbeat probe is sent.
	DefaultPingInterval = 1 * time.Second

	// DefaultPongTimeout is the longest the link may go without any
	// inbound traffic before it is declared dead.
	DefaultPongTimeout = 6 * time.Second
)

// KeepAliveConfig configures keep-alive behavior.
type KeepAliveConfig struct {
	// PingInterval is the quiet time before a probe is sent.
	PingInterval time.Duration

	// PongTimeout is the ceiling on time without inbound traffic.
	PongTimeout time.Duration

	// Logger receives heartbeat diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval: DefaultPingInterval,
		PongTimeout:  DefaultPongTimeout,
	}
}

// KeepAliveState is the liveness state of a connection.
type KeepAliveState uint8

const (
	// KeepAliveIdle means monitoring has not started or is suspended.
	KeepAliveIdle KeepAliveState = iota

	// KeepAliveArmed means timers are running and no traffic has arrived
	// since the connection opened.
	KeepAliveArmed

	// KeepAliveHealthy means traffic arrived within the ceiling.
	KeepAliveHealthy

	// KeepAliveDead means the ceiling passed with no traffic.
	KeepAliveDead
)

// String returns the state name.
func (s KeepAliveState) String() string {
	switch s {
	case KeepAliveIdle:
		return "IDLE"
	case KeepAliveArmed:
		return "ARMED"
	case KeepAliveHealthy:
		return "HEALTHY"
	case KeepAliveDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Prober sends heartbeat probes on a connection.
type Prober interface {
	// Ready reports whether the connection is open.
	Ready() bool

	// SendProbe writes a heartbeat probe directly to the connection.
	SendProbe() error
}

// KeepAlive monitors connection liveness.
//
// Any inbound message counts as evidence of life. Each call to Start or
// Received cancels both timers and arms them again: the ping timer
// sends a probe when the link has been quiet, and the pong timer
// declares the link dead when nothing at all has arrived within the
// ceiling. Probes repeat every ping interval while the link stays
// quiet. A probe that goes unanswered is not a failure by itself.
//
// While hidden, no timers are armed. KeepAlive is not safe for
// concurrent use; the owner serializes calls and timer callbacks.
type KeepAlive struct {
	config KeepAliveConfig
	clock  clock.Clock
	probe  Prober
	onDead func(reason string)

	pingTimer *clock.Timer
	pongTimer *clock.Timer
	seq       uint64

	hidden  bool
	stopped bool
	state   KeepAliveState

	lastPingSent time.Time
	lastReceived time.Time
	pingPending  bool
	probesSent   int
	deaths       int
}

// NewKeepAlive creates a keep-alive monitor. onDead is called once per
// failure with a short reason.
func NewKeepAlive(config KeepAliveConfig, clk clock.Clock, probe Prober, onDead func(reason string)) *KeepAlive {
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}
	if config.PongTimeout <= 0 {
		config.PongTimeout = DefaultPongTimeout
	}
	return &KeepAlive{
		config: config,
		clock:  clk,
		probe:  probe,
		onDead: onDead,
	}
}

// Start begins monitoring a freshly opened connection.
func (ka *KeepAlive) Start() {
	ka.stopped = false
	ka.pingPending = false
	ka.state = KeepAliveArmed
	ka.rearm()
}

// Received records inbound traffic of any kind and restarts both timers.
func (ka *KeepAlive) Received() {
	if ka.stopped {
		return
	}
	ka.lastReceived = ka.clock.Now()
	ka.pingPending = false
	ka.state = KeepAliveHealthy
	ka.rearm()
}

// SetHidden suspends monitoring while hidden and resumes it, with fresh
// timers, when visible again.
func (ka *KeepAlive) SetHidden(hidden bool) {
	if ka.hidden == hidden {
		return
	}
	ka.hidden = hidden
	if ka.stopped {
		return
	}
	ka.rearm()
}

// Hidden reports whether monitoring is suspended.
func (ka *KeepAlive) Hidden() bool { return ka.hidden }

// Stop cancels both timers. No callback runs after Stop returns.
func (ka *KeepAlive) Stop() {
	ka.stopped = true
	ka.cancel()
	if ka.state != KeepAliveDead {
		ka.state = KeepAliveIdle
	}
}

// Stats returns current keep-alive statistics.
func (ka *KeepAlive) Stats() KeepAliveStats {
	return KeepAliveStats{
		State:        ka.state,
		LastPingSent: ka.lastPingSent,
		LastReceived: ka.lastReceived,
		PingPending:  ka.pingPending,
		ProbesSent:   ka.probesSent,
		Failures:     ka.deaths,
		Hidden:       ka.hidden,
	}
}

// KeepAliveStats contains keep-alive statistics.
type KeepAliveStats struct {
	State        KeepAliveState
	LastPingSent time.Time
	LastReceived time.Time
	PingPending  bool
	ProbesSent   int
	Failures     int
	Hidden       bool
}

func (ka *KeepAlive) rearm() {
	ka.cancel()
	if ka.hidden {
		return
	}
	seq := ka.seq
	ka.pingTimer = ka.clock.AfterFunc(ka.config.PingInterval, func() { ka.pingFired(seq) })
	ka.pongTimer = ka.clock.AfterFunc(ka.config.PongTimeout, func() { ka.pongFired(seq) })
}

func (ka *KeepAlive) cancel() {
	ka.seq++
	ka.pingTimer.Stop()
	ka.pongTimer.Stop()
	ka.pingTimer = nil
	ka.pongTimer = nil
}

func (ka *KeepAlive) pingFired(seq uint64) {
	if seq != ka.seq || ka.stopped {
		return
	}
	if !ka.probe.Ready() {
		ka.fail("connection closed")
		return
	}
	ka.lastPingSent = ka.clock.Now()
	ka.pingPending = true
	ka.probesSent++
	if err := ka.probe.SendProbe(); err != nil {
		// The pong timer still bounds detection.
		ka.debugLog("probe failed", "error", err)
	}
	ka.pingTimer = ka.clock.AfterFunc(ka.config.PingInterval, func() { ka.pingFired(seq) })
}

func (ka *KeepAlive) pongFired(seq uint64) {
	if seq != ka.seq || ka.stopped {
		return
	}
	ka.fail("no traffic within ceiling")
}

func (ka *KeepAlive) fail(reason string) {
	ka.cancel()
	ka.state = KeepAliveDead
	ka.stopped = true
	ka.deaths++
	ka.debugLog("connection dead", "reason", reason)
	if ka.onDead != nil {
		ka.onDead(reason)
	}
}

func (ka *KeepAlive) debugLog(msg string, args ...any) {
	if ka.config.Logger != nil {
		ka.config.Logger.Debug(msg, args...)
	}
}
