package queue

import (
	"log/slog"
	"time"

	"github.com/espixelstick/esps-go/pkg/clock"
	"github.com/espixelstick/esps-go/pkg/wire"
)

// Default timeouts.
const (
	DefaultShortTimeout = 1 * time.Second
	DefaultReplyTimeout = 5 * time.Second
)

// Link is the transport the queue writes to.
type Link interface {
	// Ready reports whether the connection is open.
	Ready() bool

	// Transmit writes one message.
	Transmit(msg wire.Outbound) error
}

// Config configures a Queue.
type Config struct {
	// ShortTimeout applies to wire.ClassShort messages.
	ShortTimeout time.Duration

	// ReplyTimeout applies to every other message.
	ReplyTimeout time.Duration

	// Logger receives drop and timeout diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns the default queue timeouts.
func DefaultConfig() Config {
	return Config{
		ShortTimeout: DefaultShortTimeout,
		ReplyTimeout: DefaultReplyTimeout,
	}
}

// Stats counts queue activity since creation.
type Stats struct {
	Enqueued int
	Dropped  int
	Sent     int
	Replies  int
	Timeouts int
	Flushed  int
	Failed   int
}

// Queue is a single-flight FIFO of outbound messages.
type Queue struct {
	cfg   Config
	sched clock.Scheduler
	link  Link

	pending  []wire.Outbound
	inFlight wire.Outbound
	busy     bool
	paused   bool

	timer    *clock.Timer
	timerSeq uint64

	onComplete func(msg wire.Outbound, timedOut bool)
	stats      Stats
}

// New creates a queue that transmits on link and arms its response
// timers on sched.
func New(cfg Config, sched clock.Scheduler, link Link) *Queue {
	if cfg.ShortTimeout <= 0 {
		cfg.ShortTimeout = DefaultShortTimeout
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	return &Queue{
		cfg:   cfg,
		sched: sched,
		link:  link,
	}
}

// OnComplete registers a callback invoked when the in-flight message is
// released, either by a reply or by its timer. It is not invoked for
// messages discarded by Flush.
func (q *Queue) OnComplete(fn func(msg wire.Outbound, timedOut bool)) {
	q.onComplete = fn
}

// Enqueue appends msg and tries to send it. It returns false, and the
// message is discarded, when the link is down or the queue is paused.
func (q *Queue) Enqueue(msg wire.Outbound) bool {
	if msg.IsZero() {
		return false
	}
	if !q.link.Ready() {
		q.drop(msg, "connection not open")
		return false
	}
	if q.paused {
		q.drop(msg, "sending paused")
		return false
	}

	q.pending = append(q.pending, msg)
	q.stats.Enqueued++
	q.Process()
	return true
}

// Process transmits the head of the queue if nothing is in flight.
func (q *Queue) Process() {
	if q.busy || q.paused || len(q.pending) == 0 || !q.link.Ready() {
		return
	}

	msg := q.pending[0]
	q.pending[0] = wire.Outbound{}
	q.pending = q.pending[1:]

	q.busy = true
	q.inFlight = msg
	q.stats.Sent++

	if err := q.link.Transmit(msg); err != nil {
		q.stats.Failed++
		q.debugLog("transmit failed", "message", msg.String(), "error", err)
	}
	q.arm(q.timeoutFor(msg))
}

// ReadyToSend releases the in-flight message after a reply, clears the
// paused flag and sends the next message.
func (q *Queue) ReadyToSend() {
	if q.busy {
		q.stats.Replies++
	}
	q.release(false)
}

// Pause stops transmission until the next ReadyToSend or Flush.
// Messages enqueued while paused are dropped.
func (q *Queue) Pause() {
	q.paused = true
}

// Flush discards every pending and in-flight message, cancels the
// response timer and clears the busy and paused flags. It returns the
// number of messages discarded.
func (q *Queue) Flush() int {
	n := len(q.pending)
	if q.busy {
		n++
	}
	q.cancel()
	q.pending = nil
	q.inFlight = wire.Outbound{}
	q.busy = false
	q.paused = false
	q.stats.Flushed += n
	return n
}

// Len returns the number of messages waiting to be sent. The in-flight
// message is not counted.
func (q *Queue) Len() int { return len(q.pending) }

// Busy reports whether a message is awaiting its reply or timeout.
func (q *Queue) Busy() bool { return q.busy }

// Paused reports whether sending is paused.
func (q *Queue) Paused() bool { return q.paused }

// InFlight returns the message awaiting a reply, if any.
func (q *Queue) InFlight() (wire.Outbound, bool) {
	return q.inFlight, q.busy
}

// Stats returns activity counters.
func (q *Queue) Stats() Stats { return q.stats }

func (q *Queue) timeoutFor(msg wire.Outbound) time.Duration {
	if msg.Class() == wire.ClassShort {
		return q.cfg.ShortTimeout
	}
	return q.cfg.ReplyTimeout
}

// arm replaces the response timer. Only one timer exists at a time.
func (q *Queue) arm(d time.Duration) {
	q.cancel()
	seq := q.timerSeq
	q.timer = q.sched.AfterFunc(d, func() { q.expire(seq) })
}

func (q *Queue) cancel() {
	q.timerSeq++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *Queue) expire(seq uint64) {
	if seq != q.timerSeq {
		return
	}
	q.timer = nil
	if q.busy {
		q.stats.Timeouts++
		q.debugLog("response timeout", "message", q.inFlight.String())
	}
	q.release(true)
}

func (q *Queue) release(timedOut bool) {
	msg, wasBusy := q.inFlight, q.busy
	q.cancel()
	q.busy = false
	q.paused = false
	q.inFlight = wire.Outbound{}

	if wasBusy && q.onComplete != nil {
		q.onComplete(msg, timedOut)
	}
	q.Process()
}

func (q *Queue) drop(msg wire.Outbound, reason string) {
	q.stats.Dropped++
	q.debugLog("message dropped", "message", msg.String(), "reason", reason)
}

func (q *Queue) debugLog(msg string, args ...any) {
	if q.cfg.Logger != nil {
		q.cfg.Logger.Debug(msg, args...)
	}
}
