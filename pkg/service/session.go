package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/espixelstick/esps-go/pkg/clock"
	"github.com/espixelstick/esps-go/pkg/connection"
	"github.com/espixelstick/esps-go/pkg/queue"
	"github.com/espixelstick/esps-go/pkg/transport"
	"github.com/espixelstick/esps-go/pkg/tree"
	"github.com/espixelstick/esps-go/pkg/wire"
)

const inboxSize = 256

// Session manages the connection to one device.
type Session struct {
	config SessionConfig
	clock  *loopClock

	inbox     chan func()
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
	closeOnce sync.Once

	mu            sync.RWMutex
	eventHandlers []EventHandler
	events        *eventQueue

	tracker   *connection.Tracker
	backoff   *connection.Backoff
	queue     *queue.Queue
	keepAlive *transport.KeepAlive

	// Everything below is owned by the loop goroutine.
	ctx          context.Context
	stopping     bool
	link         transport.Link
	gen          uint64
	connID       string
	dialCancel   context.CancelFunc
	reopenTimer  *clock.Timer
	statusTimer  *clock.Timer
	refreshTimer *clock.Timer
	reconnects   int

	view          View
	hidden        bool
	diagVisible   bool
	statusPending bool
	restarting    bool

	sections   map[wire.Section]tree.Tree
	status     tree.Tree
	admin      tree.Tree
	files      *wire.FileList
	deviceName string

	sentAt    time.Time
	lastReply wire.Inbound
	save      *saveBatch
}

// NewSession creates a session. Call Run to connect.
func NewSession(config SessionConfig) (*Session, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("%w: URL is required", ErrInvalidConfig)
	}
	config.applyDefaults()

	s := &Session{
		config:   config,
		inbox:    make(chan func(), inboxSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		events:   newEventQueue(),
		sections: make(map[wire.Section]tree.Tree),
		view:     config.View,
	}
	s.diagVisible = config.View == ViewDiag
	s.clock = &loopClock{clock: config.Clock, post: s.post}
	s.tracker = connection.NewTracker(s.stateChanged)
	s.backoff = connection.NewBackoffWithConfig(config.Backoff)

	link := sessionLink{s: s}
	s.queue = queue.New(config.Queue, s.clock, link)
	s.queue.OnComplete(s.commandCompleted)
	s.keepAlive = transport.NewKeepAlive(config.KeepAlive, s.clock, link, s.heartbeatDead)
	return s, nil
}

// URL returns the device endpoint.
func (s *Session) URL() string { return s.config.URL }

// OnEvent registers a handler for session events.
func (s *Session) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandlers = append(s.eventHandlers, handler)
}

// Run connects and processes events until ctx is done or Close is
// called. It may be called once.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		select {
		case <-s.stop:
			return ErrSessionClosed
		default:
			return ErrAlreadyStarted
		}
	}
	defer close(s.done)
	go s.events.run(s.handlers)
	defer s.events.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = ctx

	s.debugLog("session starting", "url", s.config.URL)
	s.connect()

	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.stop:
			s.shutdown("session closed")
			return nil
		case <-ctx.Done():
			s.shutdown("context done")
			return ctx.Err()
		}
	}
}

// Close stops the session and waits for Run to return. It must not be
// called from a FrameSink.
func (s *Session) Close() error {
	s.closeOnce.Do(func() { close(s.stop) })
	if s.started.CompareAndSwap(false, true) {
		close(s.done)
		return nil
	}
	<-s.done
	return nil
}

// Done is closed when the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the session state.
func (s *Session) State() connection.State {
	return s.tracker.State()
}

// post hands fn to the loop. It returns false once the session stopped.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(fn func()) error {
	ran := make(chan struct{})
	if !s.post(func() { fn(); close(ran) }) {
		return ErrSessionClosed
	}
	select {
	case <-ran:
		return nil
	case <-s.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrSessionClosed
		}
	}
}

// connect starts a dial off the loop. The result comes back through
// dialed.
func (s *Session) connect() {
	s.reopenTimer = nil
	s.gen++
	gen := s.gen
	s.setState(connection.StateConnecting, "dialing")

	ctx, cancel := context.WithTimeout(s.ctx, s.config.DialTimeout)
	s.dialCancel = cancel

	h := &connHandler{s: s, gen: gen, opened: make(chan struct{})}
	dialer, url := s.config.Dialer, s.config.URL
	go func() {
		defer close(h.opened)
		link, err := dialer.Dial(ctx, url, h)
		cancel()
		if !s.post(func() { s.dialed(gen, link, err) }) && link != nil {
			link.Close()
		}
	}()
}

func (s *Session) dialed(gen uint64, link transport.Link, err error) {
	if gen != s.gen || s.stopping {
		if link != nil {
			link.Close()
		}
		return
	}
	s.dialCancel = nil

	if err != nil {
		s.debugLog("dial failed", "url", s.config.URL, "error", err)
		s.logError("dial", err)
		s.emit(Event{Type: EventDisconnected, Reason: "dial failed", Error: err})
		s.scheduleReopen("dial failed")
		return
	}

	s.link = link
	s.connID = link.ID()
	s.opened()
}

// opened runs once per established connection.
func (s *Session) opened() {
	s.debugLog("connected", "url", s.config.URL, "conn_id", s.connID)
	s.backoff.Reset()
	s.setState(connection.StateOpen, "connected")

	s.queue.Flush()
	s.statusPending = false
	s.restarting = false
	s.keepAlive.Start()
	s.emit(Event{Type: EventConnected, ConnectionID: s.connID})

	s.syncTime()
	s.queue.Enqueue(wire.Simple(wire.CodeAdmin))
	s.requestView()
	if s.view.pollsStatus() && !s.hidden {
		s.pollStatus()
	}
	s.updateState()
}

func (s *Session) frame(gen uint64, f transport.Frame) {
	if gen != s.gen || s.link == nil {
		return
	}
	s.keepAlive.Received()

	msg := wire.Decode(f.Data, f.Binary)
	var latency *time.Duration
	if s.queue.Busy() {
		d := s.clock.Now().Sub(s.sentAt)
		latency = &d
	}
	s.logInbound(msg, f, latency)

	// While the device restarts nothing is in flight and the queue stays
	// paused; replies to heartbeat probes must not release it.
	if !s.restarting {
		s.lastReply = msg
		s.queue.ReadyToSend()
		s.lastReply = nil
	}

	s.dispatch(msg)
	s.updateState()
}

func (s *Session) linkClosed(gen uint64, err error) {
	if gen != s.gen || s.link == nil {
		return
	}
	reason := "connection closed"
	if err != nil {
		reason = err.Error()
	}
	s.disconnect(reason, err)
}

func (s *Session) heartbeatDead(reason string) {
	if s.link == nil {
		return
	}
	s.logControl(controlClose, reason)
	s.disconnect(reason, nil)
}

// disconnect tears down the current link and schedules a reopen.
func (s *Session) disconnect(reason string, err error) {
	s.debugLog("disconnected", "conn_id", s.connID, "reason", reason, "error", err)

	s.keepAlive.Stop()
	if n := s.queue.Flush(); n > 0 {
		s.debugLog("queue flushed", "discarded", n)
	}
	s.statusPending = false
	s.failSave(reason)
	s.stopTasks()

	link := s.link
	s.link = nil
	s.gen++
	if link != nil {
		link.Close()
	}

	s.emit(Event{Type: EventDisconnected, ConnectionID: s.connID, Reason: reason, Error: err})
	s.scheduleReopen(reason)
}

func (s *Session) scheduleReopen(reason string) {
	s.setState(connection.StateReconnecting, reason)
	delay := s.backoff.Next()
	s.reconnects++
	s.debugLog("reopen scheduled", "delay", delay, "attempt", s.backoff.Attempts())
	s.reopenTimer.Stop()
	s.reopenTimer = s.clock.AfterFunc(delay, s.connect)
}

func (s *Session) shutdown(reason string) {
	s.stopping = true
	if s.dialCancel != nil {
		s.dialCancel()
		s.dialCancel = nil
	}
	s.reopenTimer.Stop()
	s.reopenTimer = nil
	s.keepAlive.Stop()
	s.queue.Flush()
	s.failSave(reason)
	s.stopTasks()

	if s.link != nil {
		s.link.Close()
		s.link = nil
		s.emit(Event{Type: EventDisconnected, ConnectionID: s.connID, Reason: reason})
	}
	s.gen++
	s.setState(connection.StateClosed, reason)

	// Release anything posted before the loop stopped.
	for {
		select {
		case fn := <-s.inbox:
			fn()
		default:
			s.debugLog("session stopped", "reason", reason)
			return
		}
	}
}

func (s *Session) stopTasks() {
	s.statusTimer.Stop()
	s.statusTimer = nil
	s.refreshTimer.Stop()
	s.refreshTimer = nil
}

func (s *Session) setState(next connection.State, reason string) {
	if err := s.tracker.Set(next, reason); err != nil {
		s.debugLog("state change rejected", "error", err)
	}
}

func (s *Session) stateChanged(old, next connection.State, reason string) {
	s.logState(old, next, reason)
	s.emit(Event{Type: EventStateChanged, ConnectionID: s.connID, State: next, Reason: reason})
}

// updateState mirrors the queue's in-flight flag into the session state.
func (s *Session) updateState() {
	if s.link == nil || s.stopping {
		return
	}
	if s.queue.Busy() {
		s.setState(connection.StateAwaitingReply, "command sent")
	} else {
		s.setState(connection.StateOpen, "idle")
	}
}

func (s *Session) emit(event Event) {
	s.events.push(event)
}

func (s *Session) handlers() []EventHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	handlers := make([]EventHandler, len(s.eventHandlers))
	copy(handlers, s.eventHandlers)
	return handlers
}

func (s *Session) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

// sessionLink adapts the session's current link for the queue and the
// heartbeat.
type sessionLink struct {
	s *Session
}

func (l sessionLink) Ready() bool {
	return l.s.link != nil && l.s.link.Ready()
}

func (l sessionLink) Transmit(msg wire.Outbound) error {
	s := l.s
	if s.link == nil {
		return ErrNotConnected
	}
	s.sentAt = s.clock.Now()
	s.logOutbound(msg)
	if msg.IsBinary() {
		return s.link.SendBinary(msg.Payload())
	}
	return s.link.SendText(msg.String())
}

func (l sessionLink) SendProbe() error {
	s := l.s
	if s.link == nil {
		return ErrNotConnected
	}
	s.logControl(controlPing, "")
	return s.link.SendText(wire.Simple(wire.CodePing).String())
}

var (
	_ queue.Link       = sessionLink{}
	_ transport.Prober = sessionLink{}
)

// connHandler forwards transport callbacks to the loop, tagged with the
// generation of the connection they belong to.
type connHandler struct {
	s      *Session
	gen    uint64
	opened chan struct{}
}

func (h *connHandler) OnFrame(f transport.Frame) {
	<-h.opened
	h.s.post(func() { h.s.frame(h.gen, f) })
}

func (h *connHandler) OnClose(err error) {
	<-h.opened
	h.s.post(func() { h.s.linkClosed(h.gen, err) })
}
