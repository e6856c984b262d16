package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/espixelstick/esps-go/pkg/log"
)

// Connection states.
type ConnectionState int

const (
	// StateDisconnected indicates no connection.
	StateDisconnected ConnectionState = iota

	// StateConnecting indicates connection in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateClosing indicates close in progress.
	StateClosing
)

// String returns the connection state name.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Connection errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectionClosed = errors.New("connection closed")
)

// Defaults.
const (
	DefaultHandshakeTimeout = 5 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultMaxMessageSize   = 64 * 1024
)

// ConnectionConfig configures a WebSocket connection.
type ConnectionConfig struct {
	// HandshakeTimeout bounds the opening handshake (default: 5s).
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each frame write (default: 5s).
	WriteTimeout time.Duration

	// MaxMessageSize is the largest inbound frame accepted (default: 64KB).
	MaxMessageSize int64

	// ProtocolLogger receives a FrameEvent for every frame (optional).
	ProtocolLogger log.Logger

	// Role is recorded in protocol events.
	Role log.Role

	// Logger for operational messages (optional).
	Logger *slog.Logger
}

// DefaultConnectionConfig returns the default connection configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		MaxMessageSize:   DefaultMaxMessageSize,
	}
}

func (c *ConnectionConfig) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
}

// Frame is one inbound WebSocket message.
type Frame struct {
	Binary bool
	Data   []byte
}

// ConnectionHandler handles connection events. Both methods are called
// from the connection's read goroutine, in order.
type ConnectionHandler interface {
	// OnFrame is called for every inbound frame.
	OnFrame(f Frame)

	// OnClose is called exactly once when the read loop ends. err is nil
	// when the connection was closed locally.
	OnClose(err error)
}

// HandlerFuncs adapts plain functions to ConnectionHandler.
type HandlerFuncs struct {
	Frame func(Frame)
	Close func(error)
}

// OnFrame calls h.Frame if set.
func (h HandlerFuncs) OnFrame(f Frame) {
	if h.Frame != nil {
		h.Frame(f)
	}
}

// OnClose calls h.Close if set.
func (h HandlerFuncs) OnClose(err error) {
	if h.Close != nil {
		h.Close(err)
	}
}

// Conn is a WebSocket connection to a device, or to a client when
// accepted by a device simulator.
type Conn struct {
	id      string
	url     string
	config  ConnectionConfig
	handler ConnectionHandler
	ws      *websocket.Conn

	state     atomic.Int32
	closeOnce sync.Once
	writeMu   sync.Mutex
	done      chan struct{}
}

// Dial opens a WebSocket connection to url and starts reading frames.
func Dial(ctx context.Context, url string, config ConnectionConfig, handler ConnectionHandler) (*Conn, error) {
	config.applyDefaults()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: config.HandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return newConn(ws, url, config, handler), nil
}

var upgrader = websocket.Upgrader{
	// Devices serve any origin on the local network.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Accept upgrades an HTTP request to a WebSocket connection and starts
// reading frames.
func Accept(w http.ResponseWriter, r *http.Request, config ConnectionConfig, handler ConnectionHandler) (*Conn, error) {
	config.applyDefaults()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	return newConn(ws, r.RemoteAddr, config, handler), nil
}

func newConn(ws *websocket.Conn, url string, config ConnectionConfig, handler ConnectionHandler) *Conn {
	if handler == nil {
		handler = HandlerFuncs{}
	}
	ws.SetReadLimit(config.MaxMessageSize)

	c := &Conn{
		id:      uuid.New().String(),
		url:     url,
		config:  config,
		handler: handler,
		ws:      ws,
		done:    make(chan struct{}),
	}
	c.state.Store(int32(StateConnected))
	go c.readLoop()
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// URL returns the remote URL or address.
func (c *Conn) URL() string { return c.url }

// State returns the current connection state.
func (c *Conn) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Ready reports whether frames can be sent.
func (c *Conn) Ready() bool {
	return c.State() == StateConnected
}

// Done is closed once the connection has shut down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// SendText writes a text frame.
func (c *Conn) SendText(text string) error {
	return c.write(websocket.TextMessage, []byte(text))
}

// SendBinary writes a binary frame.
func (c *Conn) SendBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

func (c *Conn) write(messageType int, data []byte) error {
	if !c.Ready() {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.ws.WriteMessage(messageType, data); err != nil {
		c.logError("write", err)
		return fmt.Errorf("write: %w", err)
	}
	c.logFrame(log.DirectionOut, data, messageType == websocket.BinaryMessage)
	return nil
}

// Close closes the connection. The handler's OnClose runs with a nil
// error once the read loop exits. Close is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))

		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.ws.Close()
		c.state.Store(int32(StateDisconnected))
	})
	return err
}

// readLoop reads frames until the connection fails or is closed.
func (c *Conn) readLoop() {
	defer close(c.done)

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			c.finish(err)
			return
		}
		binary := messageType == websocket.BinaryMessage
		c.logFrame(log.DirectionIn, data, binary)
		c.handler.OnFrame(Frame{Binary: binary, Data: data})
	}
}

func (c *Conn) finish(readErr error) {
	local := c.State() != StateConnected
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateDisconnected))
		c.ws.Close()
	})

	var reason error
	if !local {
		if websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			reason = ErrConnectionClosed
		} else {
			reason = fmt.Errorf("read: %w", readErr)
		}
		c.logError("read", readErr)
	}
	c.debugLog("connection closed", "conn_id", c.id, "local", local, "error", readErr)
	c.handler.OnClose(reason)
}

func (c *Conn) logFrame(dir log.Direction, data []byte, binary bool) {
	if c.config.ProtocolLogger == nil {
		return
	}
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		LocalRole:    c.config.Role,
		RemoteAddr:   c.url,
		Frame:        log.NewFrameEvent(data, binary),
	})
}

func (c *Conn) logError(context string, err error) {
	if c.config.ProtocolLogger == nil {
		return
	}
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.id,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		LocalRole:    c.config.Role,
		RemoteAddr:   c.url,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
			Context: context,
		},
	})
}

func (c *Conn) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}
