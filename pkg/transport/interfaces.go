package transport

import "context"

// Link is an open connection as seen by a session.
// Implemented by Conn.
type Link interface {
	// ID returns the connection's unique identifier.
	ID() string

	// Ready reports whether frames can be sent.
	Ready() bool

	// SendText writes a text frame.
	SendText(text string) error

	// SendBinary writes a binary frame.
	SendBinary(data []byte) error

	// Close closes the connection.
	Close() error
}

// Dialer opens links to a device.
// Implemented by WebSocketDialer.
type Dialer interface {
	// Dial connects to url. The handler receives frames until the link
	// closes.
	Dial(ctx context.Context, url string, handler ConnectionHandler) (Link, error)
}

// WebSocketDialer dials devices over WebSocket.
type WebSocketDialer struct {
	Config ConnectionConfig
}

// NewWebSocketDialer creates a dialer with the given connection config.
func NewWebSocketDialer(config ConnectionConfig) *WebSocketDialer {
	return &WebSocketDialer{Config: config}
}

// Dial connects to url.
func (d *WebSocketDialer) Dial(ctx context.Context, url string, handler ConnectionHandler) (Link, error) {
	return Dial(ctx, url, d.Config, handler)
}

// Compile-time interface satisfaction checks.
var (
	_ Link              = (*Conn)(nil)
	_ Dialer            = (*WebSocketDialer)(nil)
	_ ConnectionHandler = HandlerFuncs{}
)
