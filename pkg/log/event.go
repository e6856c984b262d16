package log

import "time"

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether this is the client or a simulated device.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer URL or address.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// DeviceName is the board name reported by the device, once known.
	DeviceName string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/session state
	ControlMsg  *ControlMsgEvent  `cbor:"13,keyasint,omitempty"` // Heartbeat and close
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the WebSocket frame layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message layer (classified frames).
	LayerWire Layer = 1
	// LayerSession is the session controller.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a command, reply or stream frame.
	CategoryMessage Category = 0
	// CategoryControl indicates a heartbeat or close.
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which end of the link wrote the event.
type Role uint8

const (
	// RoleClient indicates the configuration client.
	RoleClient Role = 0
	// RoleDevice indicates a device or device simulator.
	RoleDevice Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// MaxFrameData is the number of frame bytes kept in a FrameEvent.
const MaxFrameData = 512

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Binary is set for binary WebSocket frames.
	Binary bool `cbor:"2,keyasint,omitempty"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent copies up to MaxFrameData bytes of data.
func NewFrameEvent(data []byte, binary bool) *FrameEvent {
	n := len(data)
	if n > MaxFrameData {
		n = MaxFrameData
	}
	kept := make([]byte, n)
	copy(kept, data)
	return &FrameEvent{
		Size:      len(data),
		Binary:    binary,
		Data:      kept,
		Truncated: n < len(data),
	}
}

// MessageEvent captures a classified message at the wire layer.
type MessageEvent struct {
	// Type distinguishes commands, replies and stream frames.
	Type MessageType `cbor:"1,keyasint"`

	// Kind is the decoded message kind (STATUS, CONFIG, ACK, ...).
	Kind string `cbor:"2,keyasint,omitempty"`

	// Text is the text payload, truncated to MaxFrameData bytes.
	Text string `cbor:"3,keyasint,omitempty"`

	// Section is the configuration section, if any.
	Section string `cbor:"4,keyasint,omitempty"`

	// ResponseClass is the timeout class of a command.
	ResponseClass string `cbor:"5,keyasint,omitempty"`

	// Payload is the decoded JSON body, if any.
	Payload any `cbor:"6,keyasint,omitempty"`

	// Latency is the time since the in-flight command was sent (replies only).
	// Stored as nanoseconds.
	Latency *time.Duration `cbor:"7,keyasint,omitempty"`
}

// MessageType distinguishes commands, replies and stream frames.
type MessageType uint8

const (
	// MessageTypeCommand indicates a message sent to the device.
	MessageTypeCommand MessageType = 0
	// MessageTypeReply indicates a text message from the device.
	MessageTypeReply MessageType = 1
	// MessageTypeStream indicates a binary pixel snapshot.
	MessageTypeStream MessageType = 2
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeCommand:
		return "COMMAND"
	case MessageTypeReply:
		return "REPLY"
	case MessageTypeStream:
		return "STREAM"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a session state change.
	StateEntitySession StateEntity = 1
	// StateEntityHeartbeat indicates a liveness state change.
	StateEntityHeartbeat StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntityHeartbeat:
		return "HEARTBEAT"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures heartbeat probes and close notifications.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`

	// Reason accompanies close messages.
	Reason string `cbor:"2,keyasint,omitempty"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgPing indicates a heartbeat probe.
	ControlMsgPing ControlMsgType = 0
	// ControlMsgPong indicates a probe reply.
	ControlMsgPong ControlMsgType = 1
	// ControlMsgClose indicates a close.
	ControlMsgClose ControlMsgType = 2
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgPing:
		return "PING"
	case ControlMsgPong:
		return "PONG"
	case ControlMsgClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
