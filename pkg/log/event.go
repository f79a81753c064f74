package log

import (
	"time"

	"github.com/schultz-net/schultz-go/pkg/wire"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// AttemptID uniquely identifies the handshake attempt (UUID).
	AttemptID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates whether the local side dialed or accepted.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// PeerFingerprint is the peer's identity fingerprint in hex
	// (populated once the peer certificate validated).
	PeerFingerprint string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Attempt state
	Outcome     *OutcomeEvent     `cbor:"13,keyasint,omitempty"` // Terminal result
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
	// LayerTransport is the framing and TLS layer.
	LayerTransport Layer = 0
	// LayerWire is the message encoding layer.
	LayerWire Layer = 1
	// LayerHandshake is the handshake state machine.
	LayerHandshake Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerHandshake:
		return "HANDSHAKE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a frame or handshake message.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
	// CategoryOutcome indicates the terminal result of an attempt.
	CategoryOutcome Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryOutcome:
		return "OUTCOME"
	default:
		return "UNKNOWN"
	}
}

// Role indicates whether the local endpoint dialed or accepted.
type Role uint8

const (
	// RoleClient indicates the local side dialed.
	RoleClient Role = 0
	// RoleServer indicates the local side accepted.
	RoleServer Role = 1
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded handshake message at the wire layer.
type MessageEvent struct {
	Encoding         string    `cbor:"1,keyasint"`
	NetworkName      string    `cbor:"2,keyasint"`
	ProtocolVersion  string    `cbor:"3,keyasint"`
	ChainForkHash    string    `cbor:"4,keyasint"`
	ListeningAddress string    `cbor:"5,keyasint,omitempty"`
	SentAt           time.Time `cbor:"6,keyasint"`
	SignatureSize    int       `cbor:"7,keyasint"`
}

// NewMessageEvent summarizes a handshake message for the log.
func NewMessageEvent(msg *wire.HandshakeMessage, enc wire.Encoding) *MessageEvent {
	return &MessageEvent{
		Encoding:         enc.String(),
		NetworkName:      msg.NetworkName,
		ProtocolVersion:  msg.ProtocolVersion.String(),
		ChainForkHash:    msg.ChainForkHash.String(),
		ListeningAddress: msg.ListeningAddress,
		SentAt:           msg.Timestamp,
		SignatureSize:    len(msg.Signature),
	}
}

// StateChangeEvent captures channel and handshake lifecycle events.
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
	// StateEntityChannel indicates a secure channel state change.
	StateEntityChannel StateEntity = 0
	// StateEntityHandshake indicates a handshake state machine transition.
	StateEntityHandshake StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityChannel:
		return "CHANNEL"
	case StateEntityHandshake:
		return "HANDSHAKE"
	default:
		return "UNKNOWN"
	}
}

// OutcomeEvent captures the terminal result of one attempt.
type OutcomeEvent struct {
	// Kind is the outcome kind name (e.g. "ACCEPTED").
	Kind string `cbor:"1,keyasint"`

	// Reason explains a rejection or failure.
	Reason string `cbor:"2,keyasint,omitempty"`

	// LocalValue and PeerValue hold both sides of a failed comparison.
	LocalValue string `cbor:"3,keyasint,omitempty"`
	PeerValue  string `cbor:"4,keyasint,omitempty"`

	// Duration of the attempt, stored as nanoseconds.
	Duration time.Duration `cbor:"5,keyasint"`
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
