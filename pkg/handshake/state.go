package handshake

// State is a step of the per-attempt handshake state machine.
type State uint8

const (
	// StateIdle is the state before any I/O.
	StateIdle State = iota

	// StateTLSEstablishing indicates the TLS handshake is running.
	StateTLSEstablishing

	// StateTLSEstablished indicates the peer certificate validated.
	StateTLSEstablished

	// StateMessageSent indicates the local handshake message was written.
	StateMessageSent

	// StateMessageReceived indicates the peer's message was decoded.
	StateMessageReceived

	// StateValidating indicates the peer's message is being checked.
	StateValidating

	// StateTerminal indicates an outcome was reached.
	StateTerminal
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateTLSEstablishing:
		return "TLS_ESTABLISHING"
	case StateTLSEstablished:
		return "TLS_ESTABLISHED"
	case StateMessageSent:
		return "MESSAGE_SENT"
	case StateMessageReceived:
		return "MESSAGE_RECEIVED"
	case StateValidating:
		return "VALIDATING"
	case StateTerminal:
		return "TERMINAL"
	default:
		return "UNKNOWN"
	}
}
