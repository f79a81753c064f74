package handshake

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/schultz-net/schultz-go/pkg/cert"
	"github.com/schultz-net/schultz-go/pkg/identity"
	"github.com/schultz-net/schultz-go/pkg/transport"
	"github.com/schultz-net/schultz-go/pkg/version"
	"github.com/schultz-net/schultz-go/pkg/wire"
)

// Kind is the terminal result class of one attempt.
type Kind uint8

const (
	// KindUnknown is the zero value and never reported.
	KindUnknown Kind = iota

	// KindAccepted indicates every check passed.
	KindAccepted

	// KindRejectedIncompatibleNetwork indicates a different network name or
	// chain fork hash.
	KindRejectedIncompatibleNetwork

	// KindRejectedIncompatibleVersion indicates an incompatible protocol
	// version or an unsupported message encoding.
	KindRejectedIncompatibleVersion

	// KindRejectedBadSignature indicates the message signature does not verify
	// against the key in the peer certificate.
	KindRejectedBadSignature

	// KindRejectedMalformedCertificate indicates the peer certificate failed
	// validation.
	KindRejectedMalformedCertificate

	// KindTransportFailed indicates a socket, TLS or framing failure.
	KindTransportFailed

	// KindTimedOut indicates the attempt deadline passed.
	KindTimedOut
)

var kindNames = map[Kind]string{
	KindUnknown:                      "UNKNOWN",
	KindAccepted:                     "ACCEPTED",
	KindRejectedIncompatibleNetwork:  "REJECTED_INCOMPATIBLE_NETWORK",
	KindRejectedIncompatibleVersion:  "REJECTED_INCOMPATIBLE_VERSION",
	KindRejectedBadSignature:         "REJECTED_BAD_SIGNATURE",
	KindRejectedMalformedCertificate: "REJECTED_MALFORMED_CERTIFICATE",
	KindTransportFailed:              "TRANSPORT_FAILED",
	KindTimedOut:                     "TIMED_OUT",
}

// Kinds returns every reportable kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindAccepted,
		KindRejectedIncompatibleNetwork,
		KindRejectedIncompatibleVersion,
		KindRejectedBadSignature,
		KindRejectedMalformedCertificate,
		KindTransportFailed,
		KindTimedOut,
	}
}

// String returns the kind name, e.g. "REJECTED_BAD_SIGNATURE".
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND(%d)", uint8(k))
}

// IsRejection reports whether the peer was reached and refused.
func (k Kind) IsRejection() bool {
	switch k {
	case KindRejectedIncompatibleNetwork, KindRejectedIncompatibleVersion,
		KindRejectedBadSignature, KindRejectedMalformedCertificate:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses a kind name (case-insensitive).
func ParseKind(s string) (Kind, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for _, k := range Kinds() {
		if kindNames[k] == upper {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown outcome kind %q", s)
}

// Handshake rejection errors.
var (
	ErrBadSignature      = errors.New("handshake signature does not verify against peer certificate key")
	ErrNetworkMismatch   = errors.New("network name mismatch")
	ErrChainForkMismatch = errors.New("chain fork hash mismatch")
	ErrUnexpectedFrame   = errors.New("unexpected frame before validation completed")
	ErrAttemptCanceled   = errors.New("attempt canceled")
	ErrInternal          = errors.New("internal error")
)

// MismatchError reports a parameter both nodes must agree on.
type MismatchError struct {
	Err   error
	Local string
	Peer  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: local %q, peer %q", e.Err, e.Local, e.Peer)
}

func (e *MismatchError) Unwrap() error {
	return e.Err
}

// Classify maps an attempt error to its outcome kind. A nil error is
// KindAccepted.
func Classify(err error) Kind {
	var ne net.Error
	switch {
	case err == nil:
		return KindAccepted
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.As(err, &ne) && ne.Timeout():
		return KindTimedOut
	case errors.Is(err, cert.ErrMalformedCertificate):
		return KindRejectedMalformedCertificate
	case errors.Is(err, ErrBadSignature):
		return KindRejectedBadSignature
	case errors.Is(err, ErrNetworkMismatch), errors.Is(err, ErrChainForkMismatch):
		return KindRejectedIncompatibleNetwork
	case errors.Is(err, version.ErrIncompatible), errors.Is(err, wire.ErrUnsupportedEncoding):
		return KindRejectedIncompatibleVersion
	default:
		return KindTransportFailed
	}
}

// PeerRecord describes a peer that reached the validation step.
type PeerRecord struct {
	Fingerprint       identity.Fingerprint
	AdvertisedAddress string
	ProtocolVersion   version.Version
	NetworkName       string
	Encoding          wire.Encoding

	// ClockSkew is the peer's message timestamp minus the local time the
	// message was decoded.
	ClockSkew time.Duration

	// Outcome is the kind of the attempt that produced this record.
	Outcome Kind
}

// Outcome is the single terminal result of one attempt.
type Outcome struct {
	AttemptID  string
	Role       transport.Role
	RemoteAddr string
	Kind       Kind
	Reason     string

	// LocalValue and PeerValue are set for network and version mismatches.
	LocalValue string
	PeerValue  string

	// Peer is set once the peer certificate validated and its message was
	// decoded, whatever the outcome.
	Peer *PeerRecord

	Duration time.Duration

	// Err is the underlying error; nil when accepted.
	Err error
}

// Accepted reports whether the attempt was accepted.
func (o Outcome) Accepted() bool {
	return o.Kind == KindAccepted
}

// String returns a one-line summary.
func (o Outcome) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", o.Role, o.RemoteAddr, o.Kind)
	if o.Peer != nil {
		fmt.Fprintf(&b, " peer=%s", o.Peer.Fingerprint.Short())
	}
	if o.Reason != "" {
		fmt.Fprintf(&b, ": %s", o.Reason)
	}
	return b.String()
}

// NewOutcome builds the outcome for err, filling the mismatch values when
// err carries them.
func NewOutcome(attemptID string, role transport.Role, remote string, err error) Outcome {
	o := Outcome{
		AttemptID:  attemptID,
		Role:       role,
		RemoteAddr: remote,
		Kind:       Classify(err),
		Err:        err,
	}
	if err == nil {
		return o
	}
	o.Reason = err.Error()

	var mismatch *MismatchError
	var incompatible *version.IncompatibleError
	switch {
	case errors.As(err, &mismatch):
		o.LocalValue, o.PeerValue = mismatch.Local, mismatch.Peer
	case errors.As(err, &incompatible):
		o.LocalValue, o.PeerValue = incompatible.Local.String(), incompatible.Peer.String()
	}
	return o
}
