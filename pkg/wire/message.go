package wire

import (
	"errors"
	"fmt"
	"time"

	"github.com/schultz-net/schultz-go/pkg/chainspec"
	"github.com/schultz-net/schultz-go/pkg/version"
)

// Field limits enforced on both encode and decode.
const (
	MaxNetworkNameLen = 256
	MaxAddressLen     = 256
	MaxSignatureLen   = 1024
)

// ErrInvalidMessage indicates a message that violates the field limits.
var ErrInvalidMessage = errors.New("invalid handshake message")

// HandshakeMessage is the single application message each side sends after
// the TLS handshake. It asserts network membership and proves possession of
// the key in the sender's certificate.
//
// CBOR encoding (EncodingCBOR):
//
//	{
//	  1: networkName,      // text
//	  2: protocolVersion,  // [major, minor, patch]
//	  3: chainForkHash,    // bytes(32)
//	  4: listeningAddress, // text, omitted when empty
//	  5: timestamp,        // int, Unix milliseconds
//	  6: signature         // bytes, ASN.1 ECDSA over the session challenge
//	}
type HandshakeMessage struct {
	NetworkName     string
	ProtocolVersion version.Version
	ChainForkHash   chainspec.Digest

	// ListeningAddress is the address the sender accepts connections on.
	// Empty means the sender does not listen.
	ListeningAddress string

	// Timestamp has millisecond precision and is always UTC.
	Timestamp time.Time

	Signature []byte
}

// Validate checks the field limits.
func (m *HandshakeMessage) Validate() error {
	switch {
	case m.NetworkName == "":
		return fmt.Errorf("%w: empty network name", ErrInvalidMessage)
	case len(m.NetworkName) > MaxNetworkNameLen:
		return fmt.Errorf("%w: network name is %d bytes", ErrInvalidMessage, len(m.NetworkName))
	case len(m.ListeningAddress) > MaxAddressLen:
		return fmt.Errorf("%w: listening address is %d bytes", ErrInvalidMessage, len(m.ListeningAddress))
	case len(m.Signature) == 0:
		return fmt.Errorf("%w: missing signature", ErrInvalidMessage)
	case len(m.Signature) > MaxSignatureLen:
		return fmt.Errorf("%w: signature is %d bytes", ErrInvalidMessage, len(m.Signature))
	}
	return nil
}

// Equal reports whether two messages carry the same values.
func (m *HandshakeMessage) Equal(other *HandshakeMessage) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.NetworkName == other.NetworkName &&
		m.ProtocolVersion == other.ProtocolVersion &&
		m.ChainForkHash == other.ChainForkHash &&
		m.ListeningAddress == other.ListeningAddress &&
		m.Timestamp.Equal(other.Timestamp) &&
		string(m.Signature) == string(other.Signature)
}

// NormalizeTime truncates t to the precision carried on the wire.
func NormalizeTime(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}
