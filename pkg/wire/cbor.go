package wire

import (
	"fmt"
	"time"

	"github.com/schultz-net/schultz-go/pkg/chainspec"
	"github.com/schultz-net/schultz-go/pkg/version"
)

// cborMessage is the EncodingCBOR body. Keys match the HandshakeMessage doc.
type cborMessage struct {
	NetworkName      string    `cbor:"1,keyasint"`
	ProtocolVersion  [3]uint32 `cbor:"2,keyasint"`
	ChainForkHash    []byte    `cbor:"3,keyasint"`
	ListeningAddress string    `cbor:"4,keyasint,omitempty"`
	Timestamp        int64     `cbor:"5,keyasint"`
	Signature        []byte    `cbor:"6,keyasint"`
}

func toCBOR(m *HandshakeMessage) cborMessage {
	v := m.ProtocolVersion
	return cborMessage{
		NetworkName:      m.NetworkName,
		ProtocolVersion:  [3]uint32{v.Major, v.Minor, v.Patch},
		ChainForkHash:    m.ChainForkHash[:],
		ListeningAddress: m.ListeningAddress,
		Timestamp:        m.Timestamp.UnixMilli(),
		Signature:        m.Signature,
	}
}

// cborFields is the decode side of cborMessage. Absent keys leave their
// field nil so required keys can be told apart from zero values.
type cborFields struct {
	NetworkName      *string  `cbor:"1,keyasint"`
	ProtocolVersion  []uint32 `cbor:"2,keyasint"`
	ChainForkHash    []byte   `cbor:"3,keyasint"`
	ListeningAddress string   `cbor:"4,keyasint"`
	Timestamp        *int64   `cbor:"5,keyasint"`
	Signature        []byte   `cbor:"6,keyasint"`
}

func (c *cborFields) toMessage() (*HandshakeMessage, error) {
	switch {
	case c.NetworkName == nil:
		return nil, fmt.Errorf("%w: missing key 1", ErrMalformedMessage)
	case c.ProtocolVersion == nil:
		return nil, fmt.Errorf("%w: missing key 2", ErrMalformedMessage)
	case len(c.ProtocolVersion) != 3:
		return nil, fmt.Errorf("%w: protocol version has %d components", ErrMalformedMessage, len(c.ProtocolVersion))
	case c.ChainForkHash == nil:
		return nil, fmt.Errorf("%w: missing key 3", ErrMalformedMessage)
	case c.Timestamp == nil:
		return nil, fmt.Errorf("%w: missing key 5", ErrMalformedMessage)
	case c.Signature == nil:
		return nil, fmt.Errorf("%w: missing key 6", ErrMalformedMessage)
	}

	hash, err := chainspec.FromBytes(c.ChainForkHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &HandshakeMessage{
		NetworkName: *c.NetworkName,
		ProtocolVersion: version.Version{
			Major: c.ProtocolVersion[0],
			Minor: c.ProtocolVersion[1],
			Patch: c.ProtocolVersion[2],
		},
		ChainForkHash:    hash,
		ListeningAddress: c.ListeningAddress,
		Timestamp:        time.UnixMilli(*c.Timestamp).UTC(),
		Signature:        c.Signature,
	}, nil
}
