package wire

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/schultz-net/schultz-go/pkg/chainspec"
)

// Field numbers of the EncodingCompact body.
const (
	fieldNetworkName      protowire.Number = 1
	fieldVersionMajor     protowire.Number = 2
	fieldVersionMinor     protowire.Number = 3
	fieldVersionPatch     protowire.Number = 4
	fieldChainForkHash    protowire.Number = 5
	fieldListeningAddress protowire.Number = 6
	fieldTimestamp        protowire.Number = 7 // zigzag Unix milliseconds
	fieldSignature        protowire.Number = 8
)

func appendCompact(b []byte, m *HandshakeMessage) []byte {
	b = protowire.AppendTag(b, fieldNetworkName, protowire.BytesType)
	b = protowire.AppendString(b, m.NetworkName)
	b = protowire.AppendTag(b, fieldVersionMajor, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ProtocolVersion.Major))
	b = protowire.AppendTag(b, fieldVersionMinor, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ProtocolVersion.Minor))
	b = protowire.AppendTag(b, fieldVersionPatch, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ProtocolVersion.Patch))
	b = protowire.AppendTag(b, fieldChainForkHash, protowire.BytesType)
	b = protowire.AppendBytes(b, m.ChainForkHash[:])
	if m.ListeningAddress != "" {
		b = protowire.AppendTag(b, fieldListeningAddress, protowire.BytesType)
		b = protowire.AppendString(b, m.ListeningAddress)
	}
	b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Timestamp.UnixMilli()))
	b = protowire.AppendTag(b, fieldSignature, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Signature)
	return b
}

func consumeCompact(b []byte) (*HandshakeMessage, error) {
	var (
		m        HandshakeMessage
		seen     = make(map[protowire.Number]bool, 8)
		millis   int64
		required = []protowire.Number{fieldNetworkName, fieldVersionMajor, fieldChainForkHash, fieldTimestamp, fieldSignature}
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]

		if seen[num] {
			return nil, fmt.Errorf("%w: duplicate field %d", ErrMalformedMessage, num)
		}
		seen[num] = true

		want, known := compactFieldType(num)
		if !known {
			// Unknown fields are skipped for forward compatibility.
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		if typ != want {
			return nil, fmt.Errorf("%w: field %d has wire type %d", ErrMalformedMessage, num, typ)
		}

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedMessage, num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldTimestamp {
				millis = protowire.DecodeZigZag(v)
				continue
			}
			if v > 1<<32-1 {
				return nil, fmt.Errorf("%w: field %d overflows uint32", ErrMalformedMessage, num)
			}
			switch num {
			case fieldVersionMajor:
				m.ProtocolVersion.Major = uint32(v)
			case fieldVersionMinor:
				m.ProtocolVersion.Minor = uint32(v)
			case fieldVersionPatch:
				m.ProtocolVersion.Patch = uint32(v)
			}

		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformedMessage, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldNetworkName:
				m.NetworkName = string(v)
			case fieldChainForkHash:
				hash, err := chainspec.FromBytes(v)
				if err != nil {
					return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
				}
				m.ChainForkHash = hash
			case fieldListeningAddress:
				m.ListeningAddress = string(v)
			case fieldSignature:
				m.Signature = append([]byte(nil), v...)
			}
		}
	}

	for _, num := range required {
		if !seen[num] {
			return nil, fmt.Errorf("%w: missing field %d", ErrMalformedMessage, num)
		}
	}
	m.Timestamp = time.UnixMilli(millis).UTC()
	return &m, nil
}

func compactFieldType(num protowire.Number) (protowire.Type, bool) {
	switch num {
	case fieldVersionMajor, fieldVersionMinor, fieldVersionPatch, fieldTimestamp:
		return protowire.VarintType, true
	case fieldNetworkName, fieldChainForkHash, fieldListeningAddress, fieldSignature:
		return protowire.BytesType, true
	default:
		return 0, false
	}
}
