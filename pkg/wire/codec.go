package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for handshake payloads.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for handshake payloads.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Peer input is untrusted: bound container sizes and reject duplicate keys.
	decOpts := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		IndefLength:      cbor.IndefLengthForbidden,
		MaxNestedLevels:  4,
		MaxArrayElements: 16,
		MaxMapPairs:      16,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value under the peer input limits.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Errors returned by Decode.
var (
	ErrMalformedMessage    = errors.New("malformed handshake message")
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
)

// Encode serializes msg as a payload in the given encoding.
func Encode(msg *HandshakeMessage, enc Encoding) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	header, err := Marshal(uint64(enc))
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	switch enc {
	case EncodingCBOR:
		body, err := Marshal(toCBOR(msg))
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		return append(header, body...), nil
	case EncodingCompact:
		return appendCompact(header, msg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
	}
}

// Decode parses a payload and returns the message together with the encoding
// the sender declared.
func Decode(payload []byte) (*HandshakeMessage, Encoding, error) {
	var tag uint64
	body, err := decMode.UnmarshalFirst(payload, &tag)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: encoding declaration: %v", ErrMalformedMessage, err)
	}

	enc := Encoding(tag)
	if uint64(enc) != tag || !enc.IsValid() {
		return nil, 0, fmt.Errorf("%w: declared %d", ErrUnsupportedEncoding, tag)
	}

	var msg *HandshakeMessage
	switch enc {
	case EncodingCBOR:
		var fields cborFields
		if err := Unmarshal(body, &fields); err != nil {
			return nil, enc, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		msg, err = fields.toMessage()
	case EncodingCompact:
		msg, err = consumeCompact(body)
	}
	if err != nil {
		return nil, enc, err
	}

	if err := msg.Validate(); err != nil {
		return nil, enc, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return msg, enc, nil
}
