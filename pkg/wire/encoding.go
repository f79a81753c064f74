package wire

import (
	"fmt"
	"strings"
)

// Encoding identifies the body encoding declared at the start of a payload.
type Encoding uint8

// Encoding values. Zero is never valid on the wire.
const (
	EncodingCBOR    Encoding = 1
	EncodingCompact Encoding = 2
)

// DefaultEncoding is used when no encoding is configured.
const DefaultEncoding = EncodingCBOR

var encodingNames = map[Encoding]string{
	EncodingCBOR:    "cbor",
	EncodingCompact: "compact",
}

// String returns the encoding name.
func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("encoding(%d)", uint8(e))
}

// IsValid returns true if the encoding is supported.
func (e Encoding) IsValid() bool {
	_, ok := encodingNames[e]
	return ok
}

// ParseEncoding parses an encoding name. The empty string selects
// DefaultEncoding.
func ParseEncoding(s string) (Encoding, error) {
	if s == "" {
		return DefaultEncoding, nil
	}
	for e, name := range encodingNames {
		if strings.EqualFold(s, name) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, s)
}
