// Package chainspec computes the chain-fork digest that a node advertises in
// its handshake. Nodes on the same network history share the same digest.
package chainspec

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/blake2b"
)

// DigestSize is the size of a chain-fork digest in bytes.
const DigestSize = blake2b.Size256

// ErrInvalidDigest indicates a digest string of the wrong length or alphabet.
var ErrInvalidDigest = errors.New("invalid chain fork digest")

// Digest is a BLAKE2b-256 hash identifying a chain history.
type Digest [DigestSize]byte

// Hash returns the digest of a chainspec document.
func Hash(data []byte) Digest {
	return blake2b.Sum256(data)
}

// HashFile returns the digest of the chainspec file at path.
func HashFile(path string) (Digest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Digest{}, fmt.Errorf("read chainspec: %w", err)
	}
	return Hash(data), nil
}

// FromBytes copies b into a Digest. b must be exactly DigestSize bytes.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, fmt.Errorf("%w: %d bytes", ErrInvalidDigest, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// ParseDigest parses a hex-encoded digest.
func ParseDigest(s string) (Digest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: %v", ErrInvalidDigest, err)
	}
	return FromBytes(b)
}

// String returns the lowercase hex encoding.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 4 bytes in hex, for log lines.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:4])
}

// IsZero reports whether the digest is unset.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Equal compares two digests in constant time.
func (d Digest) Equal(other Digest) bool {
	return subtle.ConstantTimeCompare(d[:], other[:]) == 1
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
