package identity

import (
	"crypto/ecdsa"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"fmt"
)

// FingerprintSize is the size of a fingerprint in bytes.
const FingerprintSize = sha512.Size

// Fingerprint is the SHA-512 digest of a public key's PKIX DER encoding.
// It serves as the peer's logical address.
type Fingerprint [FingerprintSize]byte

// FingerprintOf computes the fingerprint of an ECDSA public key.
func FingerprintOf(pub *ecdsa.PublicKey) (Fingerprint, error) {
	if pub == nil || pub.X == nil || pub.Y == nil {
		return Fingerprint{}, ErrNilKey
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("marshal public key: %w", err)
	}
	return sha512.Sum512(der), nil
}

// String returns the full fingerprint as lowercase hex.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns the first 8 bytes as hex, for log lines.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:8])
}

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Equal compares two fingerprints in constant time.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return subtle.ConstantTimeCompare(f[:], other[:]) == 1
}

// MarshalText implements encoding.TextMarshaler.
func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// ParseFingerprint parses a hex encoded fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("invalid fingerprint: %w", err)
	}
	if len(b) != FingerprintSize {
		return f, fmt.Errorf("invalid fingerprint length %d, want %d", len(b), FingerprintSize)
	}
	copy(f[:], b)
	return f, nil
}
