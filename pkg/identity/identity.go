package identity

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"errors"
	"fmt"
	"hash"
)

// Identity errors.
var (
	ErrNilKey          = errors.New("private key is nil")
	ErrUnknownScheme   = errors.New("unknown key scheme")
	ErrSchemeMismatch  = errors.New("key does not match scheme")
	ErrUnsupportedKey  = errors.New("unsupported key type")
	ErrInvalidKeyBytes = errors.New("invalid private key bytes")
)

// Scheme identifies the asymmetric algorithm family of an identity key.
type Scheme uint8

const (
	// SchemeECDSAP521 is ECDSA over P-521 with SHA-512 digests.
	SchemeECDSAP521 Scheme = iota + 1

	// SchemeECDSAP256 is ECDSA over P-256 with SHA-256 digests.
	SchemeECDSAP256
)

// DefaultScheme is the scheme real network nodes use for transport identities.
const DefaultScheme = SchemeECDSAP521

// String returns the scheme name as used in configuration files.
func (s Scheme) String() string {
	switch s {
	case SchemeECDSAP521:
		return "ecdsa-p521"
	case SchemeECDSAP256:
		return "ecdsa-p256"
	default:
		return "unknown"
	}
}

// ParseScheme parses a scheme name. The empty string selects DefaultScheme.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "", "ecdsa-p521", "p521", "secp521r1":
		return SchemeECDSAP521, nil
	case "ecdsa-p256", "p256", "secp256r1":
		return SchemeECDSAP256, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// Curve returns the elliptic curve used by the scheme.
func (s Scheme) Curve() elliptic.Curve {
	switch s {
	case SchemeECDSAP521:
		return elliptic.P521()
	case SchemeECDSAP256:
		return elliptic.P256()
	default:
		return nil
	}
}

// Hash returns the digest algorithm paired with the scheme.
func (s Scheme) Hash() crypto.Hash {
	switch s {
	case SchemeECDSAP256:
		return crypto.SHA256
	default:
		return crypto.SHA512
	}
}

// SignatureAlgorithm returns the X.509 signature algorithm for certificates
// signed with a key of this scheme.
func (s Scheme) SignatureAlgorithm() x509.SignatureAlgorithm {
	switch s {
	case SchemeECDSAP521:
		return x509.ECDSAWithSHA512
	case SchemeECDSAP256:
		return x509.ECDSAWithSHA256
	default:
		return x509.UnknownSignatureAlgorithm
	}
}

func (s Scheme) newHash() hash.Hash {
	if s == SchemeECDSAP256 {
		return sha256.New()
	}
	return sha512.New()
}

// SchemeOf returns the scheme matching the curve of an ECDSA public key.
func SchemeOf(pub *ecdsa.PublicKey) (Scheme, error) {
	if pub == nil || pub.Curve == nil {
		return 0, ErrNilKey
	}
	switch pub.Curve.Params().Name {
	case "P-521":
		return SchemeECDSAP521, nil
	case "P-256":
		return SchemeECDSAP256, nil
	default:
		return 0, fmt.Errorf("%w: curve %s", ErrUnsupportedKey, pub.Curve.Params().Name)
	}
}

// Identity is the node's asymmetric keypair together with its fingerprint.
// It is immutable after construction and safe to share between goroutines.
type Identity struct {
	scheme      Scheme
	privateKey  *ecdsa.PrivateKey
	fingerprint Fingerprint
}

// Generate creates a fresh identity for the given scheme.
func Generate(scheme Scheme) (*Identity, error) {
	curve := scheme.Curve()
	if curve == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScheme, scheme)
	}
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", scheme, err)
	}
	return FromPrivateKey(key)
}

// FromPrivateKey wraps an existing ECDSA private key.
func FromPrivateKey(key *ecdsa.PrivateKey) (*Identity, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	scheme, err := SchemeOf(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	fp, err := FingerprintOf(&key.PublicKey)
	if err != nil {
		return nil, err
	}
	return &Identity{
		scheme:      scheme,
		privateKey:  key,
		fingerprint: fp,
	}, nil
}

// Scheme returns the identity's key scheme.
func (id *Identity) Scheme() Scheme {
	return id.scheme
}

// PublicKey returns the identity's public key.
func (id *Identity) PublicKey() *ecdsa.PublicKey {
	return &id.privateKey.PublicKey
}

// PrivateKey returns the identity's private key. Callers must not modify it.
func (id *Identity) PrivateKey() *ecdsa.PrivateKey {
	return id.privateKey
}

// Fingerprint returns the stable digest of the public key.
func (id *Identity) Fingerprint() Fingerprint {
	return id.fingerprint
}

// Sign signs the exact challenge bytes. The challenge is hashed with the
// scheme digest and the signature is ASN.1 DER encoded.
func (id *Identity) Sign(challenge []byte) ([]byte, error) {
	digest := digestOf(id.scheme, challenge)
	sig, err := ecdsa.SignASN1(rand.Reader, id.privateKey, digest)
	if err != nil {
		return nil, fmt.Errorf("sign challenge: %w", err)
	}
	return sig, nil
}

// Verify reports whether sig is a valid signature of challenge under pub.
// Malformed keys or signatures yield false.
func Verify(pub *ecdsa.PublicKey, challenge, sig []byte) bool {
	if pub == nil || pub.X == nil || pub.Y == nil || len(sig) == 0 {
		return false
	}
	scheme, err := SchemeOf(pub)
	if err != nil {
		return false
	}
	return ecdsa.VerifyASN1(pub, digestOf(scheme, challenge), sig)
}

func digestOf(s Scheme, data []byte) []byte {
	h := s.newHash()
	h.Write(data)
	return h.Sum(nil)
}
