package cert

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
	"time"

	"github.com/schultz-net/schultz-go/pkg/identity"
)

// Certificate validity periods.
const (
	// DefaultLifetime is the validity period of issued certificates.
	DefaultLifetime = 7 * 24 * time.Hour // 7 days

	// MaxLifetime caps the configurable lifetime so a leaked certificate
	// has bounded replay value.
	MaxLifetime = 90 * 24 * time.Hour // 90 days

	// DefaultClockSkew is how far NotBefore is backdated.
	DefaultClockSkew = time.Minute
)

// Fixed certificate fields. Every node certificate carries serial number 1
// and identical subject and issuer names.
const (
	SerialNumber = 1
	CommonName   = "schultz-node"
	Organization = "schultz"
)

// OIDEmbeddedKey identifies the subject attribute carrying the base58 text
// of the PKIX DER encoded public key.
var OIDEmbeddedKey = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 59420, 1, 1}

// Certificate is a self-signed transport certificate bound to an Identity.
// It is never mutated after creation.
type Certificate struct {
	// DER is the raw certificate.
	DER []byte

	// PublicKey is the key embedded in the subject (equal to the SPKI key).
	PublicKey *ecdsa.PublicKey

	// NotBefore and NotAfter bound the validity window.
	NotBefore time.Time
	NotAfter  time.Time

	// Signature is the self-signature over the TBS certificate.
	Signature []byte

	// Fingerprint is the identity fingerprint of PublicKey.
	Fingerprint identity.Fingerprint

	leaf       *x509.Certificate
	privateKey *ecdsa.PrivateKey
}

// Leaf returns the parsed X.509 certificate.
func (c *Certificate) Leaf() *x509.Certificate {
	return c.leaf
}

// ValidAt returns true if t lies inside the validity window.
func (c *Certificate) ValidAt(t time.Time) bool {
	return !t.Before(c.NotBefore) && !t.After(c.NotAfter)
}

// ExpiresWithin returns true if the certificate expires within d of t.
func (c *Certificate) ExpiresWithin(t time.Time, d time.Duration) bool {
	return !t.Add(d).Before(c.NotAfter)
}

// TLSCertificate converts the certificate to a tls.Certificate for use in
// TLS connections. The result is empty for certificates without a private key.
func (c *Certificate) TLSCertificate() tls.Certificate {
	if c == nil || c.privateKey == nil {
		return tls.Certificate{}
	}
	return tls.Certificate{
		Certificate: [][]byte{c.DER},
		PrivateKey:  c.privateKey,
		Leaf:        c.leaf,
	}
}
