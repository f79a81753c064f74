package cert

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/mr-tron/base58"

	"github.com/schultz-net/schultz-go/pkg/identity"
)

// Provider issues node certificates and validates peer certificates.
// A Provider holds no mutable state and is safe for concurrent use.
type Provider struct {
	clock    clock.Clock
	lifetime time.Duration
	skew     time.Duration
	accepted []identity.Scheme
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock sets the time source used for issuing and validation.
func WithClock(c clock.Clock) Option {
	return func(p *Provider) { p.clock = c }
}

// WithLifetime sets the lifetime of issued certificates, capped at MaxLifetime.
func WithLifetime(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.lifetime = min(d, MaxLifetime)
		}
	}
}

// WithClockSkew sets how far NotBefore is backdated.
func WithClockSkew(d time.Duration) Option {
	return func(p *Provider) {
		if d >= 0 {
			p.skew = d
		}
	}
}

// WithAcceptedSchemes sets the key schemes accepted from peers.
func WithAcceptedSchemes(schemes ...identity.Scheme) Option {
	return func(p *Provider) {
		if len(schemes) > 0 {
			p.accepted = slices.Clone(schemes)
		}
	}
}

// NewProvider creates a Provider. By default it uses the wall clock and
// accepts only identity.DefaultScheme.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		clock:    clock.New(),
		lifetime: DefaultLifetime,
		skew:     DefaultClockSkew,
		accepted: []identity.Scheme{identity.DefaultScheme},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Now returns the provider's current time.
func (p *Provider) Now() time.Time {
	return p.clock.Now()
}

// Issue creates a self-signed certificate for the identity. The public key is
// embedded in the subject so it can be recovered from the certificate alone.
func (p *Provider) Issue(id *identity.Identity) (*Certificate, error) {
	if id == nil {
		return nil, identity.ErrNilKey
	}

	spki, err := x509.MarshalPKIXPublicKey(id.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	now := p.clock.Now().UTC().Truncate(time.Second)
	name := pkix.Name{
		Organization: []string{Organization},
		CommonName:   CommonName,
		ExtraNames: []pkix.AttributeTypeAndValue{
			{Type: OIDEmbeddedKey, Value: base58.Encode(spki)},
		},
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(SerialNumber),
		Subject:               name,
		Issuer:                name,
		NotBefore:             now.Add(-p.skew),
		NotAfter:              now.Add(p.lifetime),
		SignatureAlgorithm:    id.Scheme().SignatureAlgorithm(),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, id.PublicKey(), id.PrivateKey())
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse issued certificate: %w", err)
	}

	// A freshly issued certificate must pass our own validation.
	if _, err := p.validateAt(leaf, now, []identity.Scheme{id.Scheme()}); err != nil {
		return nil, fmt.Errorf("issued certificate fails validation: %w", err)
	}

	return &Certificate{
		DER:         der,
		PublicKey:   id.PublicKey(),
		NotBefore:   leaf.NotBefore,
		NotAfter:    leaf.NotAfter,
		Signature:   leaf.Signature,
		Fingerprint: id.Fingerprint(),
		leaf:        leaf,
		privateKey:  id.PrivateKey(),
	}, nil
}

// Validate checks raw peer certificate bytes and returns the embedded public
// key. Checks run in order: structure, self-signature, validity window; the
// embedded key is only interpreted once the self-signature verifies.
// Every error wraps ErrMalformedCertificate.
func (p *Provider) Validate(raw []byte) (*ecdsa.PublicKey, error) {
	leaf, err := x509.ParseCertificate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsable, err)
	}
	return p.validateAt(leaf, p.clock.Now(), p.accepted)
}

func (p *Provider) validateAt(leaf *x509.Certificate, now time.Time, accepted []identity.Scheme) (*ecdsa.PublicKey, error) {
	pub, encoded, err := checkStructure(leaf, accepted)
	if err != nil {
		return nil, err
	}

	if err := leaf.CheckSignature(leaf.SignatureAlgorithm, leaf.RawTBSCertificate, leaf.Signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if err := checkValidity(leaf, now); err != nil {
		return nil, err
	}

	embedded, err := decodeEmbeddedKey(encoded)
	if err != nil {
		return nil, err
	}
	if !embedded.Equal(pub) {
		return nil, ErrEmbeddedKeyMismatch
	}
	return embedded, nil
}
