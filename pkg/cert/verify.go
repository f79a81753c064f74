package cert

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mr-tron/base58"

	"github.com/schultz-net/schultz-go/pkg/identity"
)

// ErrMalformedCertificate is wrapped by every validation failure.
var ErrMalformedCertificate = errors.New("malformed certificate")

// Validation errors, in the order the checks run.
var (
	ErrUnparsable              = fmt.Errorf("%w: cannot parse", ErrMalformedCertificate)
	ErrWrongVersion            = fmt.Errorf("%w: not an X.509 v3 certificate", ErrMalformedCertificate)
	ErrWrongSerialNumber       = fmt.Errorf("%w: wrong serial number", ErrMalformedCertificate)
	ErrNotSelfSigned           = fmt.Errorf("%w: subject and issuer differ", ErrMalformedCertificate)
	ErrWrongKeyType            = fmt.Errorf("%w: public key is not ECDSA", ErrMalformedCertificate)
	ErrWrongCurve              = fmt.Errorf("%w: curve not accepted", ErrMalformedCertificate)
	ErrWrongSignatureAlgorithm = fmt.Errorf("%w: signature algorithm not accepted", ErrMalformedCertificate)
	ErrMissingEmbeddedKey      = fmt.Errorf("%w: subject carries no embedded key", ErrMalformedCertificate)
	ErrInvalidSignature        = fmt.Errorf("%w: self-signature does not verify", ErrMalformedCertificate)
	ErrCertNotYetValid         = fmt.Errorf("%w: certificate is not yet valid", ErrMalformedCertificate)
	ErrCertExpired             = fmt.Errorf("%w: certificate has expired", ErrMalformedCertificate)
	ErrInvalidEmbeddedKey      = fmt.Errorf("%w: embedded key cannot be decoded", ErrMalformedCertificate)
	ErrEmbeddedKeyMismatch     = fmt.Errorf("%w: embedded key differs from certificate key", ErrMalformedCertificate)
)

// checkStructure performs the syntactic checks. It returns the SPKI key and
// the still-undecoded embedded key text.
func checkStructure(leaf *x509.Certificate, accepted []identity.Scheme) (*ecdsa.PublicKey, string, error) {
	if leaf.Version != 3 {
		return nil, "", ErrWrongVersion
	}
	if leaf.SerialNumber == nil || !leaf.SerialNumber.IsInt64() || leaf.SerialNumber.Int64() != SerialNumber {
		return nil, "", ErrWrongSerialNumber
	}
	if !bytes.Equal(leaf.RawSubject, leaf.RawIssuer) {
		return nil, "", ErrNotSelfSigned
	}

	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, "", fmt.Errorf("%w: %T", ErrWrongKeyType, leaf.PublicKey)
	}
	scheme, err := identity.SchemeOf(pub)
	if err != nil || !slices.Contains(accepted, scheme) {
		return nil, "", fmt.Errorf("%w: %s", ErrWrongCurve, pub.Curve.Params().Name)
	}
	// A weaker digest than the one paired with the curve could be used to
	// forge a colliding certificate.
	if leaf.SignatureAlgorithm != scheme.SignatureAlgorithm() {
		return nil, "", fmt.Errorf("%w: %s", ErrWrongSignatureAlgorithm, leaf.SignatureAlgorithm)
	}

	encoded, ok := embeddedKeyText(leaf)
	if !ok {
		return nil, "", ErrMissingEmbeddedKey
	}
	return pub, encoded, nil
}

func checkValidity(leaf *x509.Certificate, now time.Time) error {
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("%w: not before %s", ErrCertNotYetValid, leaf.NotBefore.Format(time.RFC3339))
	}
	if now.After(leaf.NotAfter) {
		return fmt.Errorf("%w: not after %s", ErrCertExpired, leaf.NotAfter.Format(time.RFC3339))
	}
	return nil
}

func embeddedKeyText(leaf *x509.Certificate) (string, bool) {
	for _, atv := range leaf.Subject.Names {
		if !atv.Type.Equal(OIDEmbeddedKey) {
			continue
		}
		s, ok := atv.Value.(string)
		return s, ok && s != ""
	}
	return "", false
}

func decodeEmbeddedKey(encoded string) (*ecdsa.PublicKey, error) {
	der, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmbeddedKey, err)
	}
	raw, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmbeddedKey, err)
	}
	pub, ok := raw.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrInvalidEmbeddedKey, raw)
	}
	return pub, nil
}

// CertificateInfo extracts human-readable information from a certificate.
type CertificateInfo struct {
	Fingerprint        string
	CommonName         string
	Issuer             string
	NotBefore          time.Time
	NotAfter           time.Time
	SignatureAlgorithm string
}

// GetCertificateInfo extracts information from a certificate.
func GetCertificateInfo(leaf *x509.Certificate) *CertificateInfo {
	if leaf == nil {
		return nil
	}
	info := &CertificateInfo{
		CommonName:         leaf.Subject.CommonName,
		Issuer:             leaf.Issuer.CommonName,
		NotBefore:          leaf.NotBefore,
		NotAfter:           leaf.NotAfter,
		SignatureAlgorithm: leaf.SignatureAlgorithm.String(),
	}
	if pub, ok := leaf.PublicKey.(*ecdsa.PublicKey); ok {
		if fp, err := identity.FingerprintOf(pub); err == nil {
			info.Fingerprint = fp.String()
		}
	}
	return info
}

// PeerLeaf returns the raw certificate a TLS peer presented. A node presents
// exactly one self-signed certificate: no certificate or a chain is
// malformed.
func PeerLeaf(state tls.ConnectionState) ([]byte, error) {
	switch len(state.PeerCertificates) {
	case 0:
		return nil, fmt.Errorf("%w: peer presented no certificate", ErrMalformedCertificate)
	case 1:
		return state.PeerCertificates[0].Raw, nil
	default:
		return nil, fmt.Errorf("%w: peer presented a chain of %d certificates",
			ErrMalformedCertificate, len(state.PeerCertificates))
	}
}
