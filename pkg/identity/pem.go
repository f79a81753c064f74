package identity

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// PEM block types.
const (
	pemTypeEC    = "EC PRIVATE KEY"
	pemTypePKCS8 = "PRIVATE KEY"
)

// Load parses private key bytes and checks them against the expected scheme.
// PEM ("EC PRIVATE KEY" or "PRIVATE KEY") and raw DER (SEC 1 or PKCS #8)
// are accepted.
func Load(data []byte, scheme Scheme) (*Identity, error) {
	if len(data) == 0 {
		return nil, ErrInvalidKeyBytes
	}
	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != pemTypeEC && block.Type != pemTypePKCS8 {
			return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidKeyBytes, block.Type)
		}
		der = block.Bytes
	}

	key, err := parseECKey(der)
	if err != nil {
		return nil, err
	}

	id, err := FromPrivateKey(key)
	if err != nil {
		return nil, err
	}
	if id.Scheme() != scheme {
		return nil, fmt.Errorf("%w: key is %s, configured %s", ErrSchemeMismatch, id.Scheme(), scheme)
	}
	return id, nil
}

func parseECKey(der []byte) (*ecdsa.PrivateKey, error) {
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	raw, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyBytes, err)
	}
	key, ok := raw.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, raw)
	}
	return key, nil
}

// EncodePEM encodes the identity's private key as an "EC PRIVATE KEY" block.
func (id *Identity) EncodePEM() ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(id.privateKey)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  pemTypeEC,
		Bytes: der,
	}), nil
}

// ReadKeyFile loads an identity from a key file.
func ReadKeyFile(path string, scheme Scheme) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data, scheme)
}

// WriteKeyFile writes the private key to a PEM file with restricted permissions.
func (id *Identity) WriteKeyFile(path string) error {
	data, err := id.EncodePEM()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
