package cert

import (
	"encoding/pem"
	"errors"
	"os"
)

// ErrInvalidPEM indicates a missing or mistyped PEM block.
var ErrInvalidPEM = errors.New("invalid PEM data")

// EncodePEM encodes the certificate to PEM format.
func (c *Certificate) EncodePEM() []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: c.DER,
	})
}

// DecodePEM returns the DER bytes of a PEM-encoded certificate.
// The result still needs Provider.Validate before it can be trusted.
func DecodePEM(data []byte) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, ErrInvalidPEM
	}
	return block.Bytes, nil
}

// WriteFile writes the certificate to a PEM file.
func (c *Certificate) WriteFile(path string) error {
	return os.WriteFile(path, c.EncodePEM(), 0644)
}

// ReadFile reads DER bytes from a PEM certificate file.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodePEM(data)
}
