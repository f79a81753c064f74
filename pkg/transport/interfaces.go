package transport

import (
	"context"
	"crypto/ecdsa"
	"net"
)

// CertValidator validates a raw peer certificate and returns the public key
// it binds. Implemented by cert.Provider.
type CertValidator interface {
	Validate(raw []byte) (*ecdsa.PublicKey, error)
}

// ConnHandler handles one accepted raw connection. It owns conn and must
// close it. ctx is canceled when the server stops.
type ConnHandler func(ctx context.Context, conn net.Conn)

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	// ReadFrame reads a length-prefixed frame.
	ReadFrame() ([]byte, error)

	// WriteFrame writes a length-prefixed frame.
	WriteFrame(data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ FrameReadWriter = (*Framer)(nil)
)
