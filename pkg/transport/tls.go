package transport

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/schultz-net/schultz-go/pkg/cert"
	"github.com/schultz-net/schultz-go/pkg/log"
	"github.com/schultz-net/schultz-go/pkg/version"
)

// Role is the side of the connection the local node plays.
type Role uint8

const (
	// RoleClient is the dialing side.
	RoleClient Role = iota
	// RoleServer is the accepting side.
	RoleServer
)

// String returns "client" or "server".
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Peer returns the role of the other side.
func (r Role) Peer() Role {
	if r == RoleClient {
		return RoleServer
	}
	return RoleClient
}

// LogRole converts the role for protocol log events.
func (r Role) LogRole() log.Role {
	if r == RoleServer {
		return log.RoleServer
	}
	return log.RoleClient
}

// ErrNoCertificate indicates a TLS config was requested without a usable
// local certificate.
var ErrNoCertificate = errors.New("local certificate is required")

// NewTLSConfig creates the TLS configuration for one side of a handshake.
//
// Both sides present their self-signed certificate and require the peer's.
// Chain verification is disabled: a self-signed node certificate has no
// chain, and trust is established by validating the peer certificate with
// cert.Provider once the TLS handshake completes.
func NewTLSConfig(role Role, own *cert.Certificate) (*tls.Config, error) {
	tc := own.TLSCertificate()
	if len(tc.Certificate) == 0 {
		return nil, ErrNoCertificate
	}

	cfg := &tls.Config{
		// TLS 1.3 only - no fallback
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,

		Certificates: []tls.Certificate{tc},

		// Offered, never required: deployed nodes do not negotiate ALPN.
		NextProtos: version.SupportedALPNProtocols(),

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		// Session tickets disabled (no resumption)
		SessionTicketsDisabled: true,

		InsecureSkipVerify: true,
	}

	if role == RoleServer {
		cfg.ClientAuth = tls.RequireAnyClientCert
	}
	return cfg, nil
}

// VerifyTLS13 checks that a TLS connection is using TLS 1.3.
func VerifyTLS13(state tls.ConnectionState) error {
	if state.Version != tls.VersionTLS13 {
		return fmt.Errorf("TLS version %x is not TLS 1.3 (0x0304)", state.Version)
	}
	return nil
}
