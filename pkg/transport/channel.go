package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/schultz-net/schultz-go/pkg/cert"
	"github.com/schultz-net/schultz-go/pkg/identity"
	"github.com/schultz-net/schultz-go/pkg/log"
	"github.com/schultz-net/schultz-go/pkg/version"
)

// ErrTransport wraps socket and TLS level failures of the secure channel.
var ErrTransport = errors.New("transport failure")

// ChannelConfig configures one secure channel establishment.
type ChannelConfig struct {
	// Certificate is the local node certificate. Required.
	Certificate *cert.Certificate

	// Validator checks the peer certificate once TLS completes. Required.
	Validator CertValidator

	// MaxFrameSize bounds incoming and outgoing frames (default 16 MiB).
	MaxFrameSize uint32

	// Logger receives channel and frame events (optional).
	Logger log.Logger

	// AttemptID labels log events.
	AttemptID string
}

// Channel is an authenticated TLS stream whose peer certificate passed
// validation. PeerKey is the only trusted statement about the peer.
type Channel struct {
	Role            Role
	Conn            *tls.Conn
	State           tls.ConnectionState
	PeerKey         *ecdsa.PublicKey
	PeerFingerprint identity.Fingerprint
	Framer          *Framer

	// ALPNMajor is the major protocol version agreed through ALPN, or 0
	// when the peer offered no protocol.
	ALPNMajor uint32
}

// ConnectAsClient runs the client side of the TLS handshake over conn and
// validates the server's certificate. conn is closed on failure.
func ConnectAsClient(ctx context.Context, conn net.Conn, cfg ChannelConfig) (*Channel, error) {
	return establish(ctx, conn, RoleClient, cfg)
}

// AcceptAsServer runs the server side of the TLS handshake over conn and
// validates the client's certificate. conn is closed on failure.
func AcceptAsServer(ctx context.Context, conn net.Conn, cfg ChannelConfig) (*Channel, error) {
	return establish(ctx, conn, RoleServer, cfg)
}

func establish(ctx context.Context, conn net.Conn, role Role, cfg ChannelConfig) (ch *Channel, err error) {
	defer func() {
		if err != nil {
			conn.Close()
		}
	}()

	if cfg.Validator == nil {
		return nil, fmt.Errorf("%w: no certificate validator", ErrTransport)
	}
	tlsConf, err := NewTLSConfig(role, cfg.Certificate)
	if err != nil {
		return nil, err
	}

	var tlsConn *tls.Conn
	if role == RoleClient {
		tlsConn = tls.Client(conn, tlsConf)
	} else {
		tlsConn = tls.Server(conn, tlsConf)
	}

	logger := log.OrNoop(cfg.Logger)
	logState := func(old, next, reason string) {
		logger.Log(log.Event{
			Timestamp:  time.Now(),
			AttemptID:  cfg.AttemptID,
			Layer:      log.LayerTransport,
			Category:   log.CategoryState,
			LocalRole:  role.LogRole(),
			RemoteAddr: remoteAddrString(conn),
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityChannel,
				OldState: old,
				NewState: next,
				Reason:   reason,
			},
		})
	}

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		logState("CONNECTED", "TLS_FAILED", err.Error())
		return nil, fmt.Errorf("%w: TLS handshake: %w", ErrTransport, err)
	}

	state := tlsConn.ConnectionState()
	if err := VerifyTLS13(state); err != nil {
		logState("CONNECTED", "TLS_FAILED", err.Error())
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	var alpnMajor uint32
	if proto := state.NegotiatedProtocol; proto != "" {
		if alpnMajor, err = version.MajorFromALPN(proto); err != nil {
			logState("CONNECTED", "TLS_FAILED", err.Error())
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}
	}

	// The peer key is accepted only through the shared validation routine.
	peerKey, err := validatePeer(state, cfg.Validator)
	if err != nil {
		logState("TLS_ESTABLISHED", "CERT_REJECTED", err.Error())
		return nil, err
	}

	fp, err := identity.FingerprintOf(peerKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cert.ErrMalformedCertificate, err)
	}

	framer := NewFramerWithMaxSize(tlsConn, cfg.MaxFrameSize)
	if cfg.Logger != nil {
		framer.SetLogger(cfg.Logger, cfg.AttemptID, role.LogRole())
	}

	established := ""
	if state.NegotiatedProtocol != "" {
		established = "alpn " + state.NegotiatedProtocol
	}
	logState("CONNECTED", "TLS_ESTABLISHED", established)

	return &Channel{
		Role:            role,
		Conn:            tlsConn,
		State:           state,
		PeerKey:         peerKey,
		PeerFingerprint: fp,
		Framer:          framer,
		ALPNMajor:       alpnMajor,
	}, nil
}

func validatePeer(state tls.ConnectionState, v CertValidator) (*ecdsa.PublicKey, error) {
	raw, err := cert.PeerLeaf(state)
	if err != nil {
		return nil, err
	}
	return v.Validate(raw)
}

// Challenge derives the session challenge signed by the given role.
func (c *Channel) Challenge(signer Role) ([]byte, error) {
	return Challenge(c.State, signer)
}

// RemoteAddr returns the peer's network address.
func (c *Channel) RemoteAddr() net.Addr {
	return c.Conn.RemoteAddr()
}

// Close closes the TLS connection and the underlying socket.
func (c *Channel) Close() error {
	return c.Conn.Close()
}

func remoteAddrString(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
