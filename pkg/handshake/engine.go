package handshake

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/schultz-net/schultz-go/pkg/cert"
	"github.com/schultz-net/schultz-go/pkg/identity"
	"github.com/schultz-net/schultz-go/pkg/log"
	"github.com/schultz-net/schultz-go/pkg/transport"
)

// DefaultTimeout bounds one attempt.
const DefaultTimeout = 20 * time.Second

// CertificateSource supplies the local certificate for each attempt.
type CertificateSource interface {
	Certificate() (*cert.Certificate, error)
}

type staticCertificate struct {
	c *cert.Certificate
}

func (s staticCertificate) Certificate() (*cert.Certificate, error) {
	return s.c, nil
}

// StaticCertificate returns a CertificateSource that always yields c.
func StaticCertificate(c *cert.Certificate) CertificateSource {
	return staticCertificate{c: c}
}

// Config configures an Engine.
type Config struct {
	// Identity signs the local handshake message. Required.
	Identity *identity.Identity

	// Certificates yields the certificate presented in TLS. Its key must be
	// the Identity key. Required.
	Certificates CertificateSource

	// Validator checks peer certificates. Required; usually *cert.Provider.
	Validator transport.CertValidator

	// Params are advertised to and required of peers.
	Params Params

	// Timeout bounds each attempt (default: DefaultTimeout).
	Timeout time.Duration

	// MaxFrameSize bounds handshake frames (default: 16 MiB).
	MaxFrameSize uint32

	// Dialer opens outbound connections for Connect (optional).
	Dialer *transport.Dialer

	// Logger receives protocol events (optional).
	Logger log.Logger

	// Clock stamps outgoing messages and measures attempts (optional).
	Clock clock.Clock
}

// Engine runs handshake attempts. It holds no per-attempt state and is safe
// for concurrent use.
type Engine struct {
	cfg    Config
	clock  clock.Clock
	logger log.Logger
	dialer *transport.Dialer
}

// NewEngine validates cfg and creates an engine.
func NewEngine(cfg Config) (*Engine, error) {
	var errs []error
	if cfg.Identity == nil {
		errs = append(errs, errors.New("identity is required"))
	}
	if cfg.Certificates == nil {
		errs = append(errs, errors.New("certificate source is required"))
	}
	if cfg.Validator == nil {
		errs = append(errs, errors.New("certificate validator is required"))
	}
	if err := cfg.Params.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Timeout < 0 {
		errs = append(errs, fmt.Errorf("negative timeout %s", cfg.Timeout))
	}
	if err := multierr.Combine(errs...); err != nil {
		return nil, fmt.Errorf("handshake engine: %w", err)
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	e := &Engine{
		cfg:    cfg,
		clock:  cfg.Clock,
		logger: log.OrNoop(cfg.Logger),
		dialer: cfg.Dialer,
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.dialer == nil {
		e.dialer = &transport.Dialer{}
	}
	return e, nil
}

// Params returns the engine's network parameters.
func (e *Engine) Params() Params {
	return e.cfg.Params
}

// Timeout returns the per-attempt timeout.
func (e *Engine) Timeout() time.Duration {
	return e.cfg.Timeout
}

// Run runs one attempt over conn in the given role under a fresh attempt ID.
func (e *Engine) Run(ctx context.Context, conn net.Conn, role transport.Role) Outcome {
	return e.RunAttempt(ctx, uuid.NewString(), conn, role)
}

// RunAttempt runs one attempt over conn. It owns conn: the socket is closed
// before RunAttempt returns, whatever the outcome. Exactly one outcome is
// returned and no panic escapes.
func (e *Engine) RunAttempt(ctx context.Context, attemptID string, conn net.Conn, role transport.Role) Outcome {
	start := e.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()
	return e.run(ctx, attemptID, conn, role, start)
}

// Connect dials address and runs a client attempt. The dial shares the
// attempt timeout; a failed dial is reported as the attempt's outcome.
func (e *Engine) Connect(ctx context.Context, attemptID, address string) Outcome {
	start := e.clock.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	conn, err := e.dialer.Dial(ctx, address)
	if err != nil {
		a := e.newAttempt(attemptID, nil, transport.RoleClient)
		a.remote = address
		out := a.outcome(ctx, nil, err)
		out.Duration = e.clock.Since(start)
		a.finish(out)
		return out
	}
	return e.run(ctx, attemptID, conn, transport.RoleClient, start)
}

func (e *Engine) run(ctx context.Context, attemptID string, conn net.Conn, role transport.Role, start time.Time) (out Outcome) {
	a := e.newAttempt(attemptID, conn, role)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		conn.Close()
		a.waitWatcher()
		if r := recover(); r != nil {
			out = NewOutcome(attemptID, role, a.remote, fmt.Errorf("%w: panic: %v", ErrInternal, r))
		}
		out.Duration = e.clock.Since(start)
		a.finish(out)
	}()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	peer, err := a.execute(ctx)
	return a.outcome(ctx, peer, err)
}
