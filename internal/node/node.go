// Package node runs handshake attempts the way a network node does: it dials
// its bootnodes, optionally accepts inbound connections, and reports the
// outcome of every attempt.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/schultz-net/schultz-go/internal/config"
	"github.com/schultz-net/schultz-go/internal/metrics"
	"github.com/schultz-net/schultz-go/internal/reporter"
	"github.com/schultz-net/schultz-go/pkg/cert"
	"github.com/schultz-net/schultz-go/pkg/handshake"
	"github.com/schultz-net/schultz-go/pkg/log"
	"github.com/schultz-net/schultz-go/pkg/transport"
)

// Options are the process-level collaborators of a node.
type Options struct {
	// Sink receives every outcome. Required.
	Sink reporter.Sink

	// Metrics records attempt counters (optional).
	Metrics *metrics.Metrics

	// Logger for operational output (optional).
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives handshake protocol events (optional).
	ProtocolLogger log.Logger

	// Clock drives certificates and attempts (optional, for tests).
	Clock clock.Clock
}

// Node runs attempts against bootnodes and, if configured, inbound peers.
type Node struct {
	cfg    *config.Config
	opts   Options
	engine *handshake.Engine
	certs  *renewingCertificate

	clock clock.Clock

	serverMu  sync.Mutex
	server    *transport.Server
	ready     chan struct{}
	readyOnce sync.Once
}

// New builds a node from a resolved configuration.
func New(cfg *config.Config, opts Options) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("node: configuration is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("node: outcome sink is required")
	}

	providerOpts := []cert.Option{
		cert.WithLifetime(cfg.CertificateLifetime),
		cert.WithAcceptedSchemes(cfg.AcceptedSchemes...),
	}
	if opts.Clock != nil {
		providerOpts = append(providerOpts, cert.WithClock(opts.Clock))
	}
	provider := cert.NewProvider(providerOpts...)
	certs := newRenewingCertificate(provider, cfg.Identity, cfg.CertificateLifetime)

	// Fail at startup, not on the first attempt.
	if _, err := certs.Certificate(); err != nil {
		return nil, fmt.Errorf("node: issue certificate: %w", err)
	}

	engine, err := handshake.NewEngine(handshake.Config{
		Identity:     cfg.Identity,
		Certificates: certs,
		Validator:    provider,
		Params:       cfg.Params,
		Timeout:      cfg.Timeout,
		MaxFrameSize: cfg.MaxFrameSize,
		Logger:       opts.ProtocolLogger,
		Clock:        opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Node{
		cfg:    cfg,
		opts:   opts,
		engine: engine,
		certs:  certs,
		clock:  clk,
		ready:  make(chan struct{}),
	}, nil
}

// Engine returns the node's handshake engine.
func (n *Node) Engine() *handshake.Engine {
	return n.engine
}

// Ready is closed once the listener (if any) is accepting and the bootnode
// attempts have been started.
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// Addr returns the listen address, or nil when the node is not listening.
func (n *Node) Addr() net.Addr {
	n.serverMu.Lock()
	defer n.serverMu.Unlock()
	if n.server == nil {
		return nil
	}
	return n.server.Addr()
}

// Run dials every bootnode concurrently. Without a listen address it returns
// once all of those attempts finished. With one, it also accepts inbound
// handshakes until ctx is done, then stops accepting and waits for running
// attempts to finish; if a redial interval is configured, bootnodes are
// probed again until then. Every attempt reports exactly one outcome to the
// sink.
func (n *Node) Run(ctx context.Context) error {
	defer n.markReady()

	n.infoLog("node starting",
		"network", n.cfg.Params.NetworkName,
		"version", n.cfg.Params.ProtocolVersion.String(),
		"fingerprint", n.cfg.Identity.Fingerprint().String(),
		"bootnodes", len(n.cfg.Bootnodes))
	if c, err := n.certs.Certificate(); err == nil {
		if info := cert.GetCertificateInfo(c.Leaf()); info != nil {
			n.infoLog("local certificate",
				"fingerprint", info.Fingerprint,
				"not_after", info.NotAfter,
				"signature_algorithm", info.SignatureAlgorithm)
		}
	}

	if n.cfg.ListenAddress != "" {
		srv, err := transport.NewServer(transport.ServerConfig{
			Address:        n.cfg.ListenAddress,
			Handler:        n.handleInbound,
			MaxConnections: n.cfg.MaxConnections,
			OnError: func(err error) {
				n.debugLog("listener error", "error", err)
			},
		})
		if err != nil {
			return fmt.Errorf("node: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("node: %w", err)
		}
		n.serverMu.Lock()
		n.server = srv
		n.serverMu.Unlock()
		n.infoLog("listening", "address", srv.Addr().String())
		defer func() {
			srv.Stop()
			n.infoLog("listener stopped")
		}()
	}

	redial := n.cfg.ListenAddress != "" && n.cfg.RedialInterval > 0

	var g errgroup.Group
	for _, addr := range n.cfg.Bootnodes {
		g.Go(func() error {
			if redial {
				n.redialLoop(ctx, addr)
			} else {
				n.connect(ctx, addr)
			}
			return nil
		})
	}
	n.markReady()
	g.Wait()

	if n.cfg.ListenAddress != "" {
		<-ctx.Done()
	}
	return nil
}

func (n *Node) connect(ctx context.Context, addr string) handshake.Outcome {
	out := n.attempt(func() handshake.Outcome {
		return n.engine.Connect(ctx, uuid.NewString(), addr)
	})
	n.report(out)
	return out
}

// redialLoop probes addr until ctx is done: every RedialInterval while the
// peer accepts, with exponential backoff up to RedialInterval while it
// does not.
func (n *Node) redialLoop(ctx context.Context, addr string) {
	b := newBackoff(n.cfg.RedialInterval)
	for {
		out := n.connect(ctx, addr)
		if ctx.Err() != nil {
			return
		}

		wait := n.cfg.RedialInterval
		if out.Accepted() {
			b.Reset()
		} else {
			wait = b.Next()
		}
		n.debugLog("redial scheduled", "address", addr, "in", wait, "failures", b.Attempts())

		timer := n.clock.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (n *Node) markReady() {
	n.readyOnce.Do(func() { close(n.ready) })
}

func (n *Node) handleInbound(ctx context.Context, conn net.Conn) {
	n.report(n.attempt(func() handshake.Outcome {
		return n.engine.RunAttempt(ctx, uuid.NewString(), conn, transport.RoleServer)
	}))
}

func (n *Node) attempt(run func() handshake.Outcome) handshake.Outcome {
	if n.opts.Metrics != nil {
		done := n.opts.Metrics.AttemptStarted()
		defer done()
	}
	return run()
}

func (n *Node) report(o handshake.Outcome) {
	if n.opts.Metrics != nil {
		n.opts.Metrics.Report(o)
	}
	n.debugLog("attempt finished",
		"attempt", o.AttemptID,
		"role", o.Role.String(),
		"remote", o.RemoteAddr,
		"outcome", o.Kind.String(),
		"duration", o.Duration)
	n.opts.Sink.Report(o)
}

func (n *Node) debugLog(msg string, args ...any) {
	if n.opts.Logger != nil {
		n.opts.Logger.Debug(msg, args...)
	}
}

func (n *Node) infoLog(msg string, args ...any) {
	if n.opts.Logger != nil {
		n.opts.Logger.Info(msg, args...)
	}
}
