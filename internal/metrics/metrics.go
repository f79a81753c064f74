// Package metrics exposes handshake outcome metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/schultz-net/schultz-go/pkg/handshake"
	"github.com/schultz-net/schultz-go/pkg/transport"
)

// Namespace prefixes every metric name.
const Namespace = "schultz"

// Metrics holds the handshake collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	outcomes *prometheus.CounterVec   // outcomes per kind and role
	duration *prometheus.HistogramVec // attempt latency per role
	inflight prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "handshake",
			Name:      "outcomes_total",
			Help:      "Handshake attempts by terminal outcome kind and local role.",
		}, []string{"kind", "role"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "handshake",
			Name:      "duration_seconds",
			Help:      "Duration of handshake attempts, dial included.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"role"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "handshake",
			Name:      "inflight",
			Help:      "Handshake attempts currently running.",
		}),
	}

	m.registry.MustRegister(
		m.outcomes,
		m.duration,
		m.inflight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Expose every kind from the start so rates work before the first event.
	for _, k := range handshake.Kinds() {
		for _, r := range []transport.Role{transport.RoleClient, transport.RoleServer} {
			m.outcomes.WithLabelValues(k.String(), r.String())
		}
	}
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AttemptStarted marks an attempt as running. The returned function must be
// called once when the attempt finishes.
func (m *Metrics) AttemptStarted() (done func()) {
	m.inflight.Inc()
	return m.inflight.Dec
}

// Report records a terminal outcome. Metrics is a reporter.Sink.
func (m *Metrics) Report(o handshake.Outcome) {
	role := o.Role.String()
	m.outcomes.WithLabelValues(o.Kind.String(), role).Inc()
	m.duration.WithLabelValues(role).Observe(o.Duration.Seconds())
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Server serves /metrics on a listener until its context is canceled.
type Server struct {
	srv      *http.Server
	listener net.Listener
}

// Listen binds addr and prepares a metrics server for m.
func Listen(addr string, m *Metrics) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	return &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: l,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve blocks until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
