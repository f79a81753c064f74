package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ServerConfig configures a listener for inbound handshakes.
type ServerConfig struct {
	// Address to listen on (e.g., ":35000" or "127.0.0.1:35000").
	Address string

	// Handler is called in its own goroutine for every accepted connection.
	Handler ConnHandler

	// MaxConnections bounds concurrently handled connections. Connections
	// above the limit are closed immediately. Zero means unlimited.
	MaxConnections int

	// OnError is called for accept errors and rejected connections (optional).
	OnError func(err error)
}

// ErrTooManyConnections is reported when MaxConnections is reached.
var ErrTooManyConnections = errors.New("too many concurrent connections")

// Server accepts raw TCP connections and hands each one to the handler.
// It performs no TLS itself; the handler runs the handshake.
type Server struct {
	config   ServerConfig
	listener net.Listener

	// Active connections
	conns   map[net.Conn]struct{}
	connsMu sync.Mutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if config.Address == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	return &Server{
		config: config,
		conns:  make(map[net.Conn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(s.ctx, "tcp", s.config.Address)
	if err != nil {
		s.cancel()
		return fmt.Errorf("%w: listen %s: %w", ErrTransport, s.config.Address, err)
	}
	s.listener = listener

	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops accepting, closes all active connections and waits for every
// handler to return.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}

	s.cancel()
	err := s.listener.Close()

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return err
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of connections being handled.
func (s *Server) ConnectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.reportError(fmt.Errorf("accept: %w", err))

			// Temporary failures such as EMFILE: back off instead of spinning.
			backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
			select {
			case <-time.After(backoff):
			case <-s.ctx.Done():
				return
			}
			continue
		}
		backoff = 0

		if !s.track(conn) {
			conn.Close()
			s.reportError(fmt.Errorf("%w: dropped %s", ErrTooManyConnections, conn.RemoteAddr()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.config.Handler(s.ctx, conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()

	if !s.running.Load() {
		return false
	}
	if s.config.MaxConnections > 0 && len(s.conns) >= s.config.MaxConnections {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) reportError(err error) {
	if s.config.OnError != nil {
		s.config.OnError(err)
	}
}
