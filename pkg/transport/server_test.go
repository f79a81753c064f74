package transport_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/schultz-net/schultz-go/pkg/cert"
	"github.com/schultz-net/schultz-go/pkg/identity"
	"github.com/schultz-net/schultz-go/pkg/transport"
)

func TestNewServerValidation(t *testing.T) {
	if _, err := transport.NewServer(transport.ServerConfig{Address: "127.0.0.1:0"}); err == nil {
		t.Error("expected error without handler")
	}
	if _, err := transport.NewServer(transport.ServerConfig{Handler: func(context.Context, net.Conn) {}}); err == nil {
		t.Error("expected error without address")
	}
}

func TestServerHandshake(t *testing.T) {
	p := cert.NewProvider()
	serverNode := newNode(t, p, identity.SchemeECDSAP521)
	clientNode := newNode(t, p, identity.SchemeECDSAP521)

	peers := make(chan identity.Fingerprint, 1)
	server, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: func(ctx context.Context, conn net.Conn) {
			ch, err := transport.AcceptAsServer(ctx, conn, transport.ChannelConfig{
				Certificate: serverNode.cert,
				Validator:   p,
			})
			if err != nil {
				t.Errorf("AcceptAsServer failed: %v", err)
				return
			}
			defer ch.Close()
			peers <- ch.PeerFingerprint
		},
	})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	conn, err := transport.Dial(ctx, server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	ch, err := transport.ConnectAsClient(ctx, conn, transport.ChannelConfig{
		Certificate: clientNode.cert,
		Validator:   p,
	})
	if err != nil {
		t.Fatalf("ConnectAsClient failed: %v", err)
	}
	defer ch.Close()

	if !ch.PeerKey.Equal(serverNode.id.PublicKey()) {
		t.Error("client learned the wrong server key")
	}

	select {
	case fp := <-peers:
		if fp != clientNode.id.Fingerprint() {
			t.Errorf("server saw peer %s, want %s", fp.Short(), clientNode.id.Fingerprint().Short())
		}
	case <-ctx.Done():
		t.Fatal("server handler did not complete")
	}
}

func TestServerConcurrentConnections(t *testing.T) {
	release := make(chan struct{})
	var handled atomic.Int32

	server, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: func(ctx context.Context, conn net.Conn) {
			defer conn.Close()
			handled.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
			}
		},
	})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Start(ctx); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	numClients := 5
	var wg sync.WaitGroup
	conns := make([]net.Conn, numClients)
	for i := range numClients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := transport.Dial(ctx, server.Addr().String())
			if err != nil {
				t.Errorf("Client %d: connection failed: %v", i, err)
				return
			}
			conns[i] = conn
		}()
	}
	wg.Wait()

	waitFor(t, func() bool { return int(handled.Load()) == numClients })
	if got := server.ConnectionCount(); got != numClients {
		t.Errorf("ConnectionCount() = %d, want %d", got, numClients)
	}

	close(release)
	waitFor(t, func() bool { return server.ConnectionCount() == 0 })

	for _, conn := range conns {
		if conn != nil {
			conn.Close()
		}
	}
}

func TestServerMaxConnections(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	var rejected atomic.Int32
	server, err := transport.NewServer(transport.ServerConfig{
		Address:        "127.0.0.1:0",
		MaxConnections: 1,
		Handler: func(ctx context.Context, conn net.Conn) {
			defer conn.Close()
			select {
			case <-release:
			case <-ctx.Done():
			}
		},
		OnError: func(err error) {
			if errors.Is(err, transport.ErrTooManyConnections) {
				rejected.Add(1)
			}
		},
	})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Start(ctx); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	first, err := transport.Dial(ctx, server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer first.Close()
	waitFor(t, func() bool { return server.ConnectionCount() == 1 })

	second, err := transport.Dial(ctx, server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer second.Close()

	// The server closes the excess connection right away.
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := second.Read(make([]byte, 1)); err == nil {
		t.Error("expected the second connection to be closed")
	}
	waitFor(t, func() bool { return rejected.Load() == 1 })
}

func TestServerStopClosesConnections(t *testing.T) {
	entered := make(chan struct{})
	server, err := transport.NewServer(transport.ServerConfig{
		Address: "127.0.0.1:0",
		Handler: func(_ context.Context, conn net.Conn) {
			close(entered)
			// Blocks until Stop closes the connection.
			conn.Read(make([]byte, 1))
		},
	})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	conn, err := transport.Dial(context.Background(), server.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	<-entered

	done := make(chan error, 1)
	go func() { done <- server.Stop() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if got := server.ConnectionCount(); got != 0 {
		t.Errorf("ConnectionCount() after Stop = %d", got)
	}

	// Stop is idempotent.
	if err := server.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}
}

func TestDialerRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	d := &transport.Dialer{ConnectTimeout: time.Second}
	_, err = d.Dial(context.Background(), addr)
	if !errors.Is(err, transport.ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
