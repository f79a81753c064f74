package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultConnectTimeout bounds a dial when the context has no deadline.
const DefaultConnectTimeout = 30 * time.Second

// Dialer opens raw TCP connections to peers. The TLS upgrade is left to
// ConnectAsClient so that dialing and the handshake share one attempt
// deadline.
type Dialer struct {
	// ConnectTimeout is the dial timeout (default: 30s).
	ConnectTimeout time.Duration

	// KeepAlive is the TCP keep-alive period; zero uses the system default.
	KeepAlive time.Duration
}

// Dial connects to address ("host:port").
func (d *Dialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	timeout := d.ConnectTimeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	nd := &net.Dialer{KeepAlive: d.KeepAlive}
	conn, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrTransport, address, err)
	}
	return conn, nil
}

// Dial connects to address with a default Dialer.
func Dial(ctx context.Context, address string) (net.Conn, error) {
	return (&Dialer{}).Dial(ctx, address)
}
