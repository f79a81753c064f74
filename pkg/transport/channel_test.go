package transport_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schultz-net/schultz-go/pkg/cert"
	"github.com/schultz-net/schultz-go/pkg/identity"
	"github.com/schultz-net/schultz-go/pkg/log"
	"github.com/schultz-net/schultz-go/pkg/transport"
)

type node struct {
	id   *identity.Identity
	cert *cert.Certificate
}

func newNode(t *testing.T, p *cert.Provider, scheme identity.Scheme) node {
	t.Helper()
	id, err := identity.Generate(scheme)
	require.NoError(t, err)
	c, err := p.Issue(id)
	require.NoError(t, err)
	return node{id: id, cert: c}
}

type result struct {
	ch  *transport.Channel
	err error
}

// establishPair runs both sides of the secure channel over an in-memory pipe.
func establishPair(t *testing.T, client, server transport.ChannelConfig) (result, result, net.Conn, net.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	cc, sc := net.Pipe()

	var wg sync.WaitGroup
	var cr, sr result
	wg.Add(2)
	go func() {
		defer wg.Done()
		cr.ch, cr.err = transport.ConnectAsClient(ctx, cc, client)
	}()
	go func() {
		defer wg.Done()
		sr.ch, sr.err = transport.AcceptAsServer(ctx, sc, server)
	}()
	wg.Wait()

	t.Cleanup(func() {
		for _, r := range []result{cr, sr} {
			if r.ch != nil {
				r.ch.Close()
			}
		}
	})
	return cr, sr, cc, sc
}

func TestChannelMutualAuthentication(t *testing.T) {
	p := cert.NewProvider()
	a := newNode(t, p, identity.SchemeECDSAP521)
	b := newNode(t, p, identity.SchemeECDSAP521)

	cr, sr, _, _ := establishPair(t,
		transport.ChannelConfig{Certificate: a.cert, Validator: p},
		transport.ChannelConfig{Certificate: b.cert, Validator: p},
	)
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	assert.True(t, cr.ch.PeerKey.Equal(b.id.PublicKey()), "client should learn the server key")
	assert.True(t, sr.ch.PeerKey.Equal(a.id.PublicKey()), "server should learn the client key")
	assert.Equal(t, b.id.Fingerprint(), cr.ch.PeerFingerprint)
	assert.Equal(t, a.id.Fingerprint(), sr.ch.PeerFingerprint)
	assert.Equal(t, transport.RoleClient, cr.ch.Role)
	assert.Equal(t, transport.RoleServer, sr.ch.Role)
	assert.Equal(t, uint32(1), cr.ch.ALPNMajor)
	assert.Equal(t, uint32(1), sr.ch.ALPNMajor)
}

type stateRecorder struct {
	mu      sync.Mutex
	reasons map[string]string
}

func (r *stateRecorder) Log(ev log.Event) {
	if ev.StateChange == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reasons == nil {
		r.reasons = map[string]string{}
	}
	r.reasons[ev.StateChange.NewState] = ev.StateChange.Reason
}

func TestChannelLogsNegotiatedProtocol(t *testing.T) {
	p := cert.NewProvider()
	a := newNode(t, p, identity.SchemeECDSAP521)
	b := newNode(t, p, identity.SchemeECDSAP521)
	rec := &stateRecorder{}

	cr, sr, _, _ := establishPair(t,
		transport.ChannelConfig{Certificate: a.cert, Validator: p, Logger: rec},
		transport.ChannelConfig{Certificate: b.cert, Validator: p},
	)
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "alpn schultz/1", rec.reasons["TLS_ESTABLISHED"])
}

func TestChannelChallenge(t *testing.T) {
	p := cert.NewProvider()
	a := newNode(t, p, identity.SchemeECDSAP521)
	b := newNode(t, p, identity.SchemeECDSAP521)

	cr, sr, _, _ := establishPair(t,
		transport.ChannelConfig{Certificate: a.cert, Validator: p},
		transport.ChannelConfig{Certificate: b.cert, Validator: p},
	)
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	for _, signer := range []transport.Role{transport.RoleClient, transport.RoleServer} {
		fromClient, err := cr.ch.Challenge(signer)
		require.NoError(t, err)
		fromServer, err := sr.ch.Challenge(signer)
		require.NoError(t, err)

		assert.Len(t, fromClient, transport.ChallengeSize)
		assert.Equal(t, fromClient, fromServer, "both ends derive the %s challenge", signer)
	}

	clientChallenge, _ := cr.ch.Challenge(transport.RoleClient)
	serverChallenge, _ := cr.ch.Challenge(transport.RoleServer)
	assert.False(t, bytes.Equal(clientChallenge, serverChallenge), "challenges must differ by role")
}

func TestChannelChallengeDiffersPerSession(t *testing.T) {
	p := cert.NewProvider()
	a := newNode(t, p, identity.SchemeECDSAP521)
	b := newNode(t, p, identity.SchemeECDSAP521)

	var challenges [][]byte
	for range 2 {
		cr, sr, _, _ := establishPair(t,
			transport.ChannelConfig{Certificate: a.cert, Validator: p},
			transport.ChannelConfig{Certificate: b.cert, Validator: p},
		)
		require.NoError(t, cr.err)
		require.NoError(t, sr.err)
		c, err := cr.ch.Challenge(transport.RoleClient)
		require.NoError(t, err)
		challenges = append(challenges, c)
	}
	assert.NotEqual(t, challenges[0], challenges[1])
}

func TestChannelRejectsUnacceptedPeerScheme(t *testing.T) {
	lenient := cert.NewProvider(cert.WithAcceptedSchemes(identity.SchemeECDSAP521, identity.SchemeECDSAP256))
	strict := cert.NewProvider(cert.WithAcceptedSchemes(identity.SchemeECDSAP521))

	good := newNode(t, strict, identity.SchemeECDSAP521)
	weak := newNode(t, lenient, identity.SchemeECDSAP256)

	cr, sr, _, sc := establishPair(t,
		transport.ChannelConfig{Certificate: weak.cert, Validator: lenient},
		transport.ChannelConfig{Certificate: good.cert, Validator: strict},
	)

	require.Error(t, sr.err)
	assert.ErrorIs(t, sr.err, cert.ErrMalformedCertificate)
	assert.ErrorIs(t, sr.err, cert.ErrWrongCurve)
	assert.Nil(t, sr.ch)

	// The rejecting side released its socket.
	_, err := sc.Write([]byte{0})
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	// The client may or may not have completed before the server hung up.
	if cr.err == nil {
		assert.True(t, cr.ch.PeerKey.Equal(good.id.PublicKey()))
	}
}

func TestChannelHandshakeFailureIsTransportError(t *testing.T) {
	p := cert.NewProvider()
	a := newNode(t, p, identity.SchemeECDSAP521)

	cc, sc := net.Pipe()
	go func() {
		// A peer that speaks garbage instead of TLS.
		buf := make([]byte, 4096)
		sc.Read(buf)
		sc.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		sc.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := transport.ConnectAsClient(ctx, cc, transport.ChannelConfig{Certificate: a.cert, Validator: p})
	require.Error(t, err)
	assert.Nil(t, ch)
	assert.ErrorIs(t, err, transport.ErrTransport)
	assert.False(t, errors.Is(err, cert.ErrMalformedCertificate))
}

func TestChannelHandshakeHonorsContext(t *testing.T) {
	p := cert.NewProvider()
	a := newNode(t, p, identity.SchemeECDSAP521)

	cc, sc := net.Pipe()
	defer sc.Close()

	// Nobody answers on sc.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := transport.AcceptAsServer(ctx, cc, transport.ChannelConfig{Certificate: a.cert, Validator: p})
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestChannelRequiresValidator(t *testing.T) {
	p := cert.NewProvider()
	a := newNode(t, p, identity.SchemeECDSAP521)

	cc, sc := net.Pipe()
	defer sc.Close()

	_, err := transport.ConnectAsClient(context.Background(), cc, transport.ChannelConfig{Certificate: a.cert})
	assert.ErrorIs(t, err, transport.ErrTransport)
}

type rejectAll struct{ calls int }

func (r *rejectAll) Validate([]byte) (*ecdsa.PublicKey, error) {
	r.calls++
	return nil, cert.ErrCertExpired
}

func TestChannelUsesValidator(t *testing.T) {
	p := cert.NewProvider()
	a := newNode(t, p, identity.SchemeECDSAP521)
	b := newNode(t, p, identity.SchemeECDSAP521)
	v := &rejectAll{}

	cr, _, _, _ := establishPair(t,
		transport.ChannelConfig{Certificate: a.cert, Validator: v},
		transport.ChannelConfig{Certificate: b.cert, Validator: p},
	)
	require.Error(t, cr.err)
	assert.ErrorIs(t, cr.err, cert.ErrCertExpired)
	assert.Equal(t, 1, v.calls)
}

func TestChannelFraming(t *testing.T) {
	p := cert.NewProvider()
	a := newNode(t, p, identity.SchemeECDSAP521)
	b := newNode(t, p, identity.SchemeECDSAP521)

	cr, sr, _, _ := establishPair(t,
		transport.ChannelConfig{Certificate: a.cert, Validator: p},
		transport.ChannelConfig{Certificate: b.cert, Validator: p, MaxFrameSize: 64},
	)
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	go cr.ch.Framer.WriteFrame([]byte("hello"))
	got, err := sr.ch.Framer.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	go cr.ch.Framer.WriteFrame(make([]byte, 65))
	_, err = sr.ch.Framer.ReadFrame()
	assert.ErrorIs(t, err, transport.ErrFrameTooLarge)
}
