package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/schultz-net/schultz-go/pkg/identity"
	"github.com/schultz-net/schultz-go/pkg/log"
	"github.com/schultz-net/schultz-go/pkg/transport"
	"github.com/schultz-net/schultz-go/pkg/wire"
)

// attempt is the state of one Run. It is owned by a single Run call; the
// mutex guards fields touched by the send and receive goroutines.
type attempt struct {
	e      *Engine
	id     string
	role   transport.Role
	conn   net.Conn
	remote string

	mu        sync.Mutex
	state     State
	peerFP    string
	extra     chan struct{}
	watchDone chan struct{}

	abortOnce sync.Once
	abortErr  error
}

func (e *Engine) newAttempt(id string, conn net.Conn, role transport.Role) *attempt {
	a := &attempt{e: e, id: id, role: role, conn: conn, state: StateIdle}
	if conn != nil && conn.RemoteAddr() != nil {
		a.remote = conn.RemoteAddr().String()
	}
	return a
}

func (a *attempt) execute(ctx context.Context) (*PeerRecord, error) {
	own, err := a.e.cfg.Certificates.Certificate()
	if err != nil {
		return nil, fmt.Errorf("%w: local certificate: %w", ErrInternal, err)
	}

	a.transition(StateTLSEstablishing, "")

	chCfg := transport.ChannelConfig{
		Certificate:  own,
		Validator:    a.e.cfg.Validator,
		MaxFrameSize: a.e.cfg.MaxFrameSize,
		Logger:       a.e.cfg.Logger,
		AttemptID:    a.id,
	}
	var ch *transport.Channel
	if a.role == transport.RoleClient {
		ch, err = transport.ConnectAsClient(ctx, a.conn, chCfg)
	} else {
		ch, err = transport.AcceptAsServer(ctx, a.conn, chCfg)
	}
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.peerFP = ch.PeerFingerprint.String()
	a.mu.Unlock()
	a.transition(StateTLSEstablished, "")

	ownChallenge, err := ch.Challenge(a.role)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrTransport, err)
	}
	peerChallenge, err := ch.Challenge(a.role.Peer())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", transport.ErrTransport, err)
	}

	payload, sent, err := a.buildMessage(ownChallenge)
	if err != nil {
		return nil, err
	}
	enc := a.e.cfg.Params.encoding()

	var (
		received   *wire.HandshakeMessage
		declared   wire.Encoding
		receivedAt time.Time
	)

	// Send and receive are independent; validation waits for both.
	var g errgroup.Group
	g.Go(a.guard(func() error {
		if err := ch.Framer.WriteFrame(payload); err != nil {
			return fmt.Errorf("%w: send handshake: %w", transport.ErrTransport, err)
		}
		a.logMessage(log.DirectionOut, sent, enc)
		a.transition(StateMessageSent, "")
		return nil
	}))
	g.Go(a.guard(func() error {
		frame, err := ch.Framer.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return fmt.Errorf("%w: receive handshake: %w", transport.ErrTransport, err)
		}
		receivedAt = a.e.clock.Now()
		a.watchExtraFrames(ch.Framer)

		msg, enc, err := wire.Decode(frame)
		if err != nil {
			return fmt.Errorf("decode peer handshake: %w", err)
		}
		received, declared = msg, enc
		a.logMessage(log.DirectionIn, msg, enc)
		a.transition(StateMessageReceived, "")
		return nil
	}))
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.transition(StateValidating, "")

	peer := &PeerRecord{
		Fingerprint:       ch.PeerFingerprint,
		AdvertisedAddress: received.ListeningAddress,
		ProtocolVersion:   received.ProtocolVersion,
		NetworkName:       received.NetworkName,
		Encoding:          declared,
		ClockSkew:         received.Timestamp.Sub(receivedAt),
	}

	err = validate(a.e.cfg.Params, ch, peerChallenge, received)
	if a.sawExtraFrame() {
		err = fmt.Errorf("%w: %w", transport.ErrTransport, ErrUnexpectedFrame)
	}
	return peer, err
}

func (a *attempt) buildMessage(challenge []byte) ([]byte, *wire.HandshakeMessage, error) {
	sig, err := a.e.cfg.Identity.Sign(challenge)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sign challenge: %w", ErrInternal, err)
	}

	p := a.e.cfg.Params
	msg := &wire.HandshakeMessage{
		NetworkName:      p.NetworkName,
		ProtocolVersion:  p.ProtocolVersion,
		ChainForkHash:    p.ChainForkHash,
		ListeningAddress: p.AdvertisedAddress,
		Timestamp:        wire.NormalizeTime(a.e.clock.Now()),
		Signature:        sig,
	}
	payload, err := wire.Encode(msg, p.encoding())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode handshake: %w", ErrInternal, err)
	}
	return payload, msg, nil
}

// validate checks, in order, the signature against the certificate key and
// then the network parameters. The first failure decides the outcome.
func validate(p Params, ch *transport.Channel, peerChallenge []byte, msg *wire.HandshakeMessage) error {
	if !identity.Verify(ch.PeerKey, peerChallenge, msg.Signature) {
		return ErrBadSignature
	}
	return p.check(msg)
}

// guard converts a panic into an error and aborts the attempt on failure so
// the sibling goroutine unblocks.
func (a *attempt) guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: panic: %v", ErrInternal, r)
			}
			if err != nil {
				err = a.abort(err)
			}
		}()
		return fn()
	}
}

// abort records the first failure and closes the socket. Later failures,
// usually caused by the close itself, are replaced by the first.
func (a *attempt) abort(err error) error {
	a.abortOnce.Do(func() {
		a.abortErr = err
		a.conn.Close()
	})
	return a.abortErr
}

// watchExtraFrames reads ahead after the peer's handshake message. A full
// frame arriving before validation completes is a protocol violation.
func (a *attempt) watchExtraFrames(r transport.FrameReadWriter) {
	extra := make(chan struct{}, 1)
	done := make(chan struct{})

	a.mu.Lock()
	a.extra, a.watchDone = extra, done
	a.mu.Unlock()

	go func() {
		defer close(done)
		if _, err := r.ReadFrame(); err == nil {
			extra <- struct{}{}
		}
	}()
}

func (a *attempt) sawExtraFrame() bool {
	a.mu.Lock()
	extra := a.extra
	a.mu.Unlock()

	select {
	case <-extra:
		return true
	default:
		return false
	}
}

// waitWatcher waits for the read-ahead goroutine; the socket must already
// be closed.
func (a *attempt) waitWatcher() {
	a.mu.Lock()
	done := a.watchDone
	a.mu.Unlock()
	if done != nil {
		<-done
	}
}

// outcome converts the result of execute. Transport errors caused by the
// attempt context are reported as timeout or cancellation. The socket
// deadline equals the context deadline and often fires first, so a socket
// timeout counts as the attempt timing out even while ctx is still live.
func (a *attempt) outcome(ctx context.Context, peer *PeerRecord, err error) Outcome {
	if err != nil {
		switch k := Classify(err); {
		case k.IsRejection():
		case errors.Is(ctx.Err(), context.Canceled):
			err = fmt.Errorf("%w in state %s: %v", ErrAttemptCanceled, a.currentState(), err)
		case k == KindTimedOut, errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("%w after %s in state %s: %v", context.DeadlineExceeded, a.e.cfg.Timeout, a.currentState(), err)
		}
	}

	out := NewOutcome(a.id, a.role, a.remote, err)
	if peer != nil {
		peer.Outcome = out.Kind
		out.Peer = peer
	}
	return out
}

func (a *attempt) currentState() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *attempt) transition(next State, reason string) {
	a.mu.Lock()
	prev := a.state
	a.state = next
	peerFP := a.peerFP
	a.mu.Unlock()

	a.e.logger.Log(log.Event{
		Timestamp:       a.e.clock.Now(),
		AttemptID:       a.id,
		Layer:           log.LayerHandshake,
		Category:        log.CategoryState,
		LocalRole:       a.role.LogRole(),
		RemoteAddr:      a.remote,
		PeerFingerprint: peerFP,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityHandshake,
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   reason,
		},
	})
}

func (a *attempt) logMessage(dir log.Direction, msg *wire.HandshakeMessage, enc wire.Encoding) {
	a.mu.Lock()
	peerFP := a.peerFP
	a.mu.Unlock()

	a.e.logger.Log(log.Event{
		Timestamp:       a.e.clock.Now(),
		AttemptID:       a.id,
		Direction:       dir,
		Layer:           log.LayerWire,
		Category:        log.CategoryMessage,
		LocalRole:       a.role.LogRole(),
		RemoteAddr:      a.remote,
		PeerFingerprint: peerFP,
		Message:         log.NewMessageEvent(msg, enc),
	})
}

// finish moves the attempt to TERMINAL and logs the outcome.
func (a *attempt) finish(out Outcome) {
	a.transition(StateTerminal, out.Kind.String())

	a.mu.Lock()
	peerFP := a.peerFP
	a.mu.Unlock()

	base := log.Event{
		AttemptID:       a.id,
		Layer:           log.LayerHandshake,
		LocalRole:       a.role.LogRole(),
		RemoteAddr:      a.remote,
		PeerFingerprint: peerFP,
	}

	if out.Err != nil {
		ev := base
		ev.Timestamp = a.e.clock.Now()
		ev.Category = log.CategoryError
		ev.Error = &log.ErrorEventData{
			Layer:   errorLayer(out.Kind),
			Message: out.Err.Error(),
			Context: "handshake attempt",
		}
		a.e.logger.Log(ev)
	}

	ev := base
	ev.Timestamp = a.e.clock.Now()
	ev.Category = log.CategoryOutcome
	ev.Outcome = &log.OutcomeEvent{
		Kind:       out.Kind.String(),
		Reason:     out.Reason,
		LocalValue: out.LocalValue,
		PeerValue:  out.PeerValue,
		Duration:   out.Duration,
	}
	a.e.logger.Log(ev)
}

func errorLayer(k Kind) log.Layer {
	switch k {
	case KindTransportFailed, KindTimedOut, KindRejectedMalformedCertificate:
		return log.LayerTransport
	case KindRejectedIncompatibleVersion:
		return log.LayerWire
	default:
		return log.LayerHandshake
	}
}
