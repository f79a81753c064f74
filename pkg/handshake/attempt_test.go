package handshake

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schultz-net/schultz-go/pkg/log"
	"github.com/schultz-net/schultz-go/pkg/transport"
)

type eventSink struct {
	mu     sync.Mutex
	events []log.Event
}

func (s *eventSink) Log(ev log.Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func bareEngine(clk clock.Clock, logger log.Logger) *Engine {
	return &Engine{
		cfg:    Config{Timeout: 20 * time.Second},
		clock:  clk,
		logger: log.OrNoop(logger),
	}
}

func TestOutcomeSocketDeadlineWhileContextLive(t *testing.T) {
	e := bareEngine(clock.New(), nil)
	a := e.newAttempt("a-1", nil, transport.RoleServer)
	a.state = StateMessageSent

	// The socket deadline fired; the context has not noticed yet.
	err := fmt.Errorf("%w: failed to write frame: %w", transport.ErrTransport, os.ErrDeadlineExceeded)
	out := a.outcome(context.Background(), nil, err)

	assert.Equal(t, KindTimedOut, out.Kind)
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
	assert.Contains(t, out.Reason, "after 20s in state MESSAGE_SENT")
}

func TestOutcomeContextErrors(t *testing.T) {
	socketTimeout := fmt.Errorf("%w: read: %w", transport.ErrTransport, os.ErrDeadlineExceeded)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		ctx      context.Context
		err      error
		wantKind Kind
		wantErr  error
	}{
		{"deadline", expired, fmt.Errorf("%w: closed", transport.ErrTransport), KindTimedOut, context.DeadlineExceeded},
		{"canceled wins over socket timeout", canceled, socketTimeout, KindTransportFailed, ErrAttemptCanceled},
		{"rejection untouched", expired, ErrBadSignature, KindRejectedBadSignature, ErrBadSignature},
		{"plain transport failure", context.Background(), fmt.Errorf("%w: reset", transport.ErrTransport), KindTransportFailed, transport.ErrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := bareEngine(clock.New(), nil).newAttempt("a-1", nil, transport.RoleClient)
			out := a.outcome(tt.ctx, nil, tt.err)
			assert.Equal(t, tt.wantKind, out.Kind)
			assert.ErrorIs(t, out.Err, tt.wantErr)
		})
	}
}

func TestLogEventsUseEngineClock(t *testing.T) {
	mock := clock.NewMock()
	at := time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC)
	mock.Set(at)

	sink := &eventSink{}
	a := bareEngine(mock, sink).newAttempt("a-1", nil, transport.RoleClient)

	a.transition(StateTLSEstablishing, "")
	a.finish(a.outcome(context.Background(), nil, fmt.Errorf("%w: reset", transport.ErrTransport)))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.events)
	for _, ev := range sink.events {
		assert.True(t, ev.Timestamp.Equal(at), "event %+v stamped %v", ev.Category, ev.Timestamp)
	}
}
