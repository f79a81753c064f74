package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schultz-net/schultz-go/pkg/handshake"
	"github.com/schultz-net/schultz-go/pkg/transport"
)

func TestReportCountsOutcomes(t *testing.T) {
	m := New()

	m.Report(handshake.Outcome{Kind: handshake.KindAccepted, Role: transport.RoleClient, Duration: 30 * time.Millisecond})
	m.Report(handshake.Outcome{Kind: handshake.KindAccepted, Role: transport.RoleClient, Duration: 40 * time.Millisecond})
	m.Report(handshake.Outcome{Kind: handshake.KindTimedOut, Role: transport.RoleServer, Duration: 20 * time.Second})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outcomes.WithLabelValues("ACCEPTED", "client")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("TIMED_OUT", "server")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.outcomes.WithLabelValues("ACCEPTED", "server")))

	// Every kind and role is pre-registered.
	assert.Equal(t, len(handshake.Kinds())*2, testutil.CollectAndCount(m.outcomes))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestInflight(t *testing.T) {
	m := New()

	done1 := m.AttemptStarted()
	done2 := m.AttemptStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.inflight))

	done1()
	done2()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}

func TestMetricNames(t *testing.T) {
	m := New()
	m.Report(handshake.Outcome{Kind: handshake.KindAccepted, Role: transport.RoleClient})

	expected := `
# HELP schultz_handshake_inflight Handshake attempts currently running.
# TYPE schultz_handshake_inflight gauge
schultz_handshake_inflight 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "schultz_handshake_inflight"))

	n, err := testutil.GatherAndCount(m.Registry(),
		"schultz_handshake_outcomes_total", "schultz_handshake_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, len(handshake.Kinds())*2+1, n)
}

func TestServer(t *testing.T) {
	m := New()
	m.Report(handshake.Outcome{Kind: handshake.KindRejectedBadSignature, Role: transport.RoleServer})

	srv, err := Listen("127.0.0.1:0", m)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `schultz_handshake_outcomes_total{kind="REJECTED_BAD_SIGNATURE",role="server"} 1`)
	assert.Contains(t, string(body), "go_goroutines")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
