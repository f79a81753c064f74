package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/schultz-net/schultz-go/pkg/log"
)

func TestStatsCountsByLayerAndCategory(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, attemptEvents("attempt-1", ts))

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 4",
		"TRANSPORT:   1",
		"WIRE:        1",
		"HANDSHAKE:   2",
		"OUTCOME:     1",
		"IN:          1",
		"OUT:         1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestStatsOutcomes(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := attemptEvents("accepted-1", ts)
	events = append(events, attemptEvents("accepted-2", ts.Add(time.Second))...)
	events = append(events,
		log.Event{
			Timestamp: ts.Add(2 * time.Second), AttemptID: "rejected-1", LocalRole: log.RoleServer,
			Layer: log.LayerHandshake, Category: log.CategoryError,
			Error: &log.ErrorEventData{Layer: log.LayerHandshake, Message: "network mismatch"},
		},
		log.Event{
			Timestamp: ts.Add(2 * time.Second), AttemptID: "rejected-1", LocalRole: log.RoleServer,
			Layer: log.LayerHandshake, Category: log.CategoryOutcome,
			Outcome: &log.OutcomeEvent{Kind: "REJECTED_INCOMPATIBLE_NETWORK", LocalValue: "casper", PeerValue: "casper-test"},
		},
		log.Event{
			Timestamp: ts.Add(3 * time.Second), AttemptID: "cut-short",
			Layer: log.LayerHandshake, Category: log.CategoryState,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityHandshake, NewState: "TLS_ESTABLISHING"},
		},
	)
	path := createTestLogFile(t, events)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"ACCEPTED:",
		"REJECTED_INCOMPATIBLE_NETWORK:",
		"Attempts: 4",
		"[accepte] CLIENT ACCEPTED, 4 events, duration 3ms",
		"[rejected] SERVER REJECTED_INCOMPATIBLE_NETWORK, 2 events",
		"[cut-shor] CLIENT INCOMPLETE, 1 events",
		"Errors: 1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "Attempts: 0") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
