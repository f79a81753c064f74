package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/schultz-net/schultz-go/pkg/log"
)

func TestViewFormatsEvents(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	path := createTestLogFile(t, attemptEvents("abcdef0123456789", ts))

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.000000Z [attempt:abcdef01]",
		"IDLE -> TLS_ESTABLISHING",
		"OUT CLIENT WIRE Handshake",
		"Network: casper  Version: 1.5.2",
		"Signature: 139 bytes",
		"IN  CLIENT TRANSPORT Frame",
		"Size: 220 bytes",
		"Kind: ACCEPTED",
		"Duration: 3.000ms",
		"Peer: d1f3a9c0",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestViewFilters(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := append(attemptEvents("first-attempt", ts), attemptEvents("second-attempt", ts.Add(time.Second))...)
	path := createTestLogFile(t, events)

	wire := log.LayerWire
	outcome := log.CategoryOutcome
	in := log.DirectionIn

	tests := []struct {
		name   string
		filter ViewFilter
		want   int
	}{
		{"all", ViewFilter{}, 8},
		{"attempt", ViewFilter{AttemptID: "second-attempt"}, 4},
		{"layer", ViewFilter{Layer: &wire}, 2},
		{"category", ViewFilter{Category: &outcome}, 2},
		{"direction", ViewFilter{Direction: &in}, 6},
		{"combined", ViewFilter{AttemptID: "first-attempt", Category: &outcome}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := RunView(path, tt.filter, &buf); err != nil {
				t.Fatalf("RunView failed: %v", err)
			}
			got := strings.Count(buf.String(), "[attempt:")
			if got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestParseFlags(t *testing.T) {
	if l, err := ParseLayerFlag("HANDSHAKE"); err != nil || l != log.LayerHandshake {
		t.Errorf("ParseLayerFlag = %v, %v", l, err)
	}
	if _, err := ParseLayerFlag("service"); err == nil {
		t.Error("expected error for unknown layer")
	}
	if d, err := ParseDirectionFlag("Out"); err != nil || d != log.DirectionOut {
		t.Errorf("ParseDirectionFlag = %v, %v", d, err)
	}
	if _, err := ParseDirectionFlag("sideways"); err == nil {
		t.Error("expected error for unknown direction")
	}
	if c, err := ParseCategoryFlag("outcome"); err != nil || c != log.CategoryOutcome {
		t.Errorf("ParseCategoryFlag = %v, %v", c, err)
	}
	if _, err := ParseCategoryFlag("control"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "0.500us"},
		{1500 * time.Microsecond, "1.500ms"},
		{2500 * time.Millisecond, "2.500s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
