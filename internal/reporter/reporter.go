// Package reporter collects handshake outcomes and formats them.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/schultz-net/schultz-go/pkg/handshake"
)

// Sink receives exactly one outcome per attempt. Implementations must be
// safe for concurrent use.
type Sink interface {
	Report(outcome handshake.Outcome)
}

// Reporter is a Sink that can also render a final summary.
type Reporter interface {
	Sink

	// ReportSummary reports the aggregate of a run.
	ReportSummary(summary *Summary)
}

// TextReporter outputs human-readable text reports.
type TextReporter struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool
}

// NewTextReporter creates a new text reporter.
func NewTextReporter(w io.Writer, verbose bool) *TextReporter {
	return &TextReporter{
		writer:  w,
		verbose: verbose,
	}
}

// Report writes one line per outcome, plus peer details when verbose.
func (r *TextReporter) Report(o handshake.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.writer, "[%s] %s %s (%s)\n",
		o.Kind, o.Role, o.RemoteAddr, o.Duration.Round(time.Millisecond))

	if o.Reason != "" {
		fmt.Fprintf(r.writer, "       Reason: %s\n", o.Reason)
	}
	if o.LocalValue != "" || o.PeerValue != "" {
		fmt.Fprintf(r.writer, "       Local: %s  Peer: %s\n", o.LocalValue, o.PeerValue)
	}

	if r.verbose && o.Peer != nil {
		p := o.Peer
		fmt.Fprintf(r.writer, "       Peer:     %s\n", p.Fingerprint)
		fmt.Fprintf(r.writer, "       Network:  %s  Version: %s  Encoding: %s\n",
			p.NetworkName, p.ProtocolVersion, p.Encoding)
		if p.AdvertisedAddress != "" {
			fmt.Fprintf(r.writer, "       Address:  %s\n", p.AdvertisedAddress)
		}
		fmt.Fprintf(r.writer, "       Skew:     %s\n", p.ClockSkew.Round(time.Millisecond))
	}
	if r.verbose {
		fmt.Fprintf(r.writer, "       Attempt:  %s\n", o.AttemptID)
	}
}

// ReportSummary writes per-kind totals.
func (r *TextReporter) ReportSummary(s *Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.writer, "\n--- Summary ---\n")
	fmt.Fprintf(r.writer, "Attempts: %d\n", s.Total)
	for _, k := range handshake.Kinds() {
		if n := s.Counts[k]; n > 0 {
			fmt.Fprintf(r.writer, "%-32s %d\n", k.String()+":", n)
		}
	}
	fmt.Fprintf(r.writer, "Duration: %s\n", s.Duration.Round(time.Millisecond))

	if s.Total > 0 {
		rate := float64(s.Counts[handshake.KindAccepted]) / float64(s.Total) * 100
		fmt.Fprintf(r.writer, "Accept Rate: %.1f%%\n", rate)
	}
}

// JSONReporter outputs one JSON object per line.
type JSONReporter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: w,
		pretty: pretty,
	}
}

// JSONOutcome is the JSON representation of an outcome.
type JSONOutcome struct {
	AttemptID  string    `json:"attempt_id"`
	Role       string    `json:"role"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	Kind       string    `json:"kind"`
	Reason     string    `json:"reason,omitempty"`
	LocalValue string    `json:"local_value,omitempty"`
	PeerValue  string    `json:"peer_value,omitempty"`
	Duration   string    `json:"duration"`
	Peer       *JSONPeer `json:"peer,omitempty"`
}

// JSONPeer is the JSON representation of a peer record.
type JSONPeer struct {
	Fingerprint       string `json:"fingerprint"`
	AdvertisedAddress string `json:"advertised_address,omitempty"`
	ProtocolVersion   string `json:"protocol_version"`
	NetworkName       string `json:"network_name"`
	Encoding          string `json:"encoding"`
	ClockSkew         string `json:"clock_skew"`
}

// JSONSummary is the JSON representation of a run summary.
type JSONSummary struct {
	Total      int            `json:"total"`
	Counts     map[string]int `json:"counts"`
	Duration   string         `json:"duration"`
	AcceptRate float64        `json:"accept_rate"`
}

// Report writes the outcome as a JSON line.
func (r *JSONReporter) Report(o handshake.Outcome) {
	r.writeJSON(ToJSON(o))
}

// ReportSummary writes the summary as a JSON line.
func (r *JSONReporter) ReportSummary(s *Summary) {
	js := JSONSummary{
		Total:    s.Total,
		Counts:   make(map[string]int, len(s.Counts)),
		Duration: s.Duration.Round(time.Millisecond).String(),
	}
	for k, n := range s.Counts {
		js.Counts[k.String()] = n
	}
	if s.Total > 0 {
		js.AcceptRate = float64(s.Counts[handshake.KindAccepted]) / float64(s.Total) * 100
	}
	r.writeJSON(js)
}

// ToJSON converts an outcome to its JSON representation.
func ToJSON(o handshake.Outcome) JSONOutcome {
	jo := JSONOutcome{
		AttemptID:  o.AttemptID,
		Role:       o.Role.String(),
		RemoteAddr: o.RemoteAddr,
		Kind:       o.Kind.String(),
		Reason:     o.Reason,
		LocalValue: o.LocalValue,
		PeerValue:  o.PeerValue,
		Duration:   o.Duration.Round(time.Millisecond).String(),
	}
	if p := o.Peer; p != nil {
		jo.Peer = &JSONPeer{
			Fingerprint:       p.Fingerprint.String(),
			AdvertisedAddress: p.AdvertisedAddress,
			ProtocolVersion:   p.ProtocolVersion.String(),
			NetworkName:       p.NetworkName,
			Encoding:          p.Encoding.String(),
			ClockSkew:         p.ClockSkew.Round(time.Millisecond).String(),
		}
	}
	return jo
}

func (r *JSONReporter) writeJSON(v any) {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		fmt.Fprintf(r.writer, `{"error": "failed to marshal: %s"}`+"\n", err)
		return
	}

	fmt.Fprintln(r.writer, string(data))
}

// JUnitReporter outputs JUnit XML for CI integration: one test case per
// attempt, failed unless accepted.
type JUnitReporter struct {
	writer io.Writer
}

// NewJUnitReporter creates a new JUnit reporter.
func NewJUnitReporter(w io.Writer) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

// Report does nothing; JUnit output is written at summary time.
func (r *JUnitReporter) Report(handshake.Outcome) {}

// ReportSummary writes the collected outcomes as a testsuite.
func (r *JUnitReporter) ReportSummary(s *Summary) {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")

	failures := s.Total - s.Counts[handshake.KindAccepted]
	fmt.Fprintf(&b, `<testsuite name="handshake" tests="%d" failures="%d" time="%.3f">`,
		s.Total, failures, s.Duration.Seconds())
	b.WriteString("\n")

	for _, o := range s.Outcomes {
		fmt.Fprintf(&b, `  <testcase name="%s" classname="%s" time="%.3f">`,
			escapeXML(o.RemoteAddr),
			escapeXML(o.Role.String()),
			o.Duration.Seconds())
		b.WriteString("\n")

		if !o.Accepted() {
			fmt.Fprintf(&b, `    <failure message="%s" type="%s"/>`,
				escapeXML(o.Reason), o.Kind)
			b.WriteString("\n")
		}

		b.WriteString("  </testcase>\n")
	}

	b.WriteString("</testsuite>\n")

	fmt.Fprint(r.writer, b.String())
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}

var (
	_ Reporter = (*TextReporter)(nil)
	_ Reporter = (*JSONReporter)(nil)
	_ Reporter = (*JUnitReporter)(nil)
)
