// Package commands implements the schultz-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/schultz-net/schultz-go/pkg/log"
)

// ViewFilter narrows the events printed by RunView.
type ViewFilter struct {
	AttemptID string
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
}

const viewTimeFormat = "2006-01-02T15:04:05.000000Z"

// RunView prints every matching event of the log at path.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, log.Filter{
		AttemptID: filter.AttemptID,
		Layer:     filter.Layer,
		Direction: filter.Direction,
		Category:  filter.Category,
	})
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		writeEvent(output, event)
	}
	return nil
}

// writeEvent prints a header line, an optional peer line and the indented
// payload details, followed by a blank line.
func writeEvent(w io.Writer, ev log.Event) {
	dir := "-"
	if ev.Category == log.CategoryMessage {
		dir = ev.Direction.String()
	}
	fmt.Fprintf(w, "%s [attempt:%s] %-3s %s %s %s\n",
		ev.Timestamp.UTC().Format(viewTimeFormat), short(ev.AttemptID), dir,
		ev.LocalRole, ev.Layer, payloadLabel(ev))

	if ev.RemoteAddr != "" || ev.PeerFingerprint != "" {
		line := "  Remote: " + ev.RemoteAddr
		if ev.PeerFingerprint != "" {
			line += "  Peer: " + short(ev.PeerFingerprint)
		}
		fmt.Fprintln(w, line)
	}
	for _, l := range details(ev) {
		fmt.Fprintln(w, "  "+l)
	}
	fmt.Fprintln(w)
}

func payloadLabel(ev log.Event) string {
	switch {
	case ev.Frame != nil:
		return "Frame"
	case ev.Message != nil:
		return "Handshake"
	case ev.StateChange != nil:
		return "State"
	case ev.Outcome != nil:
		return "Outcome"
	case ev.Error != nil:
		return "Error"
	}
	return "Unknown"
}

func details(ev log.Event) []string {
	var out []string
	add := func(format string, args ...any) {
		out = append(out, fmt.Sprintf(format, args...))
	}

	switch {
	case ev.Frame != nil:
		f := ev.Frame
		add("Size: %d bytes", f.Size)
		if len(f.Data) > 0 {
			data := "Data: " + hex.EncodeToString(f.Data)
			if f.Truncated {
				data += " (truncated)"
			}
			out = append(out, data)
		}

	case ev.Message != nil:
		m := ev.Message
		add("Encoding: %s", m.Encoding)
		add("Network: %s  Version: %s", m.NetworkName, m.ProtocolVersion)
		add("Chain Fork: %s", m.ChainForkHash)
		if m.ListeningAddress != "" {
			add("Address: %s", m.ListeningAddress)
		}
		add("Sent: %s", m.SentAt.UTC().Format("2006-01-02T15:04:05.000Z"))
		add("Signature: %d bytes", m.SignatureSize)

	case ev.StateChange != nil:
		sc := ev.StateChange
		add("Entity: %s", sc.Entity)
		if sc.OldState != "" {
			add("%s -> %s", sc.OldState, sc.NewState)
		} else {
			add("-> %s", sc.NewState)
		}
		if sc.Reason != "" {
			add("Reason: %s", sc.Reason)
		}

	case ev.Outcome != nil:
		o := ev.Outcome
		add("Kind: %s", o.Kind)
		if o.Reason != "" {
			add("Reason: %s", o.Reason)
		}
		if o.LocalValue != "" || o.PeerValue != "" {
			add("Local: %s  Peer: %s", o.LocalValue, o.PeerValue)
		}
		add("Duration: %s", formatDuration(o.Duration))

	case ev.Error != nil:
		e := ev.Error
		add("Layer: %s", e.Layer)
		add("Message: %s", e.Message)
		if e.Context != "" {
			add("Context: %s", e.Context)
		}
	}
	return out
}

// short truncates attempt IDs and fingerprints to 8 characters.
func short(id string) string {
	return id[:min(len(id), 8)]
}

// formatDuration renders d with three decimals in us, ms or s.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1e3)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

var (
	layerNames = map[string]log.Layer{
		"transport": log.LayerTransport,
		"wire":      log.LayerWire,
		"handshake": log.LayerHandshake,
	}
	directionNames = map[string]log.Direction{
		"in":  log.DirectionIn,
		"out": log.DirectionOut,
	}
	categoryNames = map[string]log.Category{
		"message": log.CategoryMessage,
		"state":   log.CategoryState,
		"error":   log.CategoryError,
		"outcome": log.CategoryOutcome,
	}
)

func lookupName[T any](what, s string, names map[string]T) (T, error) {
	if v, ok := names[strings.ToLower(s)]; ok {
		return v, nil
	}
	var zero T
	valid := slices.Sorted(maps.Keys(names))
	return zero, fmt.Errorf("invalid %s: %s (must be one of %s)", what, s, strings.Join(valid, ", "))
}

// ParseLayerFlag parses a -layer value, ignoring case.
func ParseLayerFlag(s string) (log.Layer, error) {
	return lookupName("layer", s, layerNames)
}

// ParseDirectionFlag parses a -direction value, ignoring case.
func ParseDirectionFlag(s string) (log.Direction, error) {
	return lookupName("direction", s, directionNames)
}

// ParseCategoryFlag parses a -category value, ignoring case.
func ParseCategoryFlag(s string) (log.Category, error) {
	return lookupName("category", s, categoryNames)
}
