package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/schultz-net/schultz-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	OutcomesByKind    map[string]int
	Attempts          map[string]*AttemptStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// AttemptStats holds statistics for a single handshake attempt.
type AttemptStats struct {
	FirstSeen       time.Time
	LastSeen        time.Time
	Events          int
	Role            log.Role
	RemoteAddr      string
	PeerFingerprint string
	Outcome         string
	Duration        time.Duration
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		OutcomesByKind:    make(map[string]int),
		Attempts:          make(map[string]*AttemptStats),
	}

	for event, err := range reader.Events() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	if event.Category == log.CategoryMessage {
		s.EventsByDirection[event.Direction]++
	}

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	a, ok := s.Attempts[event.AttemptID]
	if !ok {
		a = &AttemptStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Role:      event.LocalRole,
		}
		s.Attempts[event.AttemptID] = a
	}
	a.Events++
	if event.Timestamp.After(a.LastSeen) {
		a.LastSeen = event.Timestamp
	}
	if event.RemoteAddr != "" && a.RemoteAddr == "" {
		a.RemoteAddr = event.RemoteAddr
	}
	if event.PeerFingerprint != "" && a.PeerFingerprint == "" {
		a.PeerFingerprint = event.PeerFingerprint
	}

	if event.Outcome != nil {
		s.OutcomesByKind[event.Outcome.Kind]++
		a.Outcome = event.Outcome.Kind
		a.Duration = event.Outcome.Duration
	}
	if event.Error != nil {
		s.Errors++
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Handshake Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerHandshake} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError, log.CategoryOutcome} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Messages by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.OutcomesByKind) > 0 {
		kinds := make([]string, 0, len(stats.OutcomesByKind))
		for k := range stats.OutcomesByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)

		fmt.Fprintln(w, "Outcomes:")
		for _, k := range kinds {
			fmt.Fprintf(w, "  %-34s %d\n", k+":", stats.OutcomesByKind[k])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Attempts: %d\n", len(stats.Attempts))
	if len(stats.Attempts) > 0 {
		type attemptInfo struct {
			id    string
			stats *AttemptStats
		}
		attempts := make([]attemptInfo, 0, len(stats.Attempts))
		for id, as := range stats.Attempts {
			attempts = append(attempts, attemptInfo{id, as})
		}
		sort.Slice(attempts, func(i, j int) bool {
			return attempts[i].stats.FirstSeen.Before(attempts[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, a := range attempts {
			outcome := a.stats.Outcome
			if outcome == "" {
				outcome = "INCOMPLETE"
			}
			fmt.Fprintf(w, "  [%s] %s %s, %d events", short(a.id), a.stats.Role.String(), outcome, a.stats.Events)
			if a.stats.Duration > 0 {
				fmt.Fprintf(w, ", duration %s", a.stats.Duration.Round(time.Millisecond))
			}
			fmt.Fprintln(w)
			if a.stats.RemoteAddr != "" {
				fmt.Fprintf(w, "           Remote: %s\n", a.stats.RemoteAddr)
			}
			if a.stats.PeerFingerprint != "" {
				fmt.Fprintf(w, "           Peer: %s\n", a.stats.PeerFingerprint)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
