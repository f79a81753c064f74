package reporter

import (
	"sync"
	"time"

	"github.com/schultz-net/schultz-go/pkg/handshake"
)

// Summary aggregates the outcomes of a run.
type Summary struct {
	Total    int
	Counts   map[handshake.Kind]int
	Duration time.Duration
	Outcomes []handshake.Outcome
}

// AllAccepted reports whether every attempt was accepted. An empty run is
// not accepted.
func (s *Summary) AllAccepted() bool {
	return s.Total > 0 && s.Counts[handshake.KindAccepted] == s.Total
}

// Collector is a Sink that keeps every outcome in arrival order.
type Collector struct {
	mu       sync.Mutex
	started  time.Time
	outcomes []handshake.Outcome
	counts   map[handshake.Kind]int
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		counts:  make(map[handshake.Kind]int),
	}
}

// Report records an outcome.
func (c *Collector) Report(o handshake.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
	c.counts[o.Kind]++
}

// Count returns the number of outcomes of kind k.
func (c *Collector) Count(k handshake.Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[k]
}

// Len returns the number of outcomes recorded.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Summary returns a snapshot of everything recorded so far.
func (c *Collector) Summary() *Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Total:    len(c.outcomes),
		Counts:   make(map[handshake.Kind]int, len(c.counts)),
		Duration: time.Since(c.started),
		Outcomes: append([]handshake.Outcome(nil), c.outcomes...),
	}
	for k, n := range c.counts {
		s.Counts[k] = n
	}
	return s
}

// MultiSink forwards each outcome to several sinks in order.
type MultiSink []Sink

// Report forwards o to every non-nil sink.
func (m MultiSink) Report(o handshake.Outcome) {
	for _, s := range m {
		if s != nil {
			s.Report(o)
		}
	}
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(handshake.Outcome)

// Report calls f(o).
func (f SinkFunc) Report(o handshake.Outcome) {
	f(o)
}

var (
	_ Sink = (*Collector)(nil)
	_ Sink = MultiSink(nil)
	_ Sink = SinkFunc(nil)
)
