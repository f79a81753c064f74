package log

import (
	"errors"
	"io"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events by attempt, peer and classification. A zero field
// places no constraint.
type Filter struct {
	AttemptID string

	// PeerFingerprint is matched as a hex prefix, so the short fingerprint
	// printed by reporters works as well as the full one.
	PeerFingerprint string

	Direction *Direction
	Layer     *Layer
	Category  *Category

	// Events in [TimeStart, TimeEnd) pass.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

// Match reports whether e satisfies every constraint of f.
func (f Filter) Match(e Event) bool {
	switch {
	case f.AttemptID != "" && e.AttemptID != f.AttemptID:
		return false
	case f.PeerFingerprint != "" && !strings.HasPrefix(e.PeerFingerprint, f.PeerFingerprint):
		return false
	case f.Direction != nil && e.Direction != *f.Direction:
		return false
	case f.Layer != nil && e.Layer != *f.Layer:
		return false
	case f.Category != nil && e.Category != *f.Category:
		return false
	case f.TimeStart != nil && e.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !e.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Reader streams events back out of a protocol log without loading the
// whole file.
type Reader struct {
	src    io.Closer
	dec    *cbor.Decoder
	filter Filter
}

// NewReader opens path and yields every event in it.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and yields only events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{src: f, dec: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the log.
func (r *Reader) Next() (Event, error) {
	for {
		var ev Event
		err := r.dec.Decode(&ev)
		switch {
		case errors.Is(err, io.EOF):
			return Event{}, io.EOF
		case err != nil:
			return Event{}, err
		case r.filter.Match(ev):
			return ev, nil
		}
	}
}

// Events returns the remaining matching events as a sequence. A decode
// error is yielded once and ends the sequence.
func (r *Reader) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(ev, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the log file.
func (r *Reader) Close() error {
	return r.src.Close()
}
