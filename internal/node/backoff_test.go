package node

import (
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	t.Run("grows and caps", func(t *testing.T) {
		b := newBackoff(10 * time.Second)
		b.jitter = 0

		want := []time.Duration{1, 2, 4, 8, 10, 10}
		for i, w := range want {
			if got := b.Next(); got != w*time.Second {
				t.Errorf("Next() #%d = %v, want %v", i, got, w*time.Second)
			}
		}
		if b.Attempts() != len(want) {
			t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(want))
		}
	})

	t.Run("jitter stays within bounds", func(t *testing.T) {
		b := newBackoff(time.Minute)
		for range 100 {
			b.Reset()
			d := b.Next()
			if d < InitialBackoff || d > InitialBackoff+time.Duration(float64(InitialBackoff)*JitterFactor) {
				t.Fatalf("jittered delay %v out of range", d)
			}
		}
	})

	t.Run("reset", func(t *testing.T) {
		b := newBackoff(time.Minute)
		b.jitter = 0
		b.Next()
		b.Next()
		b.Reset()
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset", b.Attempts())
		}
		if got := b.Next(); got != InitialBackoff {
			t.Errorf("Next() = %v after reset, want %v", got, InitialBackoff)
		}
	})

	t.Run("max below initial", func(t *testing.T) {
		b := newBackoff(200 * time.Millisecond)
		b.jitter = 0
		if got := b.Next(); got != 200*time.Millisecond {
			t.Errorf("Next() = %v, want 200ms", got)
		}
	})
}
