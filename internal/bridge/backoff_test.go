package bridge

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(time.Second, 30*time.Second)

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() call %d = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoff(time.Second, 60*time.Second)

	b.Next()
	b.Next()
	b.Next()
	b.Reset()

	if got := b.Next(); got != time.Second {
		t.Errorf("Next() after Reset() = %v, want 1s", got)
	}
}

func TestBackoffNeverExceedsMax(t *testing.T) {
	b := NewBackoff(time.Second, 60*time.Second)

	prev := time.Duration(0)
	for i := 0; i < 20; i++ {
		d := b.Next()
		if d < prev {
			t.Fatalf("delay decreased without a reset: %v after %v", d, prev)
		}
		if d > 60*time.Second {
			t.Fatalf("delay %v exceeds max", d)
		}
		prev = d
	}
}

func TestBackoffDefensiveBounds(t *testing.T) {
	b := NewBackoff(0, -time.Second)
	if got := b.Next(); got != time.Second {
		t.Errorf("Next() with degenerate bounds = %v, want 1s", got)
	}
}
