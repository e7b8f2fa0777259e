package bridge

import (
	"math"

	"github.com/nerrad567/sunbridge/internal/inverter"
)

// ChangeDetector suppresses republication of values that have not moved.
// It keeps the last published value per register key; entries never expire.
// Single-writer: only the poll loop calls Changed.
type ChangeDetector struct {
	epsilon float64
	last    map[string]inverter.Value
}

// NewChangeDetector returns a detector with an empty cache. Numeric values
// within epsilon of the cached value are considered unchanged.
func NewChangeDetector(epsilon float64) *ChangeDetector {
	if epsilon < 0 {
		epsilon = 0
	}
	return &ChangeDetector{
		epsilon: epsilon,
		last:    make(map[string]inverter.Value),
	}
}

// Changed reports whether the new value warrants publication and, when it
// does, records it as the last published value for the key.
//
// Rules:
//   - First observation of a key always changed.
//   - Two NaN observations in a row are never changed. A stuck sensor
//     publishing NaN forever would otherwise flap on every cycle.
//   - Numeric values changed iff the absolute delta reaches epsilon.
//   - Text values changed iff not identical.
func (d *ChangeDetector) Changed(key string, value inverter.Value) bool {
	old, ok := d.last[key]
	if !ok {
		d.last[key] = value
		return true
	}

	if !d.changed(old, value) {
		return false
	}
	d.last[key] = value
	return true
}

func (d *ChangeDetector) changed(old, new inverter.Value) bool {
	if old.Numeric != new.Numeric {
		return true
	}
	if !new.Numeric {
		return old.Text != new.Text
	}
	if old.IsNaN() && new.IsNaN() {
		return false
	}
	if old.IsNaN() != new.IsNaN() {
		return true
	}
	return math.Abs(new.Float-old.Float) >= d.epsilon
}

// Len returns the number of cached keys, for health reporting.
func (d *ChangeDetector) Len() int {
	return len(d.last)
}
