package inverter

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Sentinel register values the inverter reports when a measurement is not
// available. They decode to NaN rather than a plausible-looking number.
const (
	naI16 = 0x7FFF
	naU16 = 0xFFFF
	naI32 = 0x7FFFFFFF
	naU32 = 0xFFFFFFFF
)

// Value is one decoded measurement. Numeric values carry Float; status
// registers carry Text instead.
type Value struct {
	Float   float64
	Text    string
	Numeric bool
}

// Sample is a decoded measurement with its register key and read time.
type Sample struct {
	Key   string
	Value Value
	At    time.Time
}

// String renders the value the way it is published: plain decimal for
// numbers (never scientific notation, lifetime yield counters exceed
// 1e6), the text as-is for status values.
func (v Value) String() string {
	if !v.Numeric {
		return v.Text
	}
	if math.IsNaN(v.Float) {
		return "NaN"
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

// IsNaN reports whether the value is numeric and not available.
func (v Value) IsNaN() bool {
	return v.Numeric && math.IsNaN(v.Float)
}

func numeric(f float64) Value {
	return Value{Float: f, Numeric: true}
}

// Decode converts a register's raw big-endian payload into a Value.
//
// Parameters:
//   - reg: Table entry describing width, signedness and gain
//   - data: Raw register bytes, reg.Quantity*2 long
//
// Returns:
//   - Value: Decoded measurement, NaN for sentinel raw values
//   - error: Payload length mismatch
func Decode(reg Register, data []byte) (Value, error) {
	if len(data) != int(reg.Quantity)*2 {
		return Value{}, fmt.Errorf("register %s: payload %d bytes, want %d",
			reg.Key, len(data), reg.Quantity*2)
	}

	var raw float64
	switch reg.Kind {
	case KindI16:
		u := binary.BigEndian.Uint16(data)
		if u == naI16 {
			return numeric(math.NaN()), nil
		}
		raw = float64(int16(u))
	case KindU16:
		u := binary.BigEndian.Uint16(data)
		if u == naU16 {
			return numeric(math.NaN()), nil
		}
		raw = float64(u)
	case KindI32:
		u := binary.BigEndian.Uint32(data)
		if u == naI32 {
			return numeric(math.NaN()), nil
		}
		raw = float64(int32(u))
	case KindU32:
		u := binary.BigEndian.Uint32(data)
		if u == naU32 {
			return numeric(math.NaN()), nil
		}
		raw = float64(u)
	case KindStatus:
		code := binary.BigEndian.Uint16(data)
		return Value{Text: StatusText(code)}, nil
	default:
		return Value{}, fmt.Errorf("register %s: unhandled kind %d", reg.Key, reg.Kind)
	}

	if reg.Gain > 1 {
		raw /= reg.Gain
	}
	return numeric(raw), nil
}
