// Package fixedpoint implements the Q17.14 fixed-point arithmetic the
// MLFQ scheduler needs for recent_cpu and load_avg (spec.md §4.1).
// Go has no native fixed-point type, so this mirrors the teacher's own
// habit (mem.Pa_t, defs.Err_t) of wrapping a plain integer in a named
// type to keep the unit out of the variable's name.
package fixedpoint

// shift is the number of fractional bits: 2^14 == F in the original
// fixed-point.h this package is ported from.
const shift = 14

// scale is F.
const scale = 1 << shift

// Fixed is a Q17.14 fixed-point number: an int64 holding value*scale.
type Fixed int64

// FromInt converts an integer to fixed point.
func FromInt(n int) Fixed {
	return Fixed(int64(n) * scale)
}

// ToIntTrunc converts to an integer, truncating toward zero.
func (x Fixed) ToIntTrunc() int {
	return int(int64(x) / scale)
}

// ToIntNearest converts to an integer, rounding to the nearest integer
// and away from zero on a tie — the original's
// FP_TO_INT_NEAREST(x) (x >= 0 ? (x + F/2)/F : (x - F/2)/F).
func (x Fixed) ToIntNearest() int {
	if x >= 0 {
		return int((int64(x) + scale/2) / scale)
	}
	return int((int64(x) - scale/2) / scale)
}

// Add is fixed + fixed.
func (x Fixed) Add(y Fixed) Fixed { return x + y }

// Sub is fixed - fixed.
func (x Fixed) Sub(y Fixed) Fixed { return x - y }

// AddInt is fixed + integer.
func (x Fixed) AddInt(n int) Fixed { return x + Fixed(int64(n)*scale) }

// SubInt is fixed - integer.
func (x Fixed) SubInt(n int) Fixed { return x - Fixed(int64(n)*scale) }

// Mul is fixed * fixed, computed with a 64-bit intermediate per
// spec.md §4.1: (x*y) >> 14. Fixed is already int64-backed so the
// shift is an ordinary division by scale.
func (x Fixed) Mul(y Fixed) Fixed {
	return Fixed(int64(x) * int64(y) / scale)
}

// MulInt is fixed * integer (plain integer multiplication).
func (x Fixed) MulInt(n int) Fixed {
	return Fixed(int64(x) * int64(n))
}

// Div is fixed / fixed, computed as (x << 14) / y.
func (x Fixed) Div(y Fixed) Fixed {
	return Fixed(int64(x) * scale / int64(y))
}

// DivInt is fixed / integer (plain integer division).
func (x Fixed) DivInt(n int) Fixed {
	return Fixed(int64(x) / int64(n))
}
