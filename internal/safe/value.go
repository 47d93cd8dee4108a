// Package safe provides clamping numeric conversions.
package safe

import (
	"math"
)

// Uint64ToInt64 converts val to int64, clamping to math.MaxInt64.
// The boolean reports whether clamping occurred.
func Uint64ToInt64(val uint64) (int64, bool) {
	if val > math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(val), false
}

// MulInt64 multiplies a and b, saturating at math.MaxInt64 for non-negative
// operands.
func MulInt64(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}
