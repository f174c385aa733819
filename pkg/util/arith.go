package util

import "math"

// MulInt returns a*b for non-negative operands. ok is false when the product
// does not fit in an int.
func MulInt(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a != 0 && b > math.MaxInt/a {
		return math.MaxInt, false
	}
	return a * b, true
}

// AddInt returns a+b for non-negative operands. ok is false on overflow.
func AddInt(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a > math.MaxInt-b {
		return math.MaxInt, false
	}
	return a + b, true
}
