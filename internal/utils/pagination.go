// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// QueryInt parses s as an int, returning def when s is empty or malformed,
// and clamps the result into [lo, hi]. A hi below lo disables the upper
// bound.
//
//	utils.QueryInt("42", 20, 1, 100)  // 42
//	utils.QueryInt("", 20, 1, 100)    // 20
//	utils.QueryInt("500", 20, 1, 100) // 100
//	utils.QueryInt("-3", 1, 1, 0)     // 1
func QueryInt(s string, def, lo, hi int) int {
	n := def
	if s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			n = v
		}
	}
	if n < lo {
		n = lo
	}
	if hi >= lo && n > hi {
		n = hi
	}
	return n
}
