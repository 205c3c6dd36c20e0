// Package amount handles payment amounts as integer minor-unit strings.
//
// All amounts on the wire are decimal strings of integer minor units
// (wei-equivalent). Amounts are never represented as floats anywhere;
// comparison and arithmetic go through big.Int only.
package amount

import (
	"errors"
	"math/big"
)

var (
	ErrInvalid  = errors.New("amount: not a valid integer string")
	ErrNegative = errors.New("amount: negative amounts not allowed")
)

// Parse converts a minor-unit decimal string (e.g. "1500000") to a big.Int.
// Fractional, hex, empty, and negative inputs are rejected.
func Parse(s string) (*big.Int, error) {
	if s == "" {
		return nil, ErrInvalid
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, ErrInvalid
	}
	if v.Sign() < 0 {
		return nil, ErrNegative
	}
	return v, nil
}

// AtLeast reports whether s parses as an integer amount >= min.
func AtLeast(s string, min *big.Int) (bool, error) {
	v, err := Parse(s)
	if err != nil {
		return false, err
	}
	return v.Cmp(min) >= 0, nil
}

// Equal reports whether two minor-unit strings represent the same value.
// Invalid input on either side is reported as not equal.
func Equal(a, b string) bool {
	va, err := Parse(a)
	if err != nil {
		return false
	}
	vb, err := Parse(b)
	if err != nil {
		return false
	}
	return va.Cmp(vb) == 0
}
