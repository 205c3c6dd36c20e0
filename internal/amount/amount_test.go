package amount

import (
	"errors"
	"math/big"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"0", "0", nil},
		{"1500000", "1500000", nil},
		{"1000000000000000000000000", "1000000000000000000000000", nil}, // beyond int64
		{"", "", ErrInvalid},
		{"1.5", "", ErrInvalid},
		{"0x10", "", ErrInvalid},
		{"1e6", "", ErrInvalid},
		{"abc", "", ErrInvalid},
		{"-1", "", ErrNegative},
	}

	for _, tt := range tests {
		v, err := Parse(tt.in)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if v.String() != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, v.String(), tt.want)
		}
	}
}

func TestAtLeast(t *testing.T) {
	min := big.NewInt(1000)

	ok, err := AtLeast("1000", min)
	if err != nil || !ok {
		t.Errorf("AtLeast(1000, 1000) = %v, %v; want true", ok, err)
	}
	ok, err = AtLeast("999", min)
	if err != nil || ok {
		t.Errorf("AtLeast(999, 1000) = %v, %v; want false", ok, err)
	}
	if _, err := AtLeast("nope", min); err == nil {
		t.Error("AtLeast with invalid input should error")
	}
}

func TestEqual(t *testing.T) {
	if !Equal("100", "100") {
		t.Error("100 should equal 100")
	}
	// Leading zeros compare by value, not by string.
	if !Equal("0100", "100") {
		t.Error("0100 should equal 100")
	}
	if Equal("100", "101") {
		t.Error("100 should not equal 101")
	}
	if Equal("abc", "abc") {
		t.Error("invalid inputs are never equal")
	}
}
