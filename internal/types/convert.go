package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Native lists the Go types a Value can be extracted into.
type Native interface {
	int64 | float64 | string | []byte
}

// FromValue extracts v's payload as T. A kind mismatch returns an error
// wrapping ErrConversion; no coercion is attempted. A []byte result aliases
// the owner's payload.
func FromValue[T Native](v Value) (T, error) {
	var out T
	switch p := any(&out).(type) {
	case *int64:
		if v.Kind != KindInteger {
			return out, mismatch(KindInteger, v.Kind)
		}
		*p = v.I64
	case *float64:
		if v.Kind != KindFloat {
			return out, mismatch(KindFloat, v.Kind)
		}
		*p = v.F64
	case *string:
		if v.Kind != KindText {
			return out, mismatch(KindText, v.Kind)
		}
		*p = v.Text
	case *[]byte:
		if v.Kind != KindBlob {
			return out, mismatch(KindBlob, v.Kind)
		}
		*p = v.Blob
	}
	return out, nil
}

func mismatch(want, got Kind) error {
	return fmt.Errorf("%w: expected %s value, found %s", ErrConversion, want, got)
}

// NumericPrefix reads the number at the front of s, after leading spaces:
// "12abc" is 12, "3.5e1x" is 35.0, and text with no leading number is 0.
// Integers too large for int64 become reals.
func NumericPrefix(s string) OwnedValue {
	s = strings.TrimLeft(s, " \t\n\r\f\v")
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := scanDigits(s, i)
	end, isReal := i+digits, false
	if end < len(s) && s[end] == '.' {
		frac := scanDigits(s, end+1)
		if digits+frac > 0 {
			end, isReal = end+1+frac, true
			digits += frac
		}
	}
	if digits == 0 {
		return Integer(0)
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		j := end + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if exp := scanDigits(s, j); exp > 0 {
			end, isReal = j+exp, true
		}
	}
	num := s[:end]
	if !isReal {
		if v, err := strconv.ParseInt(num, 10, 64); err == nil {
			return Integer(v)
		}
	}
	f, _ := strconv.ParseFloat(num, 64)
	return Float(f)
}

func scanDigits(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] >= '0' && s[i+n] <= '9' {
		n++
	}
	return n
}
