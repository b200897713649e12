package types

import (
	"bytes"
	"cmp"
	"strings"
)

// class ranks the storage classes for cross-kind ordering.
type class uint8

const (
	classNull class = iota
	classNumeric
	classText
	classBlob
)

func classOf(k Kind) class {
	switch k {
	case KindNull:
		return classNull
	case KindInteger, KindFloat:
		return classNumeric
	case KindText:
		return classText
	default:
		return classBlob
	}
}

// Compare returns -1, 0 or +1 as a sorts before, equal to or after b.
//
// NULL is the least value and equals itself. Integers and reals compare by
// numeric value, with integers promoted to float64 when kinds differ. All
// numbers sort before text, and text before blobs; text and blobs compare
// byte-wise. Aggregates compare by their final value. Records compare
// field-wise, the shorter record first on a tie. Ordering a record against a
// non-NULL scalar panics.
func Compare(a, b OwnedValue) int {
	if a.Kind == KindAgg {
		a = a.Agg.FinalValue()
	}
	if b.Kind == KindAgg {
		b = b.Agg.FinalValue()
	}

	switch {
	case a.Kind == KindNull && b.Kind == KindNull:
		return 0
	case a.Kind == KindNull:
		return -1
	case b.Kind == KindNull:
		return 1
	}

	if a.Kind == KindRecord || b.Kind == KindRecord {
		if a.Kind != b.Kind {
			Violate("compare", "cannot order %s against %s", a.Kind, b.Kind)
		}
		return a.Rec.Compare(*b.Rec)
	}

	ca, cb := classOf(a.Kind), classOf(b.Kind)
	if ca != cb {
		return cmp.Compare(ca, cb)
	}
	switch ca {
	case classNumeric:
		if a.Kind == KindInteger && b.Kind == KindInteger {
			return cmp.Compare(a.I64, b.I64)
		}
		// NaN sorts below every other number and equals itself.
		return cmp.Compare(asFloat(a), asFloat(b))
	case classText:
		return strings.Compare(a.Text.Value, b.Text.Value)
	default:
		return bytes.Compare(a.Blob.data, b.Blob.data)
	}
}

// Equal reports whether a and b compare equal. Text subtype is ignored.
func Equal(a, b OwnedValue) bool { return Compare(a, b) == 0 }

// Less reports whether a sorts strictly before b.
func Less(a, b OwnedValue) bool { return Compare(a, b) < 0 }

// Compare orders two records field by field; on a common-prefix tie the
// shorter record sorts first.
func (r OwnedRecord) Compare(o OwnedRecord) int {
	n := min(len(r.Values), len(o.Values))
	for i := 0; i < n; i++ {
		if c := Compare(r.Values[i], o.Values[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(r.Values), len(o.Values))
}

// ComparePrefix compares only the first key.Len() fields of r with key, so
// a partial key matches every record that starts with it. A record shorter
// than the key sorts before it when all its fields tie.
func (r OwnedRecord) ComparePrefix(key OwnedRecord) int {
	n := min(len(r.Values), len(key.Values))
	for i := 0; i < n; i++ {
		if c := Compare(r.Values[i], key.Values[i]); c != 0 {
			return c
		}
	}
	if len(r.Values) < len(key.Values) {
		return -1
	}
	return 0
}

func asFloat(v OwnedValue) float64 {
	if v.Kind == KindInteger {
		return float64(v.I64)
	}
	return v.F64
}
