package types

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// String renders an owned value. Reals keep a fractional part (1.0, not 1);
// blobs are rendered as text with invalid UTF-8 replaced.
func (v OwnedValue) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return formatFloat(v.F64, true)
	case KindText:
		return v.Text.Value
	case KindBlob:
		return strings.ToValidUTF8(string(v.Blob.data), "\uFFFD")
	case KindAgg:
		return v.Agg.String()
	case KindRecord:
		return v.Rec.String()
	default:
		return "<" + v.Kind.String() + ">"
	}
}

// MarshalJSON encodes the value as its natural JSON form. JSON-subtype text
// is emitted verbatim when it is valid JSON; blobs are base64 strings;
// non-finite reals become null.
func (v OwnedValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return []byte("null"), nil
	case KindInteger:
		return strconv.AppendInt(nil, v.I64, 10), nil
	case KindFloat:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.F64)
	case KindText:
		if v.Text.Subtype == SubtypeJSON && json.Valid([]byte(v.Text.Value)) {
			return []byte(v.Text.Value), nil
		}
		return json.Marshal(v.Text.Value)
	case KindBlob:
		return json.Marshal(v.Blob.data)
	case KindAgg:
		return v.Agg.FinalValue().MarshalJSON()
	case KindRecord:
		return v.Rec.MarshalJSON()
	}
	return []byte("null"), nil
}

// MarshalJSON encodes the record as a JSON array.
func (r OwnedRecord) MarshalJSON() ([]byte, error) {
	if r.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.Values)
}

// formatFloat prints the shortest representation that round-trips. With
// fraction set, integral values get a ".0" suffix and very large or small
// magnitudes switch to exponent form (1e16, 1e-5).
func formatFloat(f float64, fraction bool) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if !fraction {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if abs := math.Abs(f); abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		e, _ := strconv.Atoi(exp)
		return mant + "e" + strconv.Itoa(e)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
