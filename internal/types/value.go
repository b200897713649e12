// Package types holds the dynamically typed value model shared by the record
// codec, the comparator and every cursor backend.
//
// Two forms exist. Value is a short-lived view whose Text and Blob payloads
// alias the OwnedValue it was projected from; OwnedValue is the form rows,
// keys and aggregate accumulators are kept in. The only way from one to the
// other is OwnedValue.View.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value or OwnedValue.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
	KindAgg    // OwnedValue only
	KindRecord // OwnedValue only
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "real"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	case KindAgg:
		return "agg"
	case KindRecord:
		return "record"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a borrowed view of one scalar. Text and Blob alias the payload of
// the owner and must not outlive it or be modified.
//
// Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind

	I64  int64   // KindInteger
	F64  float64 // KindFloat
	Text string  // KindText
	Blob []byte  // KindBlob
}

// String renders the view the way query output does. Floats are printed
// without a forced fractional part and blobs as a byte list.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindInteger:
		return strconv.FormatInt(v.I64, 10)
	case KindFloat:
		return formatFloat(v.F64, false)
	case KindText:
		return v.Text
	case KindBlob:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, b := range v.Blob {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Itoa(int(b)))
		}
		sb.WriteByte(']')
		return sb.String()
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

// Record is a view of one decoded row.
type Record struct {
	Values []Value
}

// NewRecord wraps vals without copying.
func NewRecord(vals []Value) Record {
	return Record{Values: vals}
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.Values) }
