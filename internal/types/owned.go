package types

import (
	"bytes"
	"strings"
)

// TextSubtype marks how text is rendered downstream. It never takes part in
// equality or ordering.
type TextSubtype uint8

const (
	SubtypeText TextSubtype = iota
	SubtypeJSON
)

// Text is an immutable string payload. Copies share the backing string.
type Text struct {
	Value   string
	Subtype TextSubtype
}

// Blob is an immutable byte payload shared by every copy of the value that
// holds it. Nothing in this module writes through it once constructed.
type Blob struct {
	data []byte
}

// Bytes returns the shared payload. Callers must treat it as read-only.
func (b Blob) Bytes() []byte { return b.data }

// Len returns the payload length in bytes.
func (b Blob) Len() int { return len(b.data) }

// OwnedValue is the long-lived tagged value: one column of a row, one field of
// a composite key, or a streaming aggregate.
//
// Only the field matching Kind is meaningful. Replacing a value is always done
// wholesale; payloads are never edited in place.
type OwnedValue struct {
	Kind Kind

	I64  int64        // KindInteger
	F64  float64      // KindFloat
	Text Text         // KindText
	Blob Blob         // KindBlob
	Agg  *AggContext  // KindAgg
	Rec  *OwnedRecord // KindRecord
}

// Null returns the SQL NULL value.
func Null() OwnedValue { return OwnedValue{Kind: KindNull} }

// Integer returns an integer value.
func Integer(i int64) OwnedValue { return OwnedValue{Kind: KindInteger, I64: i} }

// Float returns a real value.
func Float(f float64) OwnedValue { return OwnedValue{Kind: KindFloat, F64: f} }

// NewText builds a plain text value.
func NewText(s string) OwnedValue {
	return OwnedValue{Kind: KindText, Text: Text{Value: s, Subtype: SubtypeText}}
}

// NewJSON builds a text value carrying the JSON subtype.
func NewJSON(s string) OwnedValue {
	return OwnedValue{Kind: KindText, Text: Text{Value: s, Subtype: SubtypeJSON}}
}

// NewBlob builds a blob value from a private copy of b.
func NewBlob(b []byte) OwnedValue {
	c := bytes.Clone(b)
	if c == nil {
		c = []byte{}
	}
	return OwnedValue{Kind: KindBlob, Blob: Blob{data: c}}
}

// WrapBlob builds a blob value that takes ownership of b without copying.
// The caller must not modify b afterwards.
func WrapBlob(b []byte) OwnedValue {
	if b == nil {
		b = []byte{}
	}
	return OwnedValue{Kind: KindBlob, Blob: Blob{data: b}}
}

// NewAgg wraps an aggregate accumulator.
func NewAgg(ctx *AggContext) OwnedValue {
	return OwnedValue{Kind: KindAgg, Agg: ctx}
}

// NewRecordValue wraps a composite key so it can be compared as one value.
func NewRecordValue(rec OwnedRecord) OwnedValue {
	return OwnedValue{Kind: KindRecord, Rec: &rec}
}

// IsNull reports whether v is NULL.
func (v OwnedValue) IsNull() bool { return v.Kind == KindNull }

// IsNumeric reports whether v is an integer or a real.
func (v OwnedValue) IsNumeric() bool {
	return v.Kind == KindInteger || v.Kind == KindFloat
}

// View projects v to a borrowed Value without copying payloads. An aggregate
// projects its final value. Records have no scalar view.
func (v OwnedValue) View() Value {
	switch v.Kind {
	case KindNull:
		return Value{Kind: KindNull}
	case KindInteger:
		return Value{Kind: KindInteger, I64: v.I64}
	case KindFloat:
		return Value{Kind: KindFloat, F64: v.F64}
	case KindText:
		return Value{Kind: KindText, Text: v.Text.Value}
	case KindBlob:
		return Value{Kind: KindBlob, Blob: v.Blob.data}
	case KindAgg:
		return v.Agg.FinalValue().View()
	default:
		Violate("view", "%s values have no scalar view", v.Kind)
		return Value{}
	}
}

// OwnedRecord is an ordered sequence of owned values: one row, or one
// composite index key. Its ordering is field-wise (see Compare).
type OwnedRecord struct {
	Values []OwnedValue
}

// NewOwnedRecord builds a record from vals without copying the slice.
func NewOwnedRecord(vals ...OwnedValue) OwnedRecord {
	return OwnedRecord{Values: vals}
}

// Len returns the number of fields.
func (r OwnedRecord) Len() int { return len(r.Values) }

// View projects every field. The result aliases r's payloads.
func (r OwnedRecord) View() Record {
	vals := make([]Value, len(r.Values))
	for i, v := range r.Values {
		vals[i] = v.View()
	}
	return Record{Values: vals}
}

// Clone returns a record with its own value slice. Payloads stay shared.
func (r OwnedRecord) Clone() OwnedRecord {
	vals := make([]OwnedValue, len(r.Values))
	copy(vals, r.Values)
	return OwnedRecord{Values: vals}
}

func (r OwnedRecord) String() string {
	parts := make([]string, len(r.Values))
	for i, v := range r.Values {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
