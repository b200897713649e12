package types

import "math"

// Add returns a + b.
//
// NULL is the identity on either side. Two integers add as integers and fall
// back to a real when the sum overflows; any other numeric pair adds as
// reals. Text concatenates with text, and with a number rendered by
// OwnedValue.String. Every other combination is a contract violation.
func Add(a, b OwnedValue) OwnedValue {
	switch {
	case b.Kind == KindNull:
		return a
	case a.Kind == KindNull:
		return b
	case a.Kind == KindInteger && b.Kind == KindInteger:
		return addInts(a.I64, b.I64)
	case a.IsNumeric() && b.IsNumeric():
		return Float(asFloat(a) + asFloat(b))
	case a.Kind == KindText && b.Kind == KindText:
		return NewText(a.Text.Value + b.Text.Value)
	case a.Kind == KindText && b.IsNumeric():
		return NewText(a.Text.Value + b.String())
	case a.IsNumeric() && b.Kind == KindText:
		return NewText(a.String() + b.Text.Value)
	}
	Violate("add", "%s + %s is undefined", a.Kind, b.Kind)
	return OwnedValue{}
}

// AddInt returns v + i for a numeric v.
func AddInt(v OwnedValue, i int64) OwnedValue {
	switch v.Kind {
	case KindInteger:
		return addInts(v.I64, i)
	case KindFloat:
		return Float(v.F64 + float64(i))
	}
	Violate("add", "%s + integer is undefined", v.Kind)
	return OwnedValue{}
}

// AddFloat returns v + f for a numeric v.
func AddFloat(v OwnedValue, f float64) OwnedValue {
	if !v.IsNumeric() {
		Violate("add", "%s + real is undefined", v.Kind)
	}
	return Float(asFloat(v) + f)
}

// Div returns a / b.
//
// A NULL operand or a zero divisor yields NULL. Two integers divide with
// truncation, except MinInt64 / -1 which yields a real. Mixed numerics
// divide as reals. Non-numeric operands are a contract violation.
func Div(a, b OwnedValue) OwnedValue {
	if !numericOrNull(a) || !numericOrNull(b) {
		Violate("div", "%s / %s is undefined", a.Kind, b.Kind)
	}
	if a.Kind == KindNull || b.Kind == KindNull {
		return Null()
	}
	if a.Kind == KindInteger && b.Kind == KindInteger {
		switch {
		case b.I64 == 0:
			return Null()
		case a.I64 == math.MinInt64 && b.I64 == -1:
			return Float(-float64(math.MinInt64))
		}
		return Integer(a.I64 / b.I64)
	}
	d := asFloat(b)
	if d == 0 {
		return Null()
	}
	return Float(asFloat(a) / d)
}

// AddAssign replaces v with v + b.
func (v *OwnedValue) AddAssign(b OwnedValue) { *v = Add(*v, b) }

// AddAssignInt replaces v with v + i.
func (v *OwnedValue) AddAssignInt(i int64) { *v = AddInt(*v, i) }

// AddAssignFloat replaces v with v + f.
func (v *OwnedValue) AddAssignFloat(f float64) { *v = AddFloat(*v, f) }

// DivAssign replaces v with v / b.
func (v *OwnedValue) DivAssign(b OwnedValue) { *v = Div(*v, b) }

func addInts(a, b int64) OwnedValue {
	s := a + b
	// Overflow iff both operands share a sign the sum does not.
	if (a >= 0) == (b >= 0) && (s >= 0) != (a >= 0) {
		return Float(float64(a) + float64(b))
	}
	return Integer(s)
}

func numericOrNull(v OwnedValue) bool {
	return v.Kind == KindNull || v.IsNumeric()
}
