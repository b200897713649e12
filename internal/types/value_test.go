package types

import (
	"errors"
	"math"
	"testing"

	"github.com/goccy/go-json"
)

func expectViolation(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if _, ok := recover().(*ContractViolation); !ok {
			t.Fatalf("%s: expected contract violation", name)
		}
	}()
	fn()
}

func TestAddNullIdentity(t *testing.T) {
	for _, v := range []OwnedValue{Integer(3), Float(2.5), NewText("x"), NewBlob([]byte{1}), Null()} {
		if got := Add(v, Null()); got.Kind != v.Kind || !Equal(got, v) {
			t.Fatalf("%v + NULL = %v", v, got)
		}
		if got := Add(Null(), v); got.Kind != v.Kind || !Equal(got, v) {
			t.Fatalf("NULL + %v = %v", v, got)
		}
	}
}

func TestAddNumeric(t *testing.T) {
	if got := Add(Integer(2), Integer(3)); got.Kind != KindInteger || got.I64 != 5 {
		t.Fatalf("2+3 = %v", got)
	}
	if got := Add(Integer(2), Float(0.5)); got.Kind != KindFloat || got.F64 != 2.5 {
		t.Fatalf("2+0.5 = %v", got)
	}
	got := Add(Integer(math.MaxInt64), Integer(1))
	if got.Kind != KindFloat {
		t.Fatalf("overflowing sum should be real, got %v", got)
	}
	if got := AddInt(Float(1.5), 2); got.Kind != KindFloat || got.F64 != 3.5 {
		t.Fatalf("AddInt(1.5, 2) = %v", got)
	}
	if got := AddFloat(Integer(1), 0.25); got.Kind != KindFloat || got.F64 != 1.25 {
		t.Fatalf("AddFloat(1, 0.25) = %v", got)
	}
}

func TestAddText(t *testing.T) {
	cases := []struct {
		a, b OwnedValue
		want string
	}{
		{NewText("a"), NewText("b"), "ab"},
		{NewText("n="), Integer(4), "n=4"},
		{Integer(4), NewText("!"), "4!"},
		{NewText("x"), Float(1), "x1.0"},
		{Float(2.5), NewText("y"), "2.5y"},
	}
	for _, c := range cases {
		got := Add(c.a, c.b)
		if got.Kind != KindText || got.Text.Value != c.want {
			t.Fatalf("%v + %v = %v, want %q", c.a, c.b, got, c.want)
		}
	}
}

func TestAddAssignReplacesValue(t *testing.T) {
	v := Integer(1)
	v.AddAssign(Float(0.5))
	if v.Kind != KindFloat || v.F64 != 1.5 {
		t.Fatalf("AddAssign: got %v", v)
	}
	v.AddAssignInt(1)
	v.AddAssignFloat(0.5)
	if v.F64 != 3 {
		t.Fatalf("assign chain: got %v", v)
	}
	v.DivAssign(Integer(2))
	if v.F64 != 1.5 {
		t.Fatalf("DivAssign: got %v", v)
	}
}

func TestDiv(t *testing.T) {
	if got := Div(Integer(7), Integer(2)); got.Kind != KindInteger || got.I64 != 3 {
		t.Fatalf("7/2 = %v", got)
	}
	if got := Div(Integer(7), Float(2)); got.Kind != KindFloat || got.F64 != 3.5 {
		t.Fatalf("7/2.0 = %v", got)
	}
	if got := Div(Integer(7), Integer(0)); !got.IsNull() {
		t.Fatalf("7/0 = %v, want NULL", got)
	}
	if got := Div(Float(7), Float(0)); !got.IsNull() {
		t.Fatalf("7.0/0.0 = %v, want NULL", got)
	}
	if got := Div(Null(), Integer(1)); !got.IsNull() {
		t.Fatalf("NULL/1 = %v, want NULL", got)
	}
	if got := Div(Integer(math.MinInt64), Integer(-1)); got.Kind != KindFloat {
		t.Fatalf("MinInt64/-1 should be real, got %v", got)
	}
}

func TestArithmeticViolations(t *testing.T) {
	expectViolation(t, "blob+int", func() { Add(NewBlob([]byte{1}), Integer(1)) })
	expectViolation(t, "text/int", func() { Div(NewText("1"), Integer(1)) })
	expectViolation(t, "text+=int", func() { AddInt(NewText("1"), 1) })
	expectViolation(t, "record view", func() { NewRecordValue(NewOwnedRecord()).View() })
}

func TestAggregates(t *testing.T) {
	inputs := []OwnedValue{Integer(4), Null(), Integer(1), Float(2.5), Integer(7)}

	sum, avg, count := NewSum(), NewAvg(), NewCount()
	mx, mn, gc := NewMax(), NewMin(), NewGroupConcat(",")
	for _, v := range inputs {
		for _, a := range []*AggContext{sum, avg, count, mx, mn, gc} {
			a.Step(v)
		}
	}
	avg.Finalize()

	if got := sum.FinalValue(); got.Kind != KindFloat || got.F64 != 14.5 {
		t.Fatalf("sum = %v", got)
	}
	if got := avg.FinalValue(); got.Kind != KindFloat || got.F64 != 14.5/4 {
		t.Fatalf("avg = %v", got)
	}
	if got := count.FinalValue(); got.I64 != 4 {
		t.Fatalf("count = %v", got)
	}
	if got := mx.FinalValue(); got.I64 != 7 {
		t.Fatalf("max = %v", got)
	}
	if got := mn.FinalValue(); got.I64 != 1 {
		t.Fatalf("min = %v", got)
	}
	if got := gc.FinalValue(); got.Text.Value != "4,1,2.5,7" {
		t.Fatalf("group_concat = %v", got)
	}
}

func TestSumReadsNumericText(t *testing.T) {
	sum := NewSum()
	for _, v := range []OwnedValue{NewText("12"), NewText(" 3.5abc"), NewText("x"), NewBlob([]byte("4")), Integer(1)} {
		sum.Step(v)
	}
	if got := sum.FinalValue(); got.Kind != KindFloat || got.F64 != 20.5 {
		t.Fatalf("sum = %v", got)
	}

	cases := map[string]OwnedValue{
		"42":                   Integer(42),
		"  -7 apples":          Integer(-7),
		"+3":                   Integer(3),
		"1e3":                  Float(1000),
		"2.":                   Float(2),
		".5x":                  Float(0.5),
		"1e":                   Integer(1),
		"abc":                  Integer(0),
		"-":                    Integer(0),
		"":                     Integer(0),
		"99999999999999999999": Float(1e20),
	}
	for in, want := range cases {
		got := NumericPrefix(in)
		if got.Kind != want.Kind || got.I64 != want.I64 || got.F64 != want.F64 {
			t.Fatalf("NumericPrefix(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestAggregatesEmpty(t *testing.T) {
	avg := NewAvg()
	avg.Finalize()
	for name, a := range map[string]*AggContext{
		"avg": avg, "sum": NewSum(), "max": NewMax(), "min": NewMin(), "group_concat": NewGroupConcat(","),
	} {
		if got := a.FinalValue(); !got.IsNull() {
			t.Fatalf("empty %s = %v, want NULL", name, got)
		}
	}
	if got := NewCount().FinalValue(); got.I64 != 0 {
		t.Fatalf("empty count = %v", got)
	}
	if NewAgg(NewMax()).View().Kind != KindNull {
		t.Fatalf("empty max should view as NULL")
	}
}

func TestFromValue(t *testing.T) {
	v := NewText("hello")
	s, err := FromValue[string](v.View())
	if err != nil || s != "hello" {
		t.Fatalf("FromValue[string] = %q, %v", s, err)
	}
	i, err := FromValue[int64](Integer(9).View())
	if err != nil || i != 9 {
		t.Fatalf("FromValue[int64] = %d, %v", i, err)
	}
	b, err := FromValue[[]byte](NewBlob([]byte{1, 2}).View())
	if err != nil || len(b) != 2 {
		t.Fatalf("FromValue[[]byte] = %v, %v", b, err)
	}
	if _, err := FromValue[int64](v.View()); !errors.Is(err, ErrConversion) {
		t.Fatalf("expected ErrConversion, got %v", err)
	}
	if _, err := FromValue[float64](Integer(1).View()); !errors.Is(err, ErrConversion) {
		t.Fatalf("expected ErrConversion for integer->real, got %v", err)
	}
}

func TestViewAliasesPayload(t *testing.T) {
	owned := NewBlob([]byte{1, 2, 3})
	view := owned.View()
	if &view.Blob[0] != &owned.Blob.Bytes()[0] {
		t.Fatalf("view should alias the owned payload")
	}
	src := []byte{9}
	copied := NewBlob(src)
	src[0] = 0
	if copied.Blob.Bytes()[0] != 9 {
		t.Fatalf("NewBlob should copy its input")
	}
}

func TestDisplay(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{Null().String(), "NULL"},
		{Integer(-12).String(), "-12"},
		{Float(1).String(), "1.0"},
		{Float(2.5).String(), "2.5"},
		{Float(1).View().String(), "1"},
		{Float(1e20).String(), "1e20"},
		{NewText("héllo").String(), "héllo"},
		{NewBlob([]byte("ok")).String(), "ok"},
		{NewBlob([]byte{1, 2}).View().String(), "[1, 2]"},
		{NewOwnedRecord(Integer(1), NewText("a")).String(), "(1, a)"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Fatalf("display: got %q, want %q", c.got, c.want)
		}
	}
}

func TestMarshalJSON(t *testing.T) {
	rec := NewOwnedRecord(Null(), Integer(3), Float(1.5), NewText("a"), NewJSON(`{"k":[1,2]}`), NewBlob([]byte{0xff}))
	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `[null,3,1.5,"a",{"k":[1,2]},"/w=="]`
	if string(out) != want {
		t.Fatalf("json: got %s, want %s", out, want)
	}
}
