package types

// AggKind selects the aggregate function an AggContext computes.
type AggKind uint8

const (
	AggAvg AggKind = iota
	AggSum
	AggCount
	AggMax
	AggMin
	AggGroupConcat
)

func (k AggKind) String() string {
	switch k {
	case AggAvg:
		return "avg"
	case AggSum:
		return "sum"
	case AggCount:
		return "count"
	case AggMax:
		return "max"
	case AggMin:
		return "min"
	case AggGroupConcat:
		return "group_concat"
	default:
		return "agg"
	}
}

// AggContext is the running state of one aggregate over a group of rows.
type AggContext struct {
	Kind AggKind

	// Acc is the running value. For Avg it holds the sum until Finalize and
	// the average after.
	Acc OwnedValue
	// Count is the number of inputs folded into an Avg.
	Count OwnedValue
	// Set reports whether Max/Min has seen a non-NULL input.
	Set bool
	// Sep separates GroupConcat items.
	Sep string

	finalized bool
}

func NewAvg() *AggContext {
	return &AggContext{Kind: AggAvg, Acc: Float(0), Count: Integer(0)}
}

func NewSum() *AggContext { return &AggContext{Kind: AggSum, Acc: Null()} }

func NewCount() *AggContext { return &AggContext{Kind: AggCount, Acc: Integer(0)} }

func NewMax() *AggContext { return &AggContext{Kind: AggMax, Acc: Null()} }

func NewMin() *AggContext { return &AggContext{Kind: AggMin, Acc: Null()} }

func NewGroupConcat(sep string) *AggContext {
	return &AggContext{Kind: AggGroupConcat, Acc: Null(), Sep: sep}
}

// Step folds one input into the aggregate. NULL inputs are skipped by every
// function. Sum and Avg read text and blob inputs as the number they start
// with, so '12' adds 12 and 'abc' adds 0.
func (a *AggContext) Step(v OwnedValue) {
	if a.finalized {
		Violate("agg step", "%s already finalized", a.Kind)
	}
	switch v.Kind {
	case KindAgg:
		v = v.Agg.FinalValue()
	case KindRecord:
		Violate("agg step", "record input to %s", a.Kind)
	}
	if v.Kind == KindNull {
		return
	}

	switch a.Kind {
	case AggSum:
		a.Acc.AddAssign(numeric(v))
	case AggAvg:
		a.Acc.AddAssign(numeric(v))
		a.Count.AddAssignInt(1)
	case AggCount:
		a.Acc.AddAssignInt(1)
	case AggMax:
		if !a.Set || Compare(v, a.Acc) > 0 {
			a.Acc, a.Set = v, true
		}
	case AggMin:
		if !a.Set || Compare(v, a.Acc) < 0 {
			a.Acc, a.Set = v, true
		}
	case AggGroupConcat:
		if a.Acc.Kind == KindNull {
			a.Acc = NewText(v.String())
			return
		}
		a.Acc = NewText(a.Acc.Text.Value + a.Sep + v.String())
	}
}

// Finalize completes the aggregate. Only Avg has work to do: it divides the
// running sum by the input count, and yields NULL over zero inputs.
// Calling it more than once is harmless.
func (a *AggContext) Finalize() {
	if a.finalized {
		return
	}
	a.finalized = true
	if a.Kind != AggAvg {
		return
	}
	if a.Count.I64 == 0 {
		a.Acc = Null()
		return
	}
	a.Acc = Div(AddFloat(a.Acc, 0), a.Count)
}

// FinalValue returns the aggregate's current value. The result is never an
// aggregate; Max and Min with no input yield NULL.
func (a *AggContext) FinalValue() OwnedValue {
	switch a.Kind {
	case AggMax, AggMin:
		if !a.Set {
			return Null()
		}
	}
	return a.Acc
}

func (a *AggContext) String() string {
	return a.FinalValue().String()
}

// numeric converts a Sum or Avg input: text and blobs count as the number
// they start with.
func numeric(v OwnedValue) OwnedValue {
	switch v.Kind {
	case KindText:
		return NumericPrefix(v.Text.Value)
	case KindBlob:
		return NumericPrefix(string(v.Blob.Bytes()))
	}
	return v
}
