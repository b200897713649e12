package record

import (
	"math"
	"strconv"

	"goLite/internal/types"
)

// SerialType is the on-disk tag describing a value's kind and content width.
type SerialType uint64

const (
	SerialNull SerialType = 0
	SerialI8   SerialType = 1
	SerialI16  SerialType = 2
	SerialI24  SerialType = 3
	SerialI32  SerialType = 4
	SerialI48  SerialType = 5
	SerialI64  SerialType = 6
	SerialF64  SerialType = 7
	SerialZero SerialType = 8 // integer 0, no content; decode only
	SerialOne  SerialType = 9 // integer 1, no content; decode only
)

const (
	minI24 = -1 << 23
	maxI24 = 1<<23 - 1
	minI48 = -1 << 47
	maxI48 = 1<<47 - 1
)

// Classify returns the serial type v is stored with. Integers take the
// narrowest two's-complement width holding them. Aggregates and records have
// no serial type; passing one is a contract violation.
func Classify(v types.OwnedValue) SerialType {
	switch v.Kind {
	case types.KindNull:
		return SerialNull
	case types.KindInteger:
		return intSerialType(v.I64)
	case types.KindFloat:
		return SerialF64
	case types.KindText:
		return TextSerialType(len(v.Text.Value))
	case types.KindBlob:
		return BlobSerialType(v.Blob.Len())
	}
	types.Violate("classify", "%s values are not stored in records", v.Kind)
	return 0
}

func intSerialType(i int64) SerialType {
	switch {
	case i >= math.MinInt8 && i <= math.MaxInt8:
		return SerialI8
	case i >= math.MinInt16 && i <= math.MaxInt16:
		return SerialI16
	case i >= minI24 && i <= maxI24:
		return SerialI24
	case i >= math.MinInt32 && i <= math.MaxInt32:
		return SerialI32
	case i >= minI48 && i <= maxI48:
		return SerialI48
	default:
		return SerialI64
	}
}

// TextSerialType returns the tag of an n-byte text value.
func TextSerialType(n int) SerialType { return SerialType(n)*2 + 13 }

// BlobSerialType returns the tag of an n-byte blob value.
func BlobSerialType(n int) SerialType { return SerialType(n)*2 + 12 }

// IsText reports whether st tags a text value.
func (st SerialType) IsText() bool { return st >= 13 && st%2 == 1 }

// IsBlob reports whether st tags a blob value.
func (st SerialType) IsBlob() bool { return st >= 12 && st%2 == 0 }

// Reserved reports whether st is one of the codes the format sets aside.
func (st SerialType) Reserved() bool { return st == 10 || st == 11 }

// Size returns the number of content bytes a value of type st occupies.
func (st SerialType) Size() int {
	switch st {
	case SerialNull, SerialZero, SerialOne:
		return 0
	case SerialI8:
		return 1
	case SerialI16:
		return 2
	case SerialI24:
		return 3
	case SerialI32:
		return 4
	case SerialI48:
		return 6
	case SerialI64, SerialF64:
		return 8
	case 10, 11:
		return 0
	}
	if st.IsText() {
		return int((st - 13) / 2)
	}
	return int((st - 12) / 2)
}

// Kind returns the value kind st decodes to.
func (st SerialType) Kind() types.Kind {
	switch {
	case st == SerialNull || st.Reserved():
		return types.KindNull
	case st <= SerialI64 || st == SerialZero || st == SerialOne:
		return types.KindInteger
	case st == SerialF64:
		return types.KindFloat
	case st.IsText():
		return types.KindText
	default:
		return types.KindBlob
	}
}

func (st SerialType) String() string {
	switch {
	case st == SerialNull:
		return "null"
	case st == SerialF64:
		return "f64"
	case st == SerialZero:
		return "zero"
	case st == SerialOne:
		return "one"
	case st.Reserved():
		return "reserved(" + strconv.FormatUint(uint64(st), 10) + ")"
	case st <= SerialI64:
		return "i" + strconv.Itoa(st.Size()*8)
	case st.IsText():
		return "text(" + strconv.Itoa(st.Size()) + ")"
	default:
		return "blob(" + strconv.Itoa(st.Size()) + ")"
	}
}
