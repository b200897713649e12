// Package record implements the on-disk row layout:
//
//	[header length varint][serial type varint]...[content]...
//
// The header length counts its own byte. Content follows in column order with
// no per-value length; the serial type carries it.
package record

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"goLite/internal/types"
)

// maxSerialBytes is the largest serial-type list whose header length still
// fits a one-byte varint.
const maxSerialBytes = 126

// HeaderLen returns the encoded header length of rec, length byte included.
// Records whose serial types exceed maxSerialBytes return ErrUnsupported.
func HeaderLen(rec types.OwnedRecord) (int, error) {
	n := 0
	for _, v := range rec.Values {
		n += VarintLen(uint64(Classify(v)))
	}
	if n > maxSerialBytes {
		return 0, fmt.Errorf("%w: header of %d serial type bytes needs a multi-byte length", ErrUnsupported, n)
	}
	return n + 1, nil
}

// Size returns the full encoded length of rec.
func Size(rec types.OwnedRecord) (int, error) {
	n, err := HeaderLen(rec)
	if err != nil {
		return 0, err
	}
	for _, v := range rec.Values {
		n += Classify(v).Size()
	}
	return n, nil
}

// Serialize appends the encoding of rec to dst and returns the extended
// buffer. On error dst is returned unchanged.
func Serialize(dst []byte, rec types.OwnedRecord) ([]byte, error) {
	size, err := Size(rec)
	if err != nil {
		return dst, err
	}
	hdr, _ := HeaderLen(rec)

	dst = slices.Grow(dst, size)
	dst = append(dst, byte(hdr))
	for _, v := range rec.Values {
		dst = AppendVarint(dst, uint64(Classify(v)))
	}
	for _, v := range rec.Values {
		dst = appendContent(dst, v)
	}
	return dst, nil
}

func appendContent(dst []byte, v types.OwnedValue) []byte {
	switch v.Kind {
	case types.KindInteger:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(v.I64))
		w := intSerialType(v.I64).Size()
		// Keep the low w bytes of the big-endian form.
		return append(dst, buf[8-w:]...)
	case types.KindFloat:
		return binary.BigEndian.AppendUint64(dst, math.Float64bits(v.F64))
	case types.KindText:
		return append(dst, v.Text.Value...)
	case types.KindBlob:
		return append(dst, v.Blob.Bytes()...)
	}
	return dst
}
