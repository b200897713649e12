package record

import (
	"encoding/binary"
	"fmt"
	"math"

	"goLite/internal/types"
)

// ParseHeader reads the serial types at the front of payload and returns them
// with the offset at which content begins. Multi-byte header lengths, as
// written by other producers of the format, are accepted.
func ParseHeader(payload []byte) ([]SerialType, int, error) {
	hdr, n := ReadVarint(payload)
	if n == 0 {
		return nil, 0, fmt.Errorf("%w: truncated header length", ErrCorrupt)
	}
	if hdr < uint64(n) || hdr > uint64(len(payload)) {
		return nil, 0, fmt.Errorf("%w: header length %d outside payload of %d bytes", ErrCorrupt, hdr, len(payload))
	}

	var out []SerialType
	pos := n
	for pos < int(hdr) {
		st, m := ReadVarint(payload[pos:int(hdr)])
		if m == 0 {
			return nil, 0, fmt.Errorf("%w: truncated serial type at %d", ErrCorrupt, pos)
		}
		out = append(out, SerialType(st))
		pos += m
	}
	return out, int(hdr), nil
}

// DecodeValue decodes one value of type st from the front of data. Text is
// copied out; blobs get a private copy.
func DecodeValue(st SerialType, data []byte) (types.OwnedValue, error) {
	if st.Reserved() {
		return types.OwnedValue{}, fmt.Errorf("%w: reserved serial type %d", ErrCorrupt, st)
	}
	size := st.Size()
	if len(data) < size {
		return types.OwnedValue{}, fmt.Errorf("%w: %s needs %d bytes, have %d", ErrCorrupt, st, size, len(data))
	}
	data = data[:size]

	switch st {
	case SerialNull:
		return types.Null(), nil
	case SerialZero:
		return types.Integer(0), nil
	case SerialOne:
		return types.Integer(1), nil
	case SerialI8:
		return types.Integer(int64(int8(data[0]))), nil
	case SerialI16:
		return types.Integer(int64(int16(binary.BigEndian.Uint16(data)))), nil
	case SerialI24:
		u := uint64(data[0])<<16 | uint64(data[1])<<8 | uint64(data[2])
		return types.Integer(int64(u<<40) >> 40), nil
	case SerialI32:
		return types.Integer(int64(int32(binary.BigEndian.Uint32(data)))), nil
	case SerialI48:
		u := uint64(binary.BigEndian.Uint16(data))<<32 | uint64(binary.BigEndian.Uint32(data[2:]))
		return types.Integer(int64(u<<16) >> 16), nil
	case SerialI64:
		return types.Integer(int64(binary.BigEndian.Uint64(data))), nil
	case SerialF64:
		return types.Float(math.Float64frombits(binary.BigEndian.Uint64(data))), nil
	}
	if st.IsText() {
		return types.NewText(string(data)), nil
	}
	return types.NewBlob(data), nil
}

// Decode parses a complete record payload.
func Decode(payload []byte) (types.OwnedRecord, error) {
	sts, off, err := ParseHeader(payload)
	if err != nil {
		return types.OwnedRecord{}, err
	}
	vals := make([]types.OwnedValue, len(sts))
	for i, st := range sts {
		v, err := DecodeValue(st, payload[off:])
		if err != nil {
			return types.OwnedRecord{}, fmt.Errorf("column %d: %w", i, err)
		}
		vals[i] = v
		off += st.Size()
	}
	return types.OwnedRecord{Values: vals}, nil
}
