package record

import (
	"bytes"
	"math"
	"testing"
)

func TestVarintKnownEncodings(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x81, 0x00}},
		{240, []byte{0x81, 0x70}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x81, 0x80, 0x00}},
		{math.MaxUint64, bytes.Repeat([]byte{0xff}, 9)},
	}
	for _, c := range cases {
		got := AppendVarint(nil, c.v)
		if !bytes.Equal(got, c.want) {
			t.Fatalf("AppendVarint(%#x) = % x, want % x", c.v, got, c.want)
		}
		if VarintLen(c.v) != len(c.want) {
			t.Fatalf("VarintLen(%#x) = %d, want %d", c.v, VarintLen(c.v), len(c.want))
		}
	}
}

func TestVarintRoundTrip(t *testing.T) {
	var vals []uint64
	for shift := 0; shift < 64; shift++ {
		base := uint64(1) << shift
		vals = append(vals, base-1, base, base+1)
	}
	vals = append(vals, 0x00ffffffffffffff, 0x0100000000000000, math.MaxUint64)

	for _, v := range vals {
		buf := AppendVarint(nil, v)
		got, n := ReadVarint(buf)
		if n != len(buf) || got != v {
			t.Fatalf("round trip %#x: got %#x (%d bytes of %d)", v, got, n, len(buf))
		}
		if _, n := ReadVarint(buf[:len(buf)-1]); n != 0 {
			t.Fatalf("truncated %#x: expected n == 0, got %d", v, n)
		}
	}
	if VarintLen(0x00ffffffffffffff) != 8 || VarintLen(0x0100000000000000) != 9 {
		t.Fatalf("unexpected 8/9 byte boundary")
	}
}
