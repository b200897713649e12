package record

// MaxVarintLen is the longest encoding of a 64-bit varint.
const MaxVarintLen = 9

// PutVarint encodes v into buf, which must hold MaxVarintLen bytes, and
// returns the number of bytes written.
//
// Groups of 7 bits are written most significant first, each byte but the last
// carrying 0x80. A value that needs more than 56 bits uses all 9 bytes, the
// ninth contributing a full 8 bits.
func PutVarint(buf []byte, v uint64) int {
	if v&(uint64(0xff000000)<<32) != 0 {
		buf[8] = byte(v)
		v >>= 8
		for i := 7; i >= 0; i-- {
			buf[i] = byte(v&0x7f) | 0x80
			v >>= 7
		}
		return 9
	}
	var tmp [MaxVarintLen]byte
	n := 0
	for {
		tmp[n] = byte(v&0x7f) | 0x80
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	tmp[0] &= 0x7f
	for i := 0; i < n; i++ {
		buf[i] = tmp[n-1-i]
	}
	return n
}

// AppendVarint appends the encoding of v to dst.
func AppendVarint(dst []byte, v uint64) []byte {
	var buf [MaxVarintLen]byte
	n := PutVarint(buf[:], v)
	return append(dst, buf[:n]...)
}

// ReadVarint decodes a varint from the front of buf. It returns the value and
// the number of bytes consumed, or n == 0 if buf ends mid-varint.
func ReadVarint(buf []byte) (v uint64, n int) {
	for i := 0; i < 8; i++ {
		if i >= len(buf) {
			return 0, 0
		}
		b := buf[i]
		v = v<<7 | uint64(b&0x7f)
		if b < 0x80 {
			return v, i + 1
		}
	}
	if len(buf) < 9 {
		return 0, 0
	}
	return v<<8 | uint64(buf[8]), 9
}

// VarintLen returns the encoded length of v.
func VarintLen(v uint64) int {
	if v&(uint64(0xff000000)<<32) != 0 {
		return 9
	}
	n := 1
	for v >>= 7; v != 0; v >>= 7 {
		n++
	}
	return n
}
