package codec

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned by the buffer variants of the bit-packing codec
// when the input is not a whole number of groups.
var ErrLengthMismatch = errors.New("bit-packed length mismatch")

// Unpack32 unpacks four 7-bit bytes into three plain bytes. The most
// significant bit of every input byte is ignored.
func Unpack32(b0, b1, b2, b3 byte) (d0, d1, d2 byte) {
	d2 = (b3 & 0x7F) | ((b2 & 0x01) << 7)
	d1 = ((b2 & 0x7F) >> 1) | ((b1 & 0x03) << 6)
	d0 = ((b1 & 0x7F) >> 2) | ((b0 & 0x07) << 5)
	return d0, d1, d2
}

// Pack32 is the inverse of Unpack32.
func Pack32(d0, d1, d2 byte) (b0, b1, b2, b3 byte) {
	b3 = d2 & 0x7F
	b2 = ((d2 >> 7) & 0x01) | ((d1 << 1) & 0x7E)
	b1 = ((d1 >> 6) & 0x03) | ((d0 << 2) & 0x7C)
	b0 = (d0 >> 5) & 0x07
	return b0, b1, b2, b3
}

// DecodeBitPacked unpacks a buffer in groups of 4 bytes into groups of 3.
func DecodeBitPacked(src []byte) ([]byte, error) {
	if len(src)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrLengthMismatch, len(src))
	}
	out := make([]byte, 0, len(src)/4*3)
	for i := 0; i < len(src); i += 4 {
		d0, d1, d2 := Unpack32(src[i], src[i+1], src[i+2], src[i+3])
		out = append(out, d0, d1, d2)
	}
	return out, nil
}

// EncodeBitPacked packs a buffer in groups of 3 bytes into groups of 4.
func EncodeBitPacked(src []byte) ([]byte, error) {
	if len(src)%3 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 3", ErrLengthMismatch, len(src))
	}
	out := make([]byte, 0, len(src)/3*4)
	for i := 0; i < len(src); i += 3 {
		b0, b1, b2, b3 := Pack32(src[i], src[i+1], src[i+2])
		out = append(out, b0, b1, b2, b3)
	}
	return out, nil
}

// Uint24 reads a packed 4-byte unit as a big-endian 24-bit integer.
func Uint24(b []byte) uint32 {
	d0, d1, d2 := Unpack32(b[0], b[1], b[2], b[3])
	return uint32(d0)<<16 | uint32(d1)<<8 | uint32(d2)
}

// PutUint24 packs the low 24 bits of v into b[0:4].
func PutUint24(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = Pack32(byte(v>>16), byte(v>>8), byte(v))
}

// RGB reads a packed 4-byte unit as a red, green, blue triple.
func RGB(b []byte) (r, g, bl byte) {
	return Unpack32(b[0], b[1], b[2], b[3])
}
