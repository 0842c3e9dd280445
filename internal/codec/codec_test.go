package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestBitPackRoundTrip(t *testing.T) {
	triples := [][3]byte{
		{0x00, 0x00, 0x00},
		{0xFF, 0xFF, 0xFF},
		{0xCC, 0x00, 0x00},
		{0x12, 0x34, 0x56},
		{0x80, 0x01, 0x7F},
	}

	for _, tc := range triples {
		b0, b1, b2, b3 := Pack32(tc[0], tc[1], tc[2])
		for _, b := range []byte{b0, b1, b2, b3} {
			if b&0x80 != 0 {
				t.Errorf("Pack32(%v): expected 7-bit bytes, got %#x", tc, b)
			}
		}
		d0, d1, d2 := Unpack32(b0, b1, b2, b3)
		if d0 != tc[0] || d1 != tc[1] || d2 != tc[2] {
			t.Errorf("Round trip of %v: got %v %v %v", tc, d0, d1, d2)
		}
	}
}

func TestBitPackExhaustiveLowByte(t *testing.T) {
	for i := 0; i < 256; i++ {
		for _, hi := range []byte{0x00, 0x7F, 0xFF} {
			d0, d1, d2 := Unpack32(Pack32(hi, byte(i), byte(255-i)))
			if d0 != hi || d1 != byte(i) || d2 != byte(255-i) {
				t.Fatalf("Round trip failed for (%d, %d, %d)", hi, i, 255-i)
			}
		}
	}
}

func TestBitPackBuffers(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		src := []byte{1, 2, 3, 250, 251, 252}
		packed, err := EncodeBitPacked(src)
		if err != nil {
			t.Fatalf("EncodeBitPacked failed: %v", err)
		}
		if len(packed) != 8 {
			t.Fatalf("Expected 8 packed bytes, got %d", len(packed))
		}
		out, err := DecodeBitPacked(packed)
		if err != nil {
			t.Fatalf("DecodeBitPacked failed: %v", err)
		}
		if !bytes.Equal(out, src) {
			t.Errorf("Expected %v, got %v", src, out)
		}
	})

	t.Run("LengthMismatch", func(t *testing.T) {
		if _, err := DecodeBitPacked([]byte{1, 2, 3}); !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("Expected ErrLengthMismatch on decode, got %v", err)
		}
		if _, err := EncodeBitPacked([]byte{1, 2, 3, 4}); !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("Expected ErrLengthMismatch on encode, got %v", err)
		}
	})

	t.Run("Uint24View", func(t *testing.T) {
		b := make([]byte, 4)
		PutUint24(b, 0xABCDEF)
		if got := Uint24(b); got != 0xABCDEF {
			t.Errorf("Expected 0xABCDEF, got %#x", got)
		}
		r, g, bl := RGB(b)
		if r != 0xAB || g != 0xCD || bl != 0xEF {
			t.Errorf("Expected RGB ab cd ef, got %x %x %x", r, g, bl)
		}
	})
}

func TestLineBase64(t *testing.T) {
	t.Run("RoundTripAllRemainders", func(t *testing.T) {
		for n := 0; n < 300; n++ {
			buf := make([]byte, n)
			for i := range buf {
				buf[i] = byte(i*7 + n)
			}
			encoded := EncodeLineBase64(buf)
			decoded, err := DecodeLineBase64(encoded)
			if err != nil {
				t.Fatalf("DecodeLineBase64 failed for length %d: %v", n, err)
			}
			if !bytes.Equal(decoded, buf) {
				t.Fatalf("Round trip mismatch for length %d", n)
			}
		}
	})

	t.Run("LineShape", func(t *testing.T) {
		buf := bytes.Repeat([]byte{0xAA, 0x55, 0x01}, 100)
		encoded := EncodeLineBase64(buf)
		if strings.Contains(encoded, "=") {
			t.Error("Expected no padding characters")
		}
		if strings.HasSuffix(encoded, "\n") {
			t.Error("Expected no trailing line break")
		}
		lines := strings.Split(encoded, "\n")
		for i, line := range lines[:len(lines)-1] {
			if len(line) != LineWidth {
				t.Errorf("Line %d: expected %d chars, got %d", i, LineWidth, len(line))
			}
		}
		if last := lines[len(lines)-1]; len(last) == 0 || len(last) > LineWidth {
			t.Errorf("Unexpected final line length %d", len(last))
		}
	})

	t.Run("TolerantDecode", func(t *testing.T) {
		cases := []struct {
			name  string
			input string
			want  string
		}{
			{"padded", "aGVsbG8=", "hello"},
			{"unpadded", "aGVsbG8", "hello"},
			{"wrapped", "aGVs\nbG8", "hello"},
			{"crlf and spaces", " aG\r\nVsb G8 ", "hello"},
		}
		for _, tc := range cases {
			got, err := DecodeLineBase64(tc.input)
			if err != nil {
				t.Errorf("%s: unexpected error %v", tc.name, err)
				continue
			}
			if string(got) != tc.want {
				t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
			}
		}
	})

	t.Run("DanglingCharacter", func(t *testing.T) {
		if _, err := DecodeLineBase64("aGVsb"); !errors.Is(err, ErrCorruptBase64) {
			t.Errorf("Expected ErrCorruptBase64, got %v", err)
		}
	})

	t.Run("Candidate", func(t *testing.T) {
		cases := []struct {
			input string
			want  bool
		}{
			{"aGVsbG8", true},
			{"aGVs\nbG8", true},
			{"aGVsbG8=", false},
			{"", false},
			{"not base64!", false},
		}
		for _, tc := range cases {
			if got := IsLineBase64Candidate(tc.input); got != tc.want {
				t.Errorf("IsLineBase64Candidate(%q): expected %v, got %v", tc.input, tc.want, got)
			}
		}
	})
}

func TestUTF16BE(t *testing.T) {
	cases := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte{0x00, 'a', 0x00, 'b'}, "ab"},
		{"path", EncodeUTF16BE("/Music/Ünïcode.mp3"), "/Music/Ünïcode.mp3"},
		{"embedded nul", []byte{0x00, 'a', 0x00, 0x00, 0x00, 'b'}, "ab"},
		{"odd length", []byte{0x00, 'a', 0x00}, "a"},
		{"empty", nil, ""},
	}
	for _, tc := range cases {
		if got := DecodeUTF16BE(tc.input); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
