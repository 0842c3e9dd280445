package codec

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
)

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

// DecodeUTF16BE decodes big-endian UTF-16 text without a byte order mark and
// strips embedded NUL characters. An odd trailing byte is ignored.
func DecodeUTF16BE(b []byte) string {
	if len(b)%2 == 1 {
		b = b[:len(b)-1]
	}
	out, err := utf16BE.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(string(out), "\x00", "")
}

// EncodeUTF16BE is the inverse of DecodeUTF16BE. It is used to build fixtures
// and never writes library files.
func EncodeUTF16BE(s string) []byte {
	out, err := utf16BE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil
	}
	return out
}
