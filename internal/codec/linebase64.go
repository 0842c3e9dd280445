package codec

import (
	"encoding/base64"
	"errors"
	"strings"
	"unicode"
)

// LineWidth is the column at which encoded base64 text is wrapped.
const LineWidth = 72

// ErrCorruptBase64 is returned when the cleaned input leaves a single dangling
// character, which cannot encode any byte.
var ErrCorruptBase64 = errors.New("corrupt base64 tail")

// EncodeLineBase64 encodes data as standard base64 without padding, broken into
// lines of LineWidth characters. The last line carries no trailing newline.
func EncodeLineBase64(data []byte) string {
	raw := base64.RawStdEncoding.EncodeToString(data)
	if len(raw) <= LineWidth {
		return raw
	}

	var sb strings.Builder
	sb.Grow(len(raw) + len(raw)/LineWidth)
	for i := 0; i < len(raw); i += LineWidth {
		if i > 0 {
			sb.WriteByte('\n')
		}
		end := i + LineWidth
		if end > len(raw) {
			end = len(raw)
		}
		sb.WriteString(raw[i:end])
	}
	return sb.String()
}

// DecodeLineBase64 decodes base64 text regardless of line breaks, line length
// or missing padding.
func DecodeLineBase64(s string) ([]byte, error) {
	cleaned := StripWhitespace(s)
	cleaned = strings.TrimRight(cleaned, "=")
	if len(cleaned)%4 == 1 {
		return nil, ErrCorruptBase64
	}
	return base64.RawStdEncoding.DecodeString(cleaned)
}

// IsLineBase64Candidate reports whether s looks like unpadded, possibly
// line-wrapped base64 text. It is a heuristic and does not validate.
func IsLineBase64Candidate(s string) bool {
	seen := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '+', r == '/':
			seen = true
		default:
			return false
		}
	}
	return seen
}

// StripWhitespace removes every whitespace character, including embedded line
// breaks and NUL padding.
func StripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == 0 {
			return -1
		}
		return r
	}, s)
}
