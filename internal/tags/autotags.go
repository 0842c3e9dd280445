package tags

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/pkg/models"
)

// Field widths of the Autotags body, in order.
const (
	autotagsBPMWidth      = 7
	autotagsAutoGainWidth = 7
	autotagsGainDBWidth   = 6
)

// DecodeAutotags decodes the three NUL-padded ASCII numbers of an Autotags
// body. A field that does not parse stays 0.
func DecodeAutotags(buf []byte) models.Autotags {
	buf = bytes.TrimPrefix(buf, header)

	var tags models.Autotags
	var field []byte
	field, buf = nextField(buf, autotagsBPMWidth)
	tags.BPM = parseNumber(field)
	field, buf = nextField(buf, autotagsAutoGainWidth)
	tags.AutoGain = parseNumber(field)
	field, _ = nextField(buf, autotagsGainDBWidth)
	tags.GainDB = parseNumber(field)
	return tags
}

// DecodeAutotagsBase64 decodes the line-wrapped base64 form.
func DecodeAutotagsBase64(s string) (models.Autotags, error) {
	raw, err := codec.DecodeLineBase64(s)
	if err != nil {
		return models.Autotags{}, fmt.Errorf("failed to decode autotags: %w", err)
	}
	return DecodeAutotags(raw), nil
}

func nextField(buf []byte, width int) (field, rest []byte) {
	if width > len(buf) {
		width = len(buf)
	}
	field = buf[:width]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return field, buf[width:]
}

// decimalNumber excludes the NaN, Inf and hex forms ParseFloat would accept.
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

func parseNumber(b []byte) float64 {
	s := strings.TrimSpace(string(b))
	if !decimalNumber.MatchString(s) {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
