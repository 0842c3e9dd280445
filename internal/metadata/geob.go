package metadata

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/chrisle/serato-connect/internal/tags"
)

// Key names one kind of Serato payload an audio file can carry.
type Key string

const (
	KeyMarkers2 Key = "markers2"
	KeyMarkers  Key = "markers"
	KeyBeatgrid Key = "beatgrid"
	KeyAutotags Key = "autotags"
	KeyOverview Key = "overview"
)

// GEOB descriptions used in ID3v2 tags.
var keyByDescription = map[string]Key{
	"Serato Markers2": KeyMarkers2,
	"Serato Markers_": KeyMarkers,
	"Serato BeatGrid": KeyBeatgrid,
	"Serato Autotags": KeyAutotags,
	"Serato Overview": KeyOverview,
}

// Vorbis comment names used in FLAC and Ogg files.
var keyByComment = map[string]Key{
	"serato_markers_v2": KeyMarkers2,
	"serato_markers":    KeyMarkers,
	"serato_beatgrid":   KeyBeatgrid,
	"serato_autogain":   KeyAutotags,
	"serato_overview":   KeyOverview,
}

// GeneralObject is a parsed GEOB frame.
type GeneralObject struct {
	MIMEType    string
	Filename    string
	Description string
	Data        []byte
}

var errShortFrame = errors.New("geob frame truncated")

// ParseGEOB parses the body of an ID3v2 GEOB frame: text encoding, MIME type,
// filename, description, then the object data.
func ParseGEOB(b []byte) (GeneralObject, error) {
	if len(b) < 1 {
		return GeneralObject{}, errShortFrame
	}
	enc := b[0]
	rest := b[1:]

	mime, rest, ok := cutTerminated(rest, 0)
	if !ok {
		return GeneralObject{}, errShortFrame
	}
	filename, rest, ok := cutTerminated(rest, enc)
	if !ok {
		return GeneralObject{}, errShortFrame
	}
	desc, rest, ok := cutTerminated(rest, enc)
	if !ok {
		return GeneralObject{}, errShortFrame
	}
	return GeneralObject{
		MIMEType:    string(mime),
		Filename:    decodeText(filename, enc),
		Description: decodeText(desc, enc),
		Data:        rest,
	}, nil
}

// cutTerminated splits b at the string terminator for the text encoding:
// one NUL for Latin-1 and UTF-8, two aligned NULs for UTF-16.
func cutTerminated(b []byte, enc byte) (field, rest []byte, ok bool) {
	if enc == 1 || enc == 2 {
		for i := 0; i+1 < len(b); i += 2 {
			if b[i] == 0 && b[i+1] == 0 {
				return b[:i], b[i+2:], true
			}
		}
		return nil, nil, false
	}
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return nil, nil, false
	}
	return b[:i], b[i+1:], true
}

func decodeText(b []byte, enc byte) string {
	if enc != 1 && enc != 2 {
		return string(b)
	}
	// Serato only writes Latin-1 descriptions; for UTF-16 keep the low bytes
	// after any byte order mark.
	if len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		b = b[2:]
	}
	var sb strings.Builder
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] != 0 {
			sb.WriteByte(b[i])
		} else {
			sb.WriteByte(b[i+1])
		}
	}
	return sb.String()
}

// decodeComment unwraps a Vorbis comment value: base64 text whose decoded form
// is a GEOB-like body (MIME type, filename, description) in front of the data.
func decodeComment(value string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(tags.RepairBase64(value))
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(raw, []byte("application/octet-stream\x00")) {
		return raw, nil
	}
	obj, err := ParseGEOB(append([]byte{0}, raw...))
	if err != nil {
		return nil, err
	}
	return obj.Data, nil
}

// collectPayloads picks the Serato payloads out of a tag reader's raw frame
// map. ID3v2 GEOB frames arrive as bytes; Vorbis comments arrive as strings.
func collectPayloads(raw map[string]interface{}) map[Key][]byte {
	payloads := make(map[Key][]byte)
	for name, value := range raw {
		switch v := value.(type) {
		case []byte:
			if !strings.HasPrefix(name, "GEOB") {
				continue
			}
			obj, err := ParseGEOB(v)
			if err != nil {
				continue
			}
			if key, ok := keyByDescription[obj.Description]; ok {
				payloads[key] = obj.Data
			}
		case string:
			key, ok := keyByComment[strings.ToLower(name)]
			if !ok {
				continue
			}
			data, err := decodeComment(v)
			if err != nil {
				continue
			}
			payloads[key] = data
		}
	}
	return payloads
}
