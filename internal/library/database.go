package library

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chrisle/serato-connect/internal/chunk"
	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/pkg/models"
)

// DatabaseFileName is the name of the track database inside the library root.
const DatabaseFileName = "database V2"

// valueKind is selected by the first character of a field tag.
type valueKind int

const (
	kindRaw valueKind = iota
	kindText
	kindBool
	kindUint32
	kindUint16
)

var kindByPrefix = map[byte]valueKind{
	't': kindText,
	'p': kindText,
	'b': kindBool,
	'u': kindUint32,
	's': kindUint16,
}

type fieldValue struct {
	kind valueKind
	text string
	flag bool
	num  uint32
	raw  []byte
}

func decodeValue(tag chunk.Tag, data []byte) (fieldValue, bool) {
	v := fieldValue{kind: kindByPrefix[tag[0]]}
	switch v.kind {
	case kindText:
		v.text = codec.DecodeUTF16BE(data)
	case kindBool:
		if len(data) < 1 {
			return v, false
		}
		v.flag = data[0] != 0
	case kindUint32:
		if len(data) < 4 {
			return v, false
		}
		v.num = binary.BigEndian.Uint32(data)
	case kindUint16:
		if len(data) < 2 {
			return v, false
		}
		v.num = uint32(binary.BigEndian.Uint16(data))
	default:
		v.raw = data
	}
	return v, true
}

// value returns the decoded value in its natural Go type.
func (v fieldValue) value() interface{} {
	switch v.kind {
	case kindText:
		return v.text
	case kindBool:
		return v.flag
	case kindUint32, kindUint16:
		return v.num
	default:
		return v.raw
	}
}

type fieldSetter func(t *models.DatabaseTrack, v fieldValue)

var databaseFields = map[chunk.Tag]fieldSetter{
	chunk.NewTag("pfil"): func(t *models.DatabaseTrack, v fieldValue) { t.FilePath = v.text },
	chunk.NewTag("tsng"): func(t *models.DatabaseTrack, v fieldValue) { t.Title = v.text },
	chunk.NewTag("tart"): func(t *models.DatabaseTrack, v fieldValue) { t.Artist = v.text },
	chunk.NewTag("talb"): func(t *models.DatabaseTrack, v fieldValue) { t.Album = v.text },
	chunk.NewTag("tgen"): func(t *models.DatabaseTrack, v fieldValue) { t.Genre = v.text },
	chunk.NewTag("tkey"): func(t *models.DatabaseTrack, v fieldValue) { t.Key = v.text },
	chunk.NewTag("ttyp"): func(t *models.DatabaseTrack, v fieldValue) { t.FileType = v.text },
	chunk.NewTag("tcom"): func(t *models.DatabaseTrack, v fieldValue) { t.Comment = v.text },
	chunk.NewTag("tgrp"): func(t *models.DatabaseTrack, v fieldValue) { t.Grouping = v.text },
	chunk.NewTag("tcmp"): func(t *models.DatabaseTrack, v fieldValue) { t.Composer = v.text },
	chunk.NewTag("tlbl"): func(t *models.DatabaseTrack, v fieldValue) { t.Label = v.text },
	chunk.NewTag("tbpm"): func(t *models.DatabaseTrack, v fieldValue) {
		if f, ok := leadingFloat(v.text); ok {
			t.BPM = &f
		}
	},
	chunk.NewTag("tlen"): func(t *models.DatabaseTrack, v fieldValue) {
		if f, ok := ParseLength(v.text); ok {
			t.Length = &f
		}
	},
	chunk.NewTag("tbit"): func(t *models.DatabaseTrack, v fieldValue) {
		if f, ok := leadingFloat(v.text); ok && f >= 0 {
			n := uint32(math.Round(f))
			t.Bitrate = &n
		}
	},
	chunk.NewTag("tsmp"): func(t *models.DatabaseTrack, v fieldValue) {
		if n, ok := ParseSampleRate(v.text); ok {
			t.SampleRate = &n
		}
	},
	chunk.NewTag("ttyr"): func(t *models.DatabaseTrack, v fieldValue) {
		if f, ok := leadingFloat(v.text); ok && f > 0 {
			n := uint32(f)
			t.Year = &n
		}
	},
	chunk.NewTag("bbgl"): func(t *models.DatabaseTrack, v fieldValue) {
		b := v.flag
		t.BeatgridLocked = &b
	},
	chunk.NewTag("bmis"): func(t *models.DatabaseTrack, v fieldValue) {
		b := v.flag
		t.Missing = &b
	},
	chunk.NewTag("uadd"): func(t *models.DatabaseTrack, v fieldValue) {
		ts := time.Unix(int64(v.num), 0).UTC()
		t.DateAdded = &ts
	},
	// tadd is the older text form of uadd and only fills a gap.
	chunk.NewTag("tadd"): func(t *models.DatabaseTrack, v fieldValue) {
		if t.DateAdded != nil {
			return
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(v.text), 10, 64); err == nil && n > 0 {
			ts := time.Unix(n, 0).UTC()
			t.DateAdded = &ts
		}
	},
}

// DecodeDatabase decodes a database buffer into its track records. Records
// without a file path are dropped.
func DecodeDatabase(buf []byte) (version string, tracks []models.DatabaseTrack) {
	tracks = []models.DatabaseTrack{}

	w := chunk.Walk(buf, 0, len(buf), chunk.LibraryContainers)
	for w.Next() {
		c := w.Chunk()
		switch c.Tag {
		case tagVersion:
			version = codec.DecodeUTF16BE(c.Data)
		case tagTrack:
			if t, ok := decodeTrack(c); ok {
				tracks = append(tracks, t)
			}
		}
	}
	return version, tracks
}

func decodeTrack(c chunk.Chunk) (models.DatabaseTrack, bool) {
	var t models.DatabaseTrack
	for _, field := range c.Children {
		if field.IsContainer() {
			continue
		}
		v, ok := decodeValue(field.Tag, field.Data)
		if !ok {
			continue
		}
		if set, known := databaseFields[field.Tag]; known {
			set(&t, v)
			continue
		}
		if t.Extra == nil {
			t.Extra = map[string]interface{}{}
		}
		t.Extra[field.Tag.String()] = v.value()
	}
	return t, t.FilePath != ""
}

// ReadDatabaseFile reads and decodes the track database at path.
func ReadDatabaseFile(path string) (string, []models.DatabaseTrack, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read database: %w", err)
	}
	version, tracks := DecodeDatabase(buf)
	return version, tracks, nil
}

// ParseLength parses a track length written as "mm:ss.xx", "hh:mm:ss" or a
// plain number of seconds.
func ParseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}
	var total float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || f < 0 {
			return 0, false
		}
		if i < len(parts)-1 {
			total = (total + f) * 60
		} else {
			total += f
		}
	}
	return total, true
}

// ParseSampleRate parses "44.1k", "44.1 kHz" or "48000" into Hz.
func ParseSampleRate(s string) (uint32, bool) {
	f, rest, ok := splitLeadingNumber(s)
	if !ok || f <= 0 {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(rest)), "k") {
		f *= 1000
	}
	return uint32(math.Round(f)), true
}

func leadingFloat(s string) (float64, bool) {
	f, _, ok := splitLeadingNumber(s)
	return f, ok
}

// splitLeadingNumber parses the longest numeric prefix of s, so values such as
// "320.0kbps" yield 320.
func splitLeadingNumber(s string) (float64, string, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' || (end == 0 && (c == '-' || c == '+')) {
			end++
			continue
		}
		break
	}
	for end > 0 {
		if f, err := strconv.ParseFloat(s[:end], 64); err == nil {
			return f, s[end:], true
		}
		end--
	}
	return 0, s, false
}
