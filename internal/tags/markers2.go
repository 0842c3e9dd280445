// Package tags decodes the binary payloads stored inside audio file tags:
// markers, beatgrid, auto-analysis values and the waveform overview.
package tags

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/pkg/models"
)

// header is the version prefix carried by Markers2 and Autotags bodies.
var header = []byte{0x01, 0x01}

const (
	flipActionJump   = 0
	flipActionCensor = 1
)

type entryDecoder func(m *models.Markers2, payload []byte)

var markers2Entries = map[string]entryDecoder{
	"COLOR":   decodeColorEntry,
	"BPMLOCK": decodeBPMLockEntry,
	"CUE":     decodeCueEntry,
	"LOOP":    decodeLoopEntry,
	"FLIP":    decodeFlipEntry,
}

// DecodeMarkers2 decodes a Markers2 body. Entries of unknown type are skipped
// and a truncated entry ends the walk. Cues, loops and flips are returned
// sorted by index.
func DecodeMarkers2(buf []byte) models.Markers2 {
	m := models.Markers2{
		CuePoints: []models.CuePoint{},
		Loops:     []models.Loop{},
		Flips:     []models.Flip{},
	}
	buf = bytes.TrimPrefix(buf, header)

	pos := 0
	for pos < len(buf) && buf[pos] != 0 {
		nameEnd := bytes.IndexByte(buf[pos:], 0)
		if nameEnd < 0 {
			break
		}
		name := string(buf[pos : pos+nameEnd])
		pos += nameEnd + 1

		if pos+4 > len(buf) {
			break
		}
		length := binary.BigEndian.Uint32(buf[pos:])
		pos += 4
		if uint64(length) > uint64(len(buf)-pos) {
			break
		}
		payload := buf[pos : pos+int(length)]
		pos += int(length)

		if decode, ok := markers2Entries[name]; ok {
			decode(&m, payload)
		}
	}

	sort.SliceStable(m.CuePoints, func(i, j int) bool { return m.CuePoints[i].Index < m.CuePoints[j].Index })
	sort.SliceStable(m.Loops, func(i, j int) bool { return m.Loops[i].Index < m.Loops[j].Index })
	sort.SliceStable(m.Flips, func(i, j int) bool { return m.Flips[i].Index < m.Flips[j].Index })
	return m
}

// DecodeMarkers2Base64 decodes the base64 form of a Markers2 body. The stored
// text routinely overflows by one character or lacks padding, so it is
// repaired before decoding.
func DecodeMarkers2Base64(s string) (models.Markers2, error) {
	raw, err := base64.StdEncoding.DecodeString(RepairBase64(s))
	if err != nil {
		return models.Markers2{}, fmt.Errorf("failed to decode markers: %w", err)
	}
	return DecodeMarkers2(raw), nil
}

// RepairBase64 removes whitespace, drops a dangling final character and pads
// the text to a multiple of four.
func RepairBase64(s string) string {
	cleaned := strings.TrimRight(codec.StripWhitespace(s), "=")
	switch len(cleaned) % 4 {
	case 1:
		cleaned = cleaned[:len(cleaned)-1]
	case 2:
		cleaned += "=="
	case 3:
		cleaned += "="
	}
	return cleaned
}

func decodeColorEntry(m *models.Markers2, p []byte) {
	if len(p) < 4 {
		return
	}
	m.TrackColor = &models.RGB{R: p[1], G: p[2], B: p[3]}
}

func decodeBPMLockEntry(m *models.Markers2, p []byte) {
	if len(p) < 1 {
		return
	}
	locked := p[0] != 0
	m.BPMLock = &locked
}

// CUE: pad, index, position(4), pad, rgb(3), pad(2), name.
func decodeCueEntry(m *models.Markers2, p []byte) {
	if len(p) < 12 {
		return
	}
	m.CuePoints = append(m.CuePoints, models.CuePoint{
		Index:      p[1],
		PositionMs: binary.BigEndian.Uint32(p[2:6]),
		Color:      models.RGB{R: p[7], G: p[8], B: p[9]},
		Name:       trailingName(p[12:]),
	})
}

// LOOP: pad, index, start(4), end(4), pad(4), argb(4), pad(3), locked, name.
func decodeLoopEntry(m *models.Markers2, p []byte) {
	if len(p) < 22 {
		return
	}
	m.Loops = append(m.Loops, models.Loop{
		Index:   p[1],
		StartMs: binary.BigEndian.Uint32(p[2:6]),
		EndMs:   binary.BigEndian.Uint32(p[6:10]),
		Color:   models.ARGB{A: p[14], R: p[15], G: p[16], B: p[17]},
		Locked:  p[21] != 0,
		Name:    trailingName(p[22:]),
	})
}

// FLIP: pad, index, enabled, name, loop, count(4), actions.
func decodeFlipEntry(m *models.Markers2, p []byte) {
	if len(p) < 3 {
		return
	}
	flip := models.Flip{
		Index:   p[1],
		Enabled: p[2] != 0,
		Actions: []models.FlipAction{},
	}
	rest := p[3:]
	nameEnd := bytes.IndexByte(rest, 0)
	if nameEnd < 0 {
		return
	}
	flip.Name = string(rest[:nameEnd])
	rest = rest[nameEnd+1:]
	if len(rest) < 5 {
		return
	}
	flip.Loop = rest[0] != 0
	count := binary.BigEndian.Uint32(rest[1:5])
	rest = rest[5:]

	for i := uint32(0); i < count; i++ {
		if len(rest) < 5 {
			return
		}
		kind := rest[0]
		length := binary.BigEndian.Uint32(rest[1:5])
		rest = rest[5:]
		if uint64(length) > uint64(len(rest)) {
			return
		}
		action := rest[:length]
		rest = rest[length:]

		switch kind {
		case flipActionJump:
			if len(action) < 16 {
				return
			}
			flip.Actions = append(flip.Actions, models.JumpAction{
				SourceSec: float64At(action, 0),
				TargetSec: float64At(action, 8),
			})
		case flipActionCensor:
			if len(action) < 24 {
				return
			}
			flip.Actions = append(flip.Actions, models.CensorAction{
				SourceSec:   float64At(action, 0),
				TargetSec:   float64At(action, 8),
				SpeedFactor: float64At(action, 16),
			})
		}
	}
	m.Flips = append(m.Flips, flip)
}

func float64At(b []byte, off int) float64 {
	return math.Float64frombits(binary.BigEndian.Uint64(b[off : off+8]))
}

// trailingName reads an optional NUL-terminated name. An absent terminator
// takes the remaining bytes.
func trailingName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
