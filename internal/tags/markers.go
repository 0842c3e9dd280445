package tags

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/pkg/models"
)

// Legacy Markers_ layout: version, entry count, fixed-size entries where
// positions and colors are 7-bit packed, then the packed track color.
const (
	legacyEntrySize = 22
	legacyCueSlots  = 5
	legacyUnset     = 0x7F

	legacyTypeCue  = 1
	legacyTypeLoop = 3
)

var legacyHeader = []byte{0x02, 0x05}

// DecodeMarkers decodes the legacy Markers_ payload into the same record shape
// as DecodeMarkers2. The first five slots are cues, the rest loops.
func DecodeMarkers(buf []byte) models.Markers2 {
	m := models.Markers2{
		CuePoints: []models.CuePoint{},
		Loops:     []models.Loop{},
		Flips:     []models.Flip{},
	}
	if !bytes.HasPrefix(buf, legacyHeader) || len(buf) < 6 {
		return m
	}
	count := binary.BigEndian.Uint32(buf[2:6])
	body := buf[6:]
	if uint64(count)*legacyEntrySize > uint64(len(body)) {
		return m
	}

	for i := 0; i < int(count); i++ {
		e := body[i*legacyEntrySize : (i+1)*legacyEntrySize]
		if e[0] == legacyUnset {
			continue
		}
		r, g, b := codec.RGB(e[16:20])
		switch e[20] {
		case legacyTypeCue:
			if i >= legacyCueSlots {
				continue
			}
			m.CuePoints = append(m.CuePoints, models.CuePoint{
				Index:      uint8(i),
				PositionMs: codec.Uint24(e[1:5]),
				Color:      models.RGB{R: r, G: g, B: b},
			})
		case legacyTypeLoop:
			if i < legacyCueSlots || e[5] == legacyUnset {
				continue
			}
			m.Loops = append(m.Loops, models.Loop{
				Index:   uint8(i - legacyCueSlots),
				StartMs: codec.Uint24(e[1:5]),
				EndMs:   codec.Uint24(e[6:10]),
				Color:   models.ARGB{A: 0xFF, R: r, G: g, B: b},
				Locked:  e[21] != 0,
			})
		}
	}

	trailer := body[int(count)*legacyEntrySize:]
	if len(trailer) >= 4 {
		r, g, b := codec.RGB(trailer[:4])
		m.TrackColor = &models.RGB{R: r, G: g, B: b}
	}
	return m
}

// DecodeMarkersBase64 decodes the line-wrapped base64 form of a legacy
// Markers_ payload.
func DecodeMarkersBase64(s string) (models.Markers2, error) {
	raw, err := codec.DecodeLineBase64(s)
	if err != nil {
		return models.Markers2{}, fmt.Errorf("failed to decode markers: %w", err)
	}
	return DecodeMarkers(raw), nil
}
