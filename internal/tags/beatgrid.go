package tags

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/pkg/models"
)

const (
	beatgridHeaderSize = 6
	beatgridMarkerSize = 8
)

// DecodeBeatgrid decodes a BeatGrid payload: a 6-byte header carrying the
// marker count, 8-byte markers and a 1-byte footer. Short buffers, a zero
// count, or a count the buffer cannot hold all yield an empty grid.
func DecodeBeatgrid(buf []byte) models.Beatgrid {
	grid := models.Beatgrid{Markers: []models.BeatgridMarker{}}
	if len(buf) < beatgridHeaderSize {
		return grid
	}
	count := binary.BigEndian.Uint32(buf[2:6])
	available := uint64(len(buf)-beatgridHeaderSize) / beatgridMarkerSize
	if count == 0 || uint64(count) > available {
		return grid
	}

	for i := 0; i < int(count); i++ {
		off := beatgridHeaderSize + i*beatgridMarkerSize
		marker := models.BeatgridMarker{
			PositionSec: math.Float32frombits(binary.BigEndian.Uint32(buf[off:])),
		}
		if i == int(count)-1 {
			bpm := math.Float32frombits(binary.BigEndian.Uint32(buf[off+4:]))
			marker.BPM = &bpm
		} else {
			beats := binary.BigEndian.Uint32(buf[off+4:])
			marker.BeatsToNext = &beats
		}
		grid.Markers = append(grid.Markers, marker)
	}
	return grid
}

// DecodeBeatgridBase64 decodes the line-wrapped base64 form used by text-only
// tag containers.
func DecodeBeatgridBase64(s string) (models.Beatgrid, error) {
	raw, err := codec.DecodeLineBase64(s)
	if err != nil {
		return models.Beatgrid{}, fmt.Errorf("failed to decode beatgrid: %w", err)
	}
	return DecodeBeatgrid(raw), nil
}
