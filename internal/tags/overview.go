package tags

import (
	"bytes"
	"fmt"

	"github.com/chrisle/serato-connect/internal/codec"
	"github.com/chrisle/serato-connect/pkg/models"
)

// OverviewColumnSize is the number of bytes per waveform overview column.
const OverviewColumnSize = 16

var overviewHeader = []byte{0x01, 0x05}

// DecodeOverview splits a waveform overview payload into its columns. A
// trailing partial column is dropped.
func DecodeOverview(buf []byte) models.Overview {
	buf = bytes.TrimPrefix(buf, overviewHeader)
	overview := models.Overview{Columns: make([][]byte, 0, len(buf)/OverviewColumnSize)}
	for off := 0; off+OverviewColumnSize <= len(buf); off += OverviewColumnSize {
		col := make([]byte, OverviewColumnSize)
		copy(col, buf[off:off+OverviewColumnSize])
		overview.Columns = append(overview.Columns, col)
	}
	return overview
}

// DecodeOverviewBase64 decodes the line-wrapped base64 form.
func DecodeOverviewBase64(s string) (models.Overview, error) {
	raw, err := codec.DecodeLineBase64(s)
	if err != nil {
		return models.Overview{}, fmt.Errorf("failed to decode overview: %w", err)
	}
	return DecodeOverview(raw), nil
}
