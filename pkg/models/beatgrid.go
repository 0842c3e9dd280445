package models

// Beatgrid is an ordered list of beatgrid markers. The last marker is the
// terminal one and is the only marker carrying a BPM.
type Beatgrid struct {
	Markers []BeatgridMarker `json:"markers"`
}

// BeatgridMarker is either non-terminal (BeatsToNext set) or terminal (BPM set)
type BeatgridMarker struct {
	PositionSec float32  `json:"position"`
	BeatsToNext *uint32  `json:"beatsToNext,omitempty"`
	BPM         *float32 `json:"bpm,omitempty"`
}

// EffectiveBPM returns the terminal marker's BPM
func (b *Beatgrid) EffectiveBPM() (float32, bool) {
	if b == nil || len(b.Markers) == 0 {
		return 0, false
	}
	last := b.Markers[len(b.Markers)-1]
	if last.BPM == nil {
		return 0, false
	}
	return *last.BPM, true
}

// IsDynamic reports whether the grid has more than one marker, meaning the
// tempo changes across the track
func (b *Beatgrid) IsDynamic() bool {
	return b != nil && len(b.Markers) > 1
}

// Autotags holds the auto-analysis values
type Autotags struct {
	BPM      float64 `json:"bpm"`
	AutoGain float64 `json:"autoGain"`
	GainDB   float64 `json:"gainDb"`
}

// Overview is the waveform overview, one byte slice per column
type Overview struct {
	Columns [][]byte `json:"columns"`
}
