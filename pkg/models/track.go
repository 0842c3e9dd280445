package models

import "time"

// DatabaseTrack represents one track record of the library database
type DatabaseTrack struct {
	FilePath       string     `json:"filePath"`
	Title          string     `json:"title,omitempty"`
	Artist         string     `json:"artist,omitempty"`
	Album          string     `json:"album,omitempty"`
	Genre          string     `json:"genre,omitempty"`
	Key            string     `json:"key,omitempty"`
	BPM            *float64   `json:"bpm,omitempty"`
	Length         *float64   `json:"length,omitempty"` // in seconds
	Bitrate        *uint32    `json:"bitrate,omitempty"`
	SampleRate     *uint32    `json:"sampleRate,omitempty"`
	FileType       string     `json:"fileType,omitempty"`
	BeatgridLocked *bool      `json:"beatgridLocked,omitempty"`
	Missing        *bool      `json:"missing,omitempty"`
	DateAdded      *time.Time `json:"dateAdded,omitempty"`
	Comment        string     `json:"comment,omitempty"`
	Grouping       string     `json:"grouping,omitempty"`
	Composer       string     `json:"composer,omitempty"`
	Label          string     `json:"label,omitempty"`
	Year           *uint32    `json:"year,omitempty"`

	// Extra holds fields without a dedicated member, keyed by tag: string,
	// bool, uint32 or raw []byte depending on the tag prefix.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Crate represents a crate file and the track paths it lists
type Crate struct {
	Name       string   `json:"name"`
	SourcePath string   `json:"sourcePath"`
	Version    string   `json:"version,omitempty"`
	TrackPaths []string `json:"trackPaths"`
}

// TrackAnalysis gathers what could be decoded from one audio file's tags
type TrackAnalysis struct {
	FilePath    string    `json:"filePath"`
	Title       string    `json:"title,omitempty"`
	Artist      string    `json:"artist,omitempty"`
	DurationSec int       `json:"duration"`
	Markers     *Markers2 `json:"markers,omitempty"`
	Beatgrid    *Beatgrid `json:"beatgrid,omitempty"`
	Autotags    *Autotags `json:"autotags,omitempty"`
	Overview    *Overview `json:"overview,omitempty"`
}
