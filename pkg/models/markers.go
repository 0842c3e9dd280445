package models

import "fmt"

// RGB is a 24-bit color
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex returns the color as #rrggbb
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ARGB is a 24-bit color with an alpha byte
type ARGB struct {
	A uint8 `json:"a"`
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Markers2 holds the performance markers stored with a track
type Markers2 struct {
	TrackColor *RGB       `json:"trackColor,omitempty"`
	BPMLock    *bool      `json:"bpmLock,omitempty"`
	CuePoints  []CuePoint `json:"cuePoints"`
	Loops      []Loop     `json:"loops"`
	Flips      []Flip     `json:"flips"`
}

// CuePoint is a hot cue
type CuePoint struct {
	Index      uint8  `json:"index"`
	PositionMs uint32 `json:"positionMs"`
	Color      RGB    `json:"color"`
	Name       string `json:"name,omitempty"`
}

// Loop is a saved loop
type Loop struct {
	Index   uint8  `json:"index"`
	StartMs uint32 `json:"startMs"`
	EndMs   uint32 `json:"endMs"`
	Color   ARGB   `json:"color"`
	Locked  bool   `json:"locked"`
	Name    string `json:"name,omitempty"`
}

// Flip is a recorded sequence of jumps and censors
type Flip struct {
	Index   uint8        `json:"index"`
	Enabled bool         `json:"enabled"`
	Name    string       `json:"name"`
	Loop    bool         `json:"loop"`
	Actions []FlipAction `json:"actions"`
}

// FlipAction is implemented by JumpAction and CensorAction
type FlipAction interface {
	Kind() string
}

// JumpAction jumps playback from SourceSec to TargetSec
type JumpAction struct {
	SourceSec float64 `json:"sourceSec"`
	TargetSec float64 `json:"targetSec"`
}

// Kind implements FlipAction
func (JumpAction) Kind() string { return "jump" }

// CensorAction plays SourceSec..TargetSec at SpeedFactor
type CensorAction struct {
	SourceSec   float64 `json:"sourceSec"`
	TargetSec   float64 `json:"targetSec"`
	SpeedFactor float64 `json:"speedFactor"`
}

// Kind implements FlipAction
func (CensorAction) Kind() string { return "censor" }
