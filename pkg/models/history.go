package models

import "time"

// HistorySession represents one entry of the history index
type HistorySession struct {
	Date  string        `json:"date"`
	Index uint32        `json:"index"`
	Songs []HistorySong `json:"songs,omitempty"`
}

// HistorySong represents one played entry of a session file
type HistorySong struct {
	Index     uint32     `json:"index"`
	Title     string     `json:"title"`
	Artist    string     `json:"artist"`
	FilePath  string     `json:"filePath"`
	BPM       *uint32    `json:"bpm,omitempty"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	PlayTime  *uint32    `json:"playTime,omitempty"` // in seconds
	Played    bool       `json:"played"`
	Playing   bool       `json:"playing"`
	Deck      uint32     `json:"deck"`
}
