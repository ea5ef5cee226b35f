package model

import "time"

// Track is the materialized view of one audio file in the track directory.
// Name is the file name and the track's identity.
type Track struct {
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	ModTime       time.Time `json:"modified"`
	AcquiredAt    time.Time `json:"acquiredAt"`
	Duration      float64   `json:"duration,omitempty"` // seconds, only when probed
	PeakDB        *float64  `json:"peakDb,omitempty"`   // only when probed
	Artist        string    `json:"artist"`
	Title         string    `json:"title"`
	Album         string    `json:"album"`
	Summary       string    `json:"summary,omitempty"`
	LyricsURL     string    `json:"lyricsUrl,omitempty"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	SourceURL     string    `json:"sourceUrl,omitempty"`
	OriginalTitle string    `json:"originalTitle,omitempty"`
	HasSidecar    bool      `json:"hasSidecar"`
	HasBackup     bool      `json:"hasBackup"`
	HasWaveform   bool      `json:"hasWaveform"`
}

// DisplayName is "Artist - Title" when both are known, else the file name.
func (t *Track) DisplayName() string {
	if t.Artist != "" && t.Title != "" {
		return t.Artist + " - " + t.Title
	}
	return t.Name
}

// NeedsNormalization reports the probed recommendation; unprobed tracks never need it.
func (t *Track) NeedsNormalization(threshold float64) bool {
	return t.PeakDB != nil && *t.PeakDB < threshold
}
