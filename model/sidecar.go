package model

// Sidecar is the JSON record stored next to each track as "<track>.meta".
// Missing keys decode to empty strings / zero.
type Sidecar struct {
	URL        string `json:"url"`
	Timestamp  int64  `json:"timestamp,omitempty"`
	VideoTitle string `json:"video_title"`
	Artist     string `json:"artist"`
	Title      string `json:"title"`
	Album      string `json:"album"`
	Summary    string `json:"summary"`
	LyricsURL  string `json:"lyrics_url"`
	ImageURL   string `json:"image_url"`

	// Written by recordings and merges.
	Recorded       string `json:"recorded,omitempty"`
	Merged         string `json:"merged,omitempty"`
	SourcePlaylist string `json:"source_playlist,omitempty"`
	TrackCount     int    `json:"track_count,omitempty"`
}

// Complete reports whether the display fields are filled in.
func (s *Sidecar) Complete() bool {
	return s.Artist != "" && s.Title != ""
}

// MetadataUpdate carries the fields a caller wants to change; nil means keep.
type MetadataUpdate struct {
	Artist    *string `json:"artist,omitempty"`
	Title     *string `json:"title,omitempty"`
	Album     *string `json:"album,omitempty"`
	Summary   *string `json:"summary,omitempty"`
	LyricsURL *string `json:"lyrics_url,omitempty"`
	ImageURL  *string `json:"image_url,omitempty"`
	URL       *string `json:"url,omitempty"`
}

// Apply merges the non-nil fields of u into s.
func (u MetadataUpdate) Apply(s *Sidecar) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.Artist, u.Artist)
	set(&s.Title, u.Title)
	set(&s.Album, u.Album)
	set(&s.Summary, u.Summary)
	set(&s.LyricsURL, u.LyricsURL)
	set(&s.ImageURL, u.ImageURL)
	set(&s.URL, u.URL)
}

// Empty reports whether u changes nothing.
func (u MetadataUpdate) Empty() bool {
	return u.Artist == nil && u.Title == nil && u.Album == nil && u.Summary == nil &&
		u.LyricsURL == nil && u.ImageURL == nil && u.URL == nil
}
