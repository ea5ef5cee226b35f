package model

// Playlist is one entry of the playlist document (a JSON map of id → playlist).
type Playlist struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tracks      []PlaylistTrack `json:"tracks"`
	Created     int64           `json:"created"`
	Modified    int64           `json:"modified"`
}

// PlaylistTrack references a track by file name. The file may no longer exist.
type PlaylistTrack struct {
	Filename string `json:"filename"`
	Added    int64  `json:"added"`
}

// Filenames returns the referenced file names in playlist order.
func (p *Playlist) Filenames() []string {
	names := make([]string, 0, len(p.Tracks))
	for _, t := range p.Tracks {
		names = append(names, t.Filename)
	}
	return names
}

// Contains reports whether filename is referenced by p.
func (p *Playlist) Contains(filename string) bool {
	for _, t := range p.Tracks {
		if t.Filename == filename {
			return true
		}
	}
	return false
}
