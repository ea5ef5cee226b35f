package model

// ArchiveEntry is one file of the remote music archive index.
type ArchiveEntry struct {
	Path      string `json:"path"`
	Artist    string `json:"artist"`
	Title     string `json:"title"`
	Album     string `json:"album"`
	SearchKey string `json:"search_key"`
}

// ArchiveIndex is the document produced by the external indexer.
type ArchiveIndex struct {
	Generated string         `json:"generated,omitempty"`
	Count     int            `json:"count,omitempty"`
	Files     []ArchiveEntry `json:"files"`
}
