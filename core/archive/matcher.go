// Package archive searches the read-only index of the remote music archive.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"Rippers/model"
)

const (
	// MinQueryLength is the shortest query Search accepts.
	MinQueryLength = 2
	// MaxResults caps a Search.
	MaxResults = 50
)

var (
	quoteChars   = regexp.MustCompile("['\"`´‘’‚‛“”„]")
	nonAlnumRuns = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	keyStrip     = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// NormalizeText composes s (NFC), lowercases it, deletes quote characters
// outright and turns every other run of non-alphanumerics into one space.
func NormalizeText(s string) string {
	s = strings.ToLower(norm.NFC.String(s))
	s = quoteChars.ReplaceAllString(s, "")
	s = nonAlnumRuns.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SearchKey is the key the indexer stores with every entry.
func SearchKey(artist, title string) string {
	key := strings.ToLower(artist + " " + title)
	key = keyStrip.ReplaceAllString(key, "")
	return spaceRuns.ReplaceAllString(key, " ")
}

// Matcher holds one loaded index.
type Matcher struct {
	entries    []model.ArchiveEntry
	composites []string
	generated  string
}

// NewMatcher precomputes the normalized search text of every entry.
func NewMatcher(index *model.ArchiveIndex) *Matcher {
	m := &Matcher{}
	if index == nil {
		return m
	}
	m.generated = index.Generated
	m.entries = index.Files
	m.composites = make([]string, len(index.Files))
	for i, e := range index.Files {
		m.composites[i] = NormalizeText(strings.Join([]string{e.Artist, e.Title, e.Album, e.Path}, " "))
	}
	return m
}

// LoadIndex decodes an index document.
func LoadIndex(r io.Reader) (*Matcher, error) {
	var index model.ArchiveIndex
	if err := json.NewDecoder(r).Decode(&index); err != nil {
		return nil, fmt.Errorf("failed to decode archive index: %w", err)
	}
	return NewMatcher(&index), nil
}

// LoadIndexFile reads an index from disk. A missing file is an empty index.
func LoadIndexFile(path string) (*Matcher, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMatcher(nil), nil
		}
		return nil, fmt.Errorf("failed to open archive index: %w", err)
	}
	defer f.Close()
	return LoadIndex(f)
}

func (m *Matcher) Len() int { return len(m.entries) }

func (m *Matcher) Generated() string { return m.generated }

// Search returns entries whose artist, title, album or path contain query
// after normalization. Results are unique per artist and title, sorted and
// capped at MaxResults.
func (m *Matcher) Search(query string) ([]model.ArchiveEntry, error) {
	if len([]rune(strings.TrimSpace(query))) < MinQueryLength {
		return nil, model.ErrQueryTooShort
	}
	q := NormalizeText(query)
	if q == "" {
		return []model.ArchiveEntry{}, nil
	}

	seen := map[string]bool{}
	results := []model.ArchiveEntry{}
	for i, e := range m.entries {
		if !strings.Contains(m.composites[i], q) {
			continue
		}
		key := strings.ToLower(e.Artist + "|" + e.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		results = append(results, e)
	}

	sort.SliceStable(results, func(i, j int) bool {
		ai, aj := strings.ToLower(results[i].Artist), strings.ToLower(results[j].Artist)
		if ai != aj {
			return ai < aj
		}
		return strings.ToLower(results[i].Title) < strings.ToLower(results[j].Title)
	})
	if len(results) > MaxResults {
		results = results[:MaxResults]
	}
	return results, nil
}

// MatchByArtistTitle returns the first entry in index order that matches.
// The stored search key is tried first, then a loose check where either
// side of both the artist and the title may contain the other.
func (m *Matcher) MatchByArtistTitle(artist, title string) (*model.ArchiveEntry, bool) {
	if strings.TrimSpace(artist) == "" && strings.TrimSpace(title) == "" {
		return nil, false
	}
	key := strings.TrimSpace(SearchKey(artist, title))
	for i := range m.entries {
		if strings.TrimSpace(m.entries[i].SearchKey) == key {
			return &m.entries[i], true
		}
	}

	a, t := NormalizeText(artist), NormalizeText(title)
	if a == "" || t == "" {
		return nil, false
	}
	for i := range m.entries {
		ea, et := NormalizeText(m.entries[i].Artist), NormalizeText(m.entries[i].Title)
		if ea == "" || et == "" {
			continue
		}
		if overlaps(a, ea) && overlaps(t, et) {
			return &m.entries[i], true
		}
	}
	return nil, false
}

func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
