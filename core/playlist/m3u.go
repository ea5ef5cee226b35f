package playlist

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/hbollon/go-edlib"

	"Rippers/logger"
	"Rippers/model"
)

const (
	// DefaultImportName names an imported playlist without #PLAYLIST.
	DefaultImportName = "Imported Playlist"
	// SuggestThreshold is the similarity a fuzzy suggestion must exceed.
	SuggestThreshold = 0.7
)

// Lookup reports the display text of a track and whether its file exists.
type Lookup func(filename string) (display string, ok bool)

// ExportM3U writes p as an extended M3U. Tracks whose file is gone are left out.
func ExportM3U(w io.Writer, p *model.Playlist, prefix string, lookup Lookup) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#EXTM3U\n#PLAYLIST:%s\n", p.Name)
	for _, name := range p.Filenames() {
		display, ok := lookup(name)
		if !ok {
			continue
		}
		if display == "" {
			display = name
		}
		fmt.Fprintf(bw, "#EXTINF:-1,%s\n", display)
		fmt.Fprintln(bw, trackURL(prefix, name))
	}
	return bw.Flush()
}

func trackURL(prefix, name string) string {
	escaped := url.PathEscape(name)
	if prefix == "" {
		return escaped
	}
	return strings.TrimSuffix(prefix, "/") + "/" + escaped
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ExportFilename is the download name of an exported playlist.
func ExportFilename(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_") + ".m3u"
}

// ImportEntry is one path line of an M3U file.
type ImportEntry struct {
	Path       string  `json:"path"`
	Info       string  `json:"info,omitempty"`
	Basename   string  `json:"basename"`
	Match      string  `json:"match,omitempty"`
	Suggestion string  `json:"suggestion,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// ImportResult is a parsed M3U resolved against the track directory.
type ImportResult struct {
	Name    string        `json:"name"`
	Entries []ImportEntry `json:"entries"`
}

// Matched returns the exactly matched filenames in file order.
func (r *ImportResult) Matched() []string {
	var out []string
	for _, e := range r.Entries {
		if e.Match != "" {
			out = append(out, e.Match)
		}
	}
	return out
}

// ParseM3U reads an M3U document and resolves each path against available.
func ParseM3U(r io.Reader, available []string) (*ImportResult, error) {
	res := &ImportResult{Name: DefaultImportName}
	exact := make(map[string]bool, len(available))
	for _, name := range available {
		exact[name] = true
	}

	var pendingInfo string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		switch {
		case line == "":
		case strings.HasPrefix(line, "#PLAYLIST:"):
			if name := strings.TrimSpace(strings.TrimPrefix(line, "#PLAYLIST:")); name != "" {
				res.Name = name
			}
		case strings.HasPrefix(line, "#EXTINF:"):
			pendingInfo = ""
			if i := strings.Index(line, ","); i >= 0 {
				pendingInfo = strings.TrimSpace(line[i+1:])
			}
		case strings.HasPrefix(line, "#"):
		default:
			entry := ImportEntry{Path: line, Info: pendingInfo, Basename: basename(line)}
			pendingInfo = ""
			if exact[entry.Basename] {
				entry.Match = entry.Basename
			} else {
				entry.Suggestion, entry.Score = suggest(entry.Basename, available)
			}
			res.Entries = append(res.Entries, entry)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read m3u: %w", err)
	}
	return res, nil
}

// basename strips any query string, decodes percent escapes and keeps the
// last path element. Windows separators count too.
func basename(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}
	p = strings.ReplaceAll(p, `\`, "/")
	return path.Base(p)
}

func stem(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, path.Ext(name)))
}

// suggest picks the available file closest to name: stem containment wins
// outright, otherwise the best Levenshtein similarity above the threshold.
func suggest(name string, available []string) (string, float64) {
	want := stem(name)
	if want == "" {
		return "", 0
	}
	best, bestScore := "", 0.0
	for _, candidate := range available {
		have := stem(candidate)
		if have == "" {
			continue
		}
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return candidate, 1
		}
		sim, err := edlib.StringsSimilarity(want, have, edlib.Levenshtein)
		if err != nil {
			continue
		}
		if score := float64(sim); score > SuggestThreshold && score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best, bestScore
}

// ImportM3U creates a playlist from the exact matches of an M3U document.
// An empty name keeps the name found in the file.
func (s *Store) ImportM3U(ctx context.Context, r io.Reader, available []string, name string) (*model.Playlist, *ImportResult, error) {
	res, err := ParseM3U(r, available)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = res.Name
	}
	p, err := s.Create(ctx, name, "Imported from M3U", res.Matched()...)
	if err != nil {
		return nil, res, err
	}
	logger.Info("Playlist imported",
		logger.String("id", p.ID),
		logger.Int("matched", len(p.Tracks)),
		logger.Int("entries", len(res.Entries)))
	return p, res, nil
}
