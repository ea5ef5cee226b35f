package archive

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"Rippers/model"
)

var (
	audioExt    = regexp.MustCompile(`(?i)\.(mp3|m4a|flac|wav|aac)$`)
	trackNumber = regexp.MustCompile(`^[\d\-]+[\s.\-]+`)
)

// EntryFromPath derives an entry from an archive path laid out as
// Artist/Album/NN Title.ext, Artist/Title.ext or "Artist - Title.ext".
func EntryFromPath(p string) model.ArchiveEntry {
	p = strings.TrimSpace(p)
	parts := strings.Split(p, "/")
	name := audioExt.ReplaceAllString(path.Base(p), "")
	name = trackNumber.ReplaceAllString(name, "")

	var artist, album string
	title := name
	switch {
	case len(parts) >= 3:
		artist, album = parts[0], parts[1]
	case len(parts) == 2:
		artist = parts[0]
	}
	if artist == "" {
		if a, t, ok := strings.Cut(name, " - "); ok {
			artist, title = a, t
		}
	}
	artist, title, album = strings.TrimSpace(artist), strings.TrimSpace(title), strings.TrimSpace(album)
	return model.ArchiveEntry{
		Path:      p,
		Artist:    artist,
		Title:     title,
		Album:     album,
		SearchKey: SearchKey(artist, title),
	}
}

// BuildIndex turns a file listing into an index document. Lines that are
// blank or not audio are skipped.
func BuildIndex(paths []string, now time.Time) *model.ArchiveIndex {
	index := &model.ArchiveIndex{Generated: now.Format("2006-01-02 15:04:05"), Files: []model.ArchiveEntry{}}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || !audioExt.MatchString(p) {
			continue
		}
		index.Files = append(index.Files, EntryFromPath(p))
	}
	index.Count = len(index.Files)
	return index
}

// ScanDir lists the audio files under root as slash-separated paths
// relative to it, ready for BuildIndex.
func ScanDir(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !audioExt.MatchString(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return paths, nil
}

// WriteIndexFile replaces the index at path in one rename.
func WriteIndexFile(path string, index *model.ArchiveIndex) error {
	data, err := json.MarshalIndent(index, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal archive index: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write archive index: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write archive index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write archive index: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write archive index: %w", err)
	}
	return nil
}
