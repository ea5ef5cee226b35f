// Package library owns the track directory: audio files, their sidecars,
// and the naming of every companion artifact.
package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"Rippers/model"
)

const (
	sidecarSuffix  = ".meta"
	backupSuffix   = "_backup"
	waveformSuffix = "_waveform"
	waveformExt    = ".png"
)

// Layout maps a track name onto the paths of its artifacts.
type Layout struct {
	TrackDir    string
	Ext         string // audio extension including the dot
	BackupDir   string
	WaveformDir string
}

// Stem strips the track extension from name.
func (l Layout) Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (l Layout) AudioPath(name string) string {
	return filepath.Join(l.TrackDir, name)
}

func (l Layout) SidecarPath(name string) string {
	return filepath.Join(l.TrackDir, name+sidecarSuffix)
}

func (l Layout) BackupPath(name string) string {
	return filepath.Join(l.BackupDir, l.Stem(name)+backupSuffix+filepath.Ext(name))
}

func (l Layout) WaveformPath(name string) string {
	return filepath.Join(l.WaveformDir, l.Stem(name)+waveformSuffix+waveformExt)
}

// TempPath is where an edit of name writes its output before the swap. It is a
// dot file in the track directory so listings never pick it up and the final
// rename stays on one filesystem.
func (l Layout) TempPath(name, op string) string {
	return filepath.Join(l.TrackDir, "."+l.Stem(name)+"."+op+".tmp"+filepath.Ext(name))
}

// IsTrackFile reports whether a directory entry name is a track. Backup
// copies only shadow tracks when they share the track directory.
func (l Layout) IsTrackFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if !strings.EqualFold(filepath.Ext(name), l.Ext) {
		return false
	}
	if sameDir(l.BackupDir, l.TrackDir) && strings.HasSuffix(l.Stem(name), backupSuffix) {
		return false
	}
	return true
}

func sameDir(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

// WithExt forces the track extension onto a caller supplied name.
func (l Layout) WithExt(name string) string {
	if strings.EqualFold(filepath.Ext(name), l.Ext) {
		return name
	}
	return name + l.Ext
}

// ValidName rejects names that would escape the track directory.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_\-\s]`)

// SafeName keeps letters, digits, underscores, dashes and spaces.
func SafeName(s string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(s, ""))
}

// UniqueName returns stem+ext, or stem+sep+N+ext for the first N that is free.
func (l Layout) UniqueName(stem, sep string) string {
	name := stem + l.Ext
	for n := 1; fileExists(l.AudioPath(name)); n++ {
		name = fmt.Sprintf("%s%s%d%s", stem, sep, n, l.Ext)
	}
	return name
}

// maxClaimAttempts bounds how often ClaimName retries after losing a race.
const maxClaimAttempts = 16

// ClaimName picks a free track name from stem and locks it together with
// extra. The name is checked again under the lock, so two callers that raced
// to the same candidate end up with different names. Call release when the
// new track is in place.
func (l Layout) ClaimName(ctx context.Context, locker Locker, stem, sep string, extra ...string) (string, func(), error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		name := l.UniqueName(stem, sep)
		if !l.IsTrackFile(name) {
			return "", nil, fmt.Errorf("%w: track name %q", model.ErrInvalidArgument, name)
		}
		release, err := LockAll(ctx, locker, append([]string{name}, extra...)...)
		if err != nil {
			return "", nil, err
		}
		if !fileExists(l.AudioPath(name)) {
			return name, release, nil
		}
		release()
	}
	return "", nil, fmt.Errorf("track %s: %w", stem+l.Ext, model.ErrConflict)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// removeIfExists deletes path; a missing file is not an error.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// renameIfExists moves a companion file; a missing source is not an error.
func renameIfExists(from, to string) error {
	if err := os.Rename(from, to); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
