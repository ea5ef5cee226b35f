// Package playlist persists named, ordered track lists in one JSON document.
package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"Rippers/logger"
	"Rippers/model"
)

const lockRetryDelay = 50 * time.Millisecond

// Store reads and writes the whole document per mutation. A process-local
// mutex plus an advisory file lock make each read-modify-write exclusive.
type Store struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
}

func (s *Store) Path() string { return s.path }

func newID() string {
	return "pl_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (s *Store) acquire(ctx context.Context, exclusive bool) (func(), error) {
	s.mu.Lock()
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to create playlist directory: %w", err)
		}
	}
	var ok bool
	var err error
	if exclusive {
		ok, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil || !ok {
		s.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("playlist document is locked")
		}
		return nil, fmt.Errorf("failed to lock playlist document: %w", err)
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			logger.Warn("Failed to release playlist lock", logger.ErrorField(err))
		}
		s.mu.Unlock()
	}, nil
}

// load reads the document. A missing file is an empty document.
func (s *Store) load() (map[string]*model.Playlist, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*model.Playlist{}, nil
		}
		return nil, fmt.Errorf("failed to read playlists: %w", err)
	}
	doc := map[string]*model.Playlist{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse playlists %s: %w", s.path, err)
	}
	for id, p := range doc {
		if p == nil {
			delete(doc, id)
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
		if p.Tracks == nil {
			p.Tracks = []model.PlaylistTrack{}
		}
	}
	return doc, nil
}

func (s *Store) save(doc map[string]*model.Playlist) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal playlists: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to save playlists: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to save playlists: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save playlists: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save playlists: %w", err)
	}
	return nil
}

func (s *Store) read(ctx context.Context) (map[string]*model.Playlist, error) {
	release, err := s.acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.load()
}

// mutate runs fn on the loaded document and saves the result.
func (s *Store) mutate(ctx context.Context, fn func(doc map[string]*model.Playlist) error) error {
	release, err := s.acquire(ctx, true)
	if err != nil {
		return err
	}
	defer release()
	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(doc)
}

func notFound(id string) error {
	return fmt.Errorf("playlist %s: %w", id, model.ErrNotFound)
}

// List returns every playlist, most recently modified first.
func (s *Store) List(ctx context.Context) ([]*model.Playlist, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Playlist, 0, len(doc))
	for _, p := range doc {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Modified != out[j].Modified {
			return out[i].Modified > out[j].Modified
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*model.Playlist, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := doc[id]
	if !ok {
		return nil, notFound(id)
	}
	return p, nil
}

// Create adds an empty playlist. filenames, when given, become its tracks in
// order with duplicates dropped.
func (s *Store) Create(ctx context.Context, name, description string, filenames ...string) (*model.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name required", model.ErrInvalidArgument)
	}
	now := s.now().Unix()
	p := &model.Playlist{
		ID:          newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Tracks:      []model.PlaylistTrack{},
		Created:     now,
		Modified:    now,
	}
	for _, f := range filenames {
		if !p.Contains(f) {
			p.Tracks = append(p.Tracks, model.PlaylistTrack{Filename: f, Added: now})
		}
	}
	err := s.mutate(ctx, func(doc map[string]*model.Playlist) error {
		doc[p.ID] = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Playlist created", logger.String("id", p.ID), logger.String("name", p.Name))
	return p, nil
}

// Update changes the name and/or description; nil keeps the current value.
func (s *Store) Update(ctx context.Context, id string, name, description *string) (*model.Playlist, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, fmt.Errorf("%w: playlist name required", model.ErrInvalidArgument)
	}
	var out *model.Playlist
	err := s.mutate(ctx, func(doc map[string]*model.Playlist) error {
		p, ok := doc[id]
		if !ok {
			return notFound(id)
		}
		if name != nil {
			p.Name = strings.TrimSpace(*name)
		}
		if description != nil {
			p.Description = strings.TrimSpace(*description)
		}
		p.Modified = s.now().Unix()
		out = p
		return nil
	})
	return out, err
}

// Delete removes a playlist. Deleting a missing id succeeds.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, func(doc map[string]*model.Playlist) error {
		delete(doc, id)
		return nil
	})
}

// AddTrack appends filename; a track can appear only once.
func (s *Store) AddTrack(ctx context.Context, id, filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename required", model.ErrInvalidArgument)
	}
	return s.mutate(ctx, func(doc map[string]*model.Playlist) error {
		p, ok := doc[id]
		if !ok {
			return notFound(id)
		}
		if p.Contains(filename) {
			return fmt.Errorf("track %s already in playlist: %w", filename, model.ErrConflict)
		}
		now := s.now().Unix()
		p.Tracks = append(p.Tracks, model.PlaylistTrack{Filename: filename, Added: now})
		p.Modified = now
		return nil
	})
}

// RemoveTrack drops every reference to filename.
func (s *Store) RemoveTrack(ctx context.Context, id, filename string) error {
	return s.mutate(ctx, func(doc map[string]*model.Playlist) error {
		p, ok := doc[id]
		if !ok {
			return notFound(id)
		}
		kept := make([]model.PlaylistTrack, 0, len(p.Tracks))
		for _, t := range p.Tracks {
			if t.Filename != filename {
				kept = append(kept, t)
			}
		}
		p.Tracks = kept
		p.Modified = s.now().Unix()
		return nil
	})
}

// Reorder replaces the track list with order. Names the playlist does not
// hold are ignored and names missing from order are dropped.
func (s *Store) Reorder(ctx context.Context, id string, order []string) error {
	return s.mutate(ctx, func(doc map[string]*model.Playlist) error {
		p, ok := doc[id]
		if !ok {
			return notFound(id)
		}
		byName := make(map[string]model.PlaylistTrack, len(p.Tracks))
		for _, t := range p.Tracks {
			byName[t.Filename] = t
		}
		tracks := make([]model.PlaylistTrack, 0, len(order))
		for _, name := range order {
			if t, ok := byName[name]; ok {
				tracks = append(tracks, t)
				delete(byName, name)
			}
		}
		p.Tracks = tracks
		p.Modified = s.now().Unix()
		return nil
	})
}

// Resolve returns the filenames of id whose tracks still exist, in order.
// Dangling references stay in the document.
func (s *Store) Resolve(ctx context.Context, id string, exists func(string) bool) ([]string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range p.Filenames() {
		if exists(name) {
			out = append(out, name)
		}
	}
	return out, nil
}
