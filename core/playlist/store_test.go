package playlist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Rippers/model"
)

func newTestStore(t *testing.T) *Store {
	s := NewStore(filepath.Join(t.TempDir(), "playlists.json"))
	clock := time.Unix(1700000000, 0)
	s.now = func() time.Time { return clock }
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.Create(ctx, "  Road Trip ", "summer")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.ID, "pl_"))
	assert.Equal(t, "Road Trip", p.Name)
	assert.NotNil(t, p.Tracks)
	assert.Equal(t, int64(1700000000), p.Created)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = s.Create(ctx, "   ", "")
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	_, err = s.Get(ctx, "pl_missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestDocumentFormat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, "Mix", "")
	require.NoError(t, err)
	require.NoError(t, s.AddTrack(ctx, p.ID, "a.mp3"))

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"`+p.ID+`": {
		"id": "`+p.ID+`", "name": "Mix", "description": "",
		"tracks": [{"filename": "a.mp3", "added": 1700000000}],
		"created": 1700000000, "modified": 1700000000}}`, string(data))
}

func TestAddTrackRefusesDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, "Mix", "")
	require.NoError(t, err)

	require.NoError(t, s.AddTrack(ctx, p.ID, "a.mp3"))
	err = s.AddTrack(ctx, p.ID, "a.mp3")
	assert.True(t, errors.Is(err, model.ErrConflict))
	err = s.AddTrack(ctx, "pl_missing", "a.mp3")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mp3"}, got.Filenames())
}

func TestRemoveTrack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, "Mix", "", "a.mp3", "b.mp3", "c.mp3")
	require.NoError(t, err)

	require.NoError(t, s.RemoveTrack(ctx, p.ID, "b.mp3"))
	require.NoError(t, s.RemoveTrack(ctx, p.ID, "zzz.mp3"))
	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mp3", "c.mp3"}, got.Filenames())
}

func TestReorderDropsUnknownNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, "Mix", "", "a.mp3", "b.mp3", "c.mp3")
	require.NoError(t, err)

	require.NoError(t, s.Reorder(ctx, p.ID, []string{"c.mp3", "ghost.mp3", "a.mp3", "c.mp3"}))
	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.mp3", "a.mp3"}, got.Filenames())
}

func TestResolveSkipsDanglingWithoutPruning(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, "Mix", "", "a.mp3", "gone.mp3", "b.mp3")
	require.NoError(t, err)

	exists := func(name string) bool { return name != "gone.mp3" }
	names, err := s.Resolve(ctx, p.ID, exists)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.mp3", "b.mp3"}, names)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tracks, 3)
}

func TestDeleteMissingIsNoop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, "Mix", "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, p.ID))
	require.NoError(t, s.Delete(ctx, p.ID))
	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, "Mix", "old")
	require.NoError(t, err)

	name := "Renamed"
	got, err := s.Update(ctx, p.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "old", got.Description)

	blank := " "
	_, err = s.Update(ctx, p.ID, &blank, nil)
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }
	first, err := s.Create(ctx, "First", "")
	require.NoError(t, err)
	clock = time.Unix(2000, 0)
	second, err := s.Create(ctx, "Second", "")
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestLoadHandlesMissingAndCorruptDocuments(t *testing.T) {
	s := newTestStore(t)
	list, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0644))
	_, err = s.List(context.Background())
	assert.Error(t, err)
	err = s.AddTrack(context.Background(), "pl_x", "a.mp3")
	assert.Error(t, err)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestConcurrentMutationsAreNotLost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p, err := s.Create(ctx, "Mix", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AddTrack(ctx, p.ID, filepath.Base(t.Name())+"-"+string(rune('a'+i))+".mp3"))
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Tracks, 20)
}
