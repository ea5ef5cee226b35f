package playlist

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Rippers/model"
)

func TestExportM3U(t *testing.T) {
	p := &model.Playlist{Name: "Road Trip", Tracks: []model.PlaylistTrack{
		{Filename: "Queen - Innuendo.mp3"},
		{Filename: "gone.mp3"},
		{Filename: "b.mp3"},
	}}
	lookup := func(name string) (string, bool) {
		switch name {
		case "Queen - Innuendo.mp3":
			return "Queen - Innuendo", true
		case "b.mp3":
			return "", true
		}
		return "", false
	}

	var buf bytes.Buffer
	require.NoError(t, ExportM3U(&buf, p, "downloads", lookup))
	assert.Equal(t, "#EXTM3U\n"+
		"#PLAYLIST:Road Trip\n"+
		"#EXTINF:-1,Queen - Innuendo\n"+
		"downloads/Queen%20-%20Innuendo.mp3\n"+
		"#EXTINF:-1,b.mp3\n"+
		"downloads/b.mp3\n", buf.String())
}

func TestParseM3U(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U",
		"#PLAYLIST:Night Drive",
		"#EXTINF:123,Artist, With Comma - Song",
		"http://host/downloads/Song%20One.mp3?token=abc",
		"#EXTINF:-1,Second",
		`C:\Music\song_two_remaster.mp3`,
		"other/completely-different.mp3",
		"",
	}, "\n")
	available := []string{"Song One.mp3", "Song Two.mp3", "Song_Two.mp3"}

	res, err := ParseM3U(strings.NewReader(doc), available)
	require.NoError(t, err)
	assert.Equal(t, "Night Drive", res.Name)
	require.Len(t, res.Entries, 3)

	assert.Equal(t, "Song One.mp3", res.Entries[0].Match)
	assert.Equal(t, "Artist, With Comma - Song", res.Entries[0].Info)

	assert.Equal(t, "song_two_remaster.mp3", res.Entries[1].Basename)
	assert.Empty(t, res.Entries[1].Match)
	assert.Equal(t, "Song_Two.mp3", res.Entries[1].Suggestion)
	assert.Equal(t, "Second", res.Entries[1].Info)

	assert.Empty(t, res.Entries[2].Match)
	assert.Empty(t, res.Entries[2].Suggestion)
	assert.Empty(t, res.Entries[2].Info)

	assert.Equal(t, []string{"Song One.mp3"}, res.Matched())
}

func TestParseM3USimilaritySuggestion(t *testing.T) {
	res, err := ParseM3U(strings.NewReader("Bohemian Rapsody.mp3\n"), []string{"Bohemian Rhapsody.mp3", "Other.mp3"})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "Bohemian Rhapsody.mp3", res.Entries[0].Suggestion)
	assert.Greater(t, res.Entries[0].Score, SuggestThreshold)
}

func TestParseM3UDefaultName(t *testing.T) {
	res, err := ParseM3U(strings.NewReader("#EXTM3U\na.mp3\n"), []string{"a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, DefaultImportName, res.Name)
}

func TestM3URoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	files := []string{"Zed - Last.mp3", "a (live).mp3", "Mötley & Co.mp3"}
	p, err := s.Create(ctx, "Round Trip", "", files...)
	require.NoError(t, err)

	var buf bytes.Buffer
	lookup := func(string) (string, bool) { return "", true }
	require.NoError(t, ExportM3U(&buf, p, "downloads", lookup))

	imported, res, err := s.ImportM3U(ctx, &buf, files, "")
	require.NoError(t, err)
	assert.Equal(t, "Round Trip", imported.Name)
	assert.Equal(t, files, imported.Filenames())
	assert.Len(t, res.Entries, 3)
	assert.NotEqual(t, p.ID, imported.ID)
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "Road_Trip__2024_.m3u", ExportFilename("Road Trip (2024)"))
}
