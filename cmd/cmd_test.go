package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Rippers/core/archive"
	"Rippers/model"
)

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"File", "Size"},
		[][]string{{"a.mp3", "1.00 MB"}, {"b.mp3"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	assert.Contains(t, out, "File")
	assert.Contains(t, out, "a.mp3")
	assert.Contains(t, out, "1.00 MB")
	assert.Contains(t, out, "b.mp3")
	assert.Equal(t, "", renderTable(nil, nil, nil))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "512 bytes", formatFileSize(512))
	assert.Equal(t, "1.50 KB", formatFileSize(1536))
	assert.Equal(t, "2.00 MB", formatFileSize(2<<20))

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "Just now", formatTimeAgo(now.Add(-10*time.Second), now))
	assert.Equal(t, "1 min ago", formatTimeAgo(now.Add(-time.Minute), now))
	assert.Equal(t, "5 mins ago", formatTimeAgo(now.Add(-5*time.Minute), now))
	assert.Equal(t, "2 hours ago", formatTimeAgo(now.Add(-2*time.Hour), now))
	assert.Equal(t, "3 days ago", formatTimeAgo(now.Add(-72*time.Hour), now))
	assert.Equal(t, "Feb 1, 2024 9:30 am", formatTimeAgo(time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC), now))

	assert.Equal(t, "-", formatDuration(0))
	assert.Equal(t, "3:05", formatDuration(184.6))
}

func TestFlags(t *testing.T) {
	assert.Equal(t, "mbw", flags(&model.Track{HasSidecar: true, HasBackup: true, HasWaveform: true}))
	assert.Equal(t, "", flags(&model.Track{}))
}

func TestMetadataUpdateOnlyCarriesChangedFlags(t *testing.T) {
	c := &cobra.Command{Use: "meta"}
	var artist, title, album, summary, lyrics, image, url string
	c.Flags().StringVar(&artist, "artist", "", "")
	c.Flags().StringVar(&title, "title", "", "")
	c.Flags().StringVar(&album, "album", "", "")
	c.Flags().StringVar(&summary, "summary", "", "")
	c.Flags().StringVar(&lyrics, "lyrics", "", "")
	c.Flags().StringVar(&image, "image", "", "")
	c.Flags().StringVar(&url, "url", "", "")
	require.NoError(t, c.Flags().Parse([]string{"--artist", "Blur", "--album="}))

	// metadataUpdate reads the package-level flag targets.
	metaArtist, metaAlbum = artist, album
	u := metadataUpdate(c)
	require.NotNil(t, u.Artist)
	assert.Equal(t, "Blur", *u.Artist)
	require.NotNil(t, u.Album)
	assert.Equal(t, "", *u.Album)
	assert.Nil(t, u.Title)
	assert.Nil(t, u.URL)
	assert.False(t, u.Empty())
}

func TestArchiveBuildCommand(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "music", "Blur")
	require.NoError(t, os.MkdirAll(src, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "Song 2.mp3"), []byte("x"), 0644))
	out := filepath.Join(root, "index.json")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"archive", "build", filepath.Join(root, "music"), "-o", out})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.HasPrefix(stdout.String(), "Indexed 1 file(s)"))

	m, err := archive.LoadIndexFile(out)
	require.NoError(t, err)
	e, ok := m.MatchByArtistTitle("Blur", "Song 2")
	require.True(t, ok)
	assert.Equal(t, "Blur/Song 2.mp3", e.Path)
}
