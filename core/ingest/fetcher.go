// Package ingest brings new tracks into the library: remote acquisition
// through yt-dlp and adoption of files other tools drop into the track dir.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"Rippers/core/audio"
	"Rippers/logger"
)

const (
	OpFetchTitle = "fetch-title"
	OpExtract    = "extract"

	outputTemplate = "%(title)s-%(id)s.%(ext)s"
)

// Fetcher resolves and downloads remote media.
type Fetcher interface {
	// Title returns the media title without downloading anything.
	Title(ctx context.Context, url string) (string, error)
	// Extract downloads url as audio into dir.
	Extract(ctx context.Context, url, dir string) error
}

// YTDLPFetcher shells out to yt-dlp.
type YTDLPFetcher struct {
	path   string
	format string
}

// NewYTDLPFetcher extracts audio in the format named by ext (".mp3" → mp3).
func NewYTDLPFetcher(path, ext string) *YTDLPFetcher {
	format := strings.TrimPrefix(ext, ".")
	if format == "" {
		format = "mp3"
	}
	return &YTDLPFetcher{path: path, format: format}
}

// ExtractArgs is the yt-dlp argument list for one extraction.
func (f *YTDLPFetcher) ExtractArgs(url, dir string) []string {
	return []string{
		"-x", "--audio-format", f.format,
		"--restrict-filenames", "--no-playlist",
		"--output", filepath.Join(dir, outputTemplate),
		url,
	}
}

func (f *YTDLPFetcher) run(ctx context.Context, op string, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, f.path, args...)
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	logger.Debug("Executing yt-dlp", logger.String("op", op), logger.Strings("args", args))
	err := cmd.Run()
	out := combined.String()
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return out, &audio.ToolError{Op: op, ExitCode: code, Output: lastLines(out, 5), Reason: err.Error()}
	}
	return out, nil
}

func (f *YTDLPFetcher) Title(ctx context.Context, url string) (string, error) {
	out, err := f.run(ctx, OpFetchTitle, []string{"--print", "title", "--no-playlist", url})
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(out), " "), nil
}

func (f *YTDLPFetcher) Extract(ctx context.Context, url, dir string) error {
	_, err := f.run(ctx, OpExtract, f.ExtractArgs(url, dir))
	return err
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
