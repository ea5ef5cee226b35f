package cmd

import (
	"io"
	"os"
	"time"

	"github.com/k0kubun/go-ansi"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

func interactive() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// consoleLogs reports whether stderr is a terminal that can take coloured log lines.
func consoleLogs() bool {
	return isatty.IsTerminal(os.Stderr.Fd())
}

func progressWriter() io.Writer {
	if !interactive() {
		return io.Discard
	}
	return ansi.NewAnsiStdout()
}

// newBar counts through max steps; max < 0 gives a spinner.
func newBar(max int, description string) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetWriter(progressWriter()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionSetDescription(description),
		progressbar.OptionClearOnFinish(),
	}
	if max >= 0 {
		opts = append(opts, progressbar.OptionFullWidth(), progressbar.OptionShowCount())
	} else {
		opts = append(opts, progressbar.OptionSpinnerType(14))
	}
	return progressbar.NewOptions(max, opts...)
}

// spin runs fn behind a spinner.
func spin(description string, fn func() error) error {
	bar := newBar(-1, description)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				_ = bar.Add(1)
			}
			select {
			case <-done:
				return
			case <-time.After(120 * time.Millisecond):
			}
		}
	}()
	err := fn()
	close(done)
	_ = bar.Finish()
	return err
}
