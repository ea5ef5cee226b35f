package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"Rippers/core/app"
	"Rippers/core/ingest"
	"Rippers/core/library"
	"Rippers/core/normalize"
	"Rippers/core/trim"
	"Rippers/model"

	"github.com/spf13/cobra"
)

var (
	trimStart string
	trimEnd   string

	importName     string
	importChannels int
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <track>",
	Short: "Raise a track's peak to the target level, keeping a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			var res *normalize.Result
			err := spin("Normalizing "+args[0], func() error {
				var err error
				res, err = svc.Normalizer.Apply(ctx, args[0])
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Normalized %s (peak %.1f dB, gain %+.1f dB)\n", res.Track, res.PeakDB, res.GainDB)
			return nil
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <track>",
	Short: "Put a track's backup back in place",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			if err := svc.Normalizer.Restore(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", args[0])
			return nil
		})
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <track>",
	Short: "Normalize a track, or restore it when it already has a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			action, _, err := svc.Normalizer.Toggle(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], action)
			return nil
		})
	},
}

var trimCmd = &cobra.Command{
	Use:   "trim <track>",
	Short: "Cut a track to the given range",
	Long: `Cut a track to [--start, --end]. Times are seconds or mm:ss; either bound
may be left out.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := trim.ParseTimeSpec(trimStart)
		if err != nil {
			return err
		}
		end, err := trim.ParseTimeSpec(trimEnd)
		if err != nil {
			return err
		}
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			if err := svc.Trimmer.Apply(ctx, args[0], start, end); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trimmed %s\n", args[0])
			return nil
		})
	},
}

var trimSilenceCmd = &cobra.Command{
	Use:   "trim-silence <track>",
	Short: "Drop long silent runs from a track, keeping a backup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			err := spin("Trimming "+args[0], func() error {
				return svc.Trimmer.TrimSilence(ctx, args[0])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trimmed silence from %s\n", args[0])
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Transcode a local recording into the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := importName
		if name == "" {
			base := filepath.Base(args[0])
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			var t *model.Track
			err := spin("Importing "+name, func() error {
				var err error
				t, err = svc.Tracks.Import(ctx, args[0], library.ImportOptions{
					Name:     name,
					Channels: importChannels,
					Sidecar:  &model.Sidecar{Recorded: time.Now().Format(ingest.DateLayout)},
				})
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s)\n", t.Name, formatFileSize(t.Size))
			return nil
		})
	},
}

func init() {
	trimCmd.Flags().StringVar(&trimStart, "start", "", "keep from this time")
	trimCmd.Flags().StringVar(&trimEnd, "end", "", "keep up to this time")

	importCmd.Flags().StringVar(&importName, "name", "", "track name (default: file name)")
	importCmd.Flags().IntVar(&importChannels, "channels", 0, "output channels, 0 keeps the source layout")

	rootCmd.AddCommand(normalizeCmd, restoreCmd, toggleCmd, trimCmd, trimSilenceCmd, importCmd)
}
