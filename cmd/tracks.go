package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"Rippers/core/app"
	"Rippers/core/normalize"
	"Rippers/model"

	"github.com/spf13/cobra"
)

var (
	showProbe bool

	metaArtist  string
	metaTitle   string
	metaAlbum   string
	metaSummary string
	metaLyrics  string
	metaImage   string
	metaURL     string
	metaNoTags  bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracks, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			tracks, err := svc.Tracks.List(ctx)
			if err != nil {
				return err
			}
			if len(tracks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tracks.")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(tracks))
			for _, t := range tracks {
				rows = append(rows, []string{
					t.Name,
					t.Artist,
					t.Title,
					formatFileSize(t.Size),
					formatTimeAgo(t.AcquiredAt, now),
					flags(t),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"File", "Artist", "Title", "Size", "Acquired", "Flags"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		})
	},
}

// flags abbreviates the derived state: b = backup, w = waveform, m = sidecar.
func flags(t *model.Track) string {
	out := ""
	if t.HasSidecar {
		out += "m"
	}
	if t.HasBackup {
		out += "b"
	}
	if t.HasWaveform {
		out += "w"
	}
	return out
}

var showCmd = &cobra.Command{
	Use:   "show <track>",
	Short: "Show one track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			var (
				t   *model.Track
				err error
			)
			if showProbe {
				t, err = svc.Tracks.Probe(ctx, args[0])
			} else {
				t, err = svc.Tracks.Get(ctx, args[0])
			}
			if err != nil {
				return err
			}
			rows := [][]string{
				{"File", t.Name},
				{"Artist", t.Artist},
				{"Title", t.Title},
				{"Album", t.Album},
				{"Size", formatFileSize(t.Size)},
				{"Acquired", t.AcquiredAt.Format(time.RFC3339)},
				{"Source", t.SourceURL},
				{"Backup", strconv.FormatBool(t.HasBackup)},
			}
			if showProbe {
				rows = append(rows, []string{"Duration", formatDuration(t.Duration)})
				if t.PeakDB != nil {
					rows = append(rows,
						[]string{"Peak", fmt.Sprintf("%.1f dB", *t.PeakDB)},
						[]string{"Needs normalization", strconv.FormatBool(t.NeedsNormalization(normalize.ThresholdDB))})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		})
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <track> <new name>",
	Short: "Rename a track and everything derived from it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			name, err := svc.Tracks.Rename(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s -> %s\n", args[0], name)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <track>...",
	Aliases: []string{"rm"},
	Short:   "Delete tracks with their sidecar, backup and waveform",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			for _, name := range args {
				if err := svc.Tracks.Delete(ctx, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", name)
			}
			return nil
		})
	},
}

var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Delete tracks older than MAX_FILE_AGE",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			removed, err := svc.Tracks.EvictExpired(ctx, svc.Config.MaxFileAge)
			if err != nil {
				return err
			}
			for _, name := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Evicted %s\n", name)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d track(s) evicted\n", len(removed))
			return nil
		})
	},
}

var metaCmd = &cobra.Command{
	Use:   "meta <track>",
	Short: "Edit a track's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		update := metadataUpdate(cmd)
		if update.Empty() {
			return fmt.Errorf("nothing to change")
		}
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			sc, err := svc.Tracks.UpdateMetadata(ctx, args[0], update, !metaNoTags)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s - %s\n", args[0], sc.Artist, sc.Title)
			return nil
		})
	},
}

// metadataUpdate only carries the flags the user actually set, so an
// explicit empty value clears a field.
func metadataUpdate(cmd *cobra.Command) model.MetadataUpdate {
	var u model.MetadataUpdate
	pick := func(flag string, v *string) *string {
		if cmd.Flags().Changed(flag) {
			return v
		}
		return nil
	}
	u.Artist = pick("artist", &metaArtist)
	u.Title = pick("title", &metaTitle)
	u.Album = pick("album", &metaAlbum)
	u.Summary = pick("summary", &metaSummary)
	u.LyricsURL = pick("lyrics", &metaLyrics)
	u.ImageURL = pick("image", &metaImage)
	u.URL = pick("url", &metaURL)
	return u
}

var waveformCmd = &cobra.Command{
	Use:   "waveform <track>",
	Short: "Render (or reuse) a track's waveform preview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			path, err := svc.Waveforms.Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		})
	},
}

var peakCmd = &cobra.Command{
	Use:   "peak [track]...",
	Short: "Measure peak levels; every track when none are named",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			names := args
			if len(names) == 0 {
				all, err := svc.Tracks.Names()
				if err != nil {
					return err
				}
				names = all
			}
			bar := newBar(len(names), "Measuring")
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				peak, err := svc.Normalizer.MeasurePeak(ctx, name)
				_ = bar.Add(1)
				if err != nil {
					rows = append(rows, []string{name, "error", err.Error()})
					continue
				}
				verdict := ""
				if normalize.NeedsNormalization(peak) {
					verdict = "quiet"
				}
				rows = append(rows, []string{name, fmt.Sprintf("%.1f dB", peak), verdict})
			}
			_ = bar.Finish()
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"File", "Peak", ""},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft},
			))
			return nil
		})
	},
}

func init() {
	showCmd.Flags().BoolVar(&showProbe, "probe", false, "measure duration and peak level")

	metaCmd.Flags().StringVar(&metaArtist, "artist", "", "artist")
	metaCmd.Flags().StringVar(&metaTitle, "title", "", "title")
	metaCmd.Flags().StringVar(&metaAlbum, "album", "", "album")
	metaCmd.Flags().StringVar(&metaSummary, "summary", "", "summary")
	metaCmd.Flags().StringVar(&metaLyrics, "lyrics", "", "lyrics URL")
	metaCmd.Flags().StringVar(&metaImage, "image", "", "cover image URL")
	metaCmd.Flags().StringVar(&metaURL, "url", "", "source URL")
	metaCmd.Flags().BoolVar(&metaNoTags, "no-tags", false, "only update the sidecar, leave embedded tags alone")

	rootCmd.AddCommand(listCmd, showCmd, renameCmd, deleteCmd, evictCmd, metaCmd, waveformCmd, peakCmd)
}
