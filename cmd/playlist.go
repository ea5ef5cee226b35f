package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"Rippers/core/app"
	"Rippers/core/merge"
	"Rippers/core/playlist"

	"github.com/spf13/cobra"
)

var (
	plDescription string
	plName        string
	plTrimSilence bool
	plOutput      string
)

var playlistCmd = &cobra.Command{
	Use:     "playlist",
	Aliases: []string{"pl"},
	Short:   "Manage playlists",
}

var playlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List playlists, most recently modified first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			lists, err := svc.Playlists.List(ctx)
			if err != nil {
				return err
			}
			if len(lists) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No playlists.")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(lists))
			for _, p := range lists {
				rows = append(rows, []string{
					p.ID,
					p.Name,
					strconv.Itoa(len(p.Tracks)),
					formatTimeAgo(time.Unix(p.Modified, 0), now),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Tracks", "Modified"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		})
	},
}

var playlistShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a playlist's tracks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			p, err := svc.Playlists.Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", p.Name, p.ID)
			if p.Description != "" {
				fmt.Fprintln(cmd.OutOrStdout(), p.Description)
			}
			rows := make([][]string, 0, len(p.Tracks))
			for i, t := range p.Tracks {
				state := ""
				if !svc.Tracks.Exists(t.Filename) {
					state = "missing"
				}
				rows = append(rows, []string{strconv.Itoa(i + 1), t.Filename, state})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "File", ""},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			))
			return nil
		})
	},
}

var playlistCreateCmd = &cobra.Command{
	Use:   "create <name> [track]...",
	Short: "Create a playlist",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			p, err := svc.Playlists.Create(ctx, args[0], plDescription, args[1:]...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created playlist %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

var playlistUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Rename a playlist or change its description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name, description *string
		if cmd.Flags().Changed("name") {
			name = &plName
		}
		if cmd.Flags().Changed("description") {
			description = &plDescription
		}
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			p, err := svc.Playlists.Update(ctx, args[0], name, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated playlist %s\n", p.Name)
			return nil
		})
	},
}

var playlistDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a playlist; its tracks are kept",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			return svc.Playlists.Delete(ctx, args[0])
		})
	},
}

var playlistAddCmd = &cobra.Command{
	Use:   "add <id> <track>...",
	Short: "Append tracks to a playlist",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			for _, name := range args[1:] {
				if err := svc.Playlists.AddTrack(ctx, args[0], name); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var playlistRemoveCmd = &cobra.Command{
	Use:   "remove <id> <track>...",
	Short: "Remove tracks from a playlist",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			for _, name := range args[1:] {
				if err := svc.Playlists.RemoveTrack(ctx, args[0], name); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var playlistReorderCmd = &cobra.Command{
	Use:   "reorder <id> <track>...",
	Short: "Set the playlist order; unlisted tracks are dropped",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			return svc.Playlists.Reorder(ctx, args[0], args[1:])
		})
	},
}

var playlistScanCmd = &cobra.Command{
	Use:   "scan <id>",
	Short: "Report long silences inside a playlist's tracks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			warnings, err := svc.Compositor.ScanSilence(ctx, args[0])
			if err != nil {
				return err
			}
			if len(warnings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No long silences.")
				return nil
			}
			rows := make([][]string, 0, len(warnings))
			for _, w := range warnings {
				rows = append(rows, []string{
					strconv.Itoa(w.TrackIndex + 1),
					w.Track,
					formatDuration(w.Start),
					fmt.Sprintf("%.1fs", w.Duration),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "File", "At", "Length"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		})
	},
}

var playlistMergeCmd = &cobra.Command{
	Use:   "merge <id>",
	Short: "Join a playlist into one loudness-normalized track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			var res *merge.Result
			err := spin("Merging", func() error {
				var err error
				res, err = svc.Compositor.Merge(ctx, args[0], merge.Options{TrimSilence: plTrimSilence})
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Merged %d track(s) into %s (%s)\n", res.TrackCount, res.Track, formatDuration(res.Duration))
			return nil
		})
	},
}

var playlistExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a playlist as M3U",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			p, err := svc.Playlists.Get(ctx, args[0])
			if err != nil {
				return err
			}
			var w io.Writer = cmd.OutOrStdout()
			if plOutput != "" {
				path := plOutput
				if info, err := os.Stat(path); err == nil && info.IsDir() {
					path = filepath.Join(path, playlist.ExportFilename(p.Name))
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return playlist.ExportM3U(w, p, svc.Config.PublicPrefix, svc.TrackLookup(ctx))
		})
	},
}

var playlistImportCmd = &cobra.Command{
	Use:   "import <file.m3u>",
	Short: "Create a playlist from an M3U file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			available, err := svc.Tracks.Names()
			if err != nil {
				return err
			}
			p, res, err := svc.Playlists.ImportM3U(ctx, f, available, plName)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(res.Entries))
			for _, e := range res.Entries {
				status := "matched"
				if e.Match == "" {
					status = "missing"
					if e.Suggestion != "" {
						status = fmt.Sprintf("did you mean %s? (%.0f%%)", e.Suggestion, e.Score*100)
					}
				}
				rows = append(rows, []string{e.Basename, status})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Entry", "Result"}, rows, nil))
			fmt.Fprintf(cmd.OutOrStdout(), "Created playlist %s (%s) with %d track(s)\n", p.Name, p.ID, len(p.Tracks))
			return nil
		})
	},
}

func init() {
	playlistCreateCmd.Flags().StringVarP(&plDescription, "description", "d", "", "playlist description")
	playlistUpdateCmd.Flags().StringVar(&plName, "name", "", "new name")
	playlistUpdateCmd.Flags().StringVarP(&plDescription, "description", "d", "", "new description")
	playlistMergeCmd.Flags().BoolVar(&plTrimSilence, "trim-silence", false, "drop silent runs from the result")
	playlistExportCmd.Flags().StringVarP(&plOutput, "output", "o", "", "file or directory to write (default: stdout)")
	playlistImportCmd.Flags().StringVar(&plName, "name", "", "playlist name (default: from the file)")

	playlistCmd.AddCommand(
		playlistListCmd, playlistShowCmd, playlistCreateCmd, playlistUpdateCmd, playlistDeleteCmd,
		playlistAddCmd, playlistRemoveCmd, playlistReorderCmd, playlistScanCmd,
		playlistMergeCmd, playlistExportCmd, playlistImportCmd,
	)
	rootCmd.AddCommand(playlistCmd)
}
