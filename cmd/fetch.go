package cmd

import (
	"context"
	"fmt"

	"Rippers/core/app"
	"Rippers/core/ingest"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Download audio from video pages into the library",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			var failed int
			for _, u := range args {
				var res *ingest.Result
				err := spin("Fetching "+u, func() error {
					var err error
					res, err = svc.Acquirer.Acquire(ctx, u)
					return err
				})
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", u, err)
					continue
				}
				label := res.Track
				if res.Sidecar != nil && res.Sidecar.Complete() {
					label = fmt.Sprintf("%s (%s - %s)", res.Track, res.Sidecar.Artist, res.Sidecar.Title)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s, %s\n", label, formatFileSize(res.Filesize))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d download(s) failed", failed, len(args))
			}
			return nil
		})
	},
}

var activityLimit int

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent downloads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			entries, err := svc.Activity.Recent(ctx, activityLimit)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Date, e.Status, e.Filename, formatFileSize(e.Filesize), e.URL})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Date", "Status", "File", "Size", "URL"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		})
	},
}

var watchCmd = &cobra.Command{
	Use:         "watch",
	Short:       "Adopt audio files dropped into the track directory",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{daemonAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			if _, err := svc.Watcher.Sweep(ctx); err != nil {
				return err
			}
			return svc.Watcher.Run(ctx)
		})
	},
}

func init() {
	activityCmd.Flags().IntVarP(&activityLimit, "limit", "n", 20, "entries to show")
	rootCmd.AddCommand(fetchCmd, activityCmd, watchCmd)
}
