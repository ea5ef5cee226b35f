package cmd

import (
	"context"

	"Rippers/core/app"
	"Rippers/logger"
	"Rippers/server"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serverCmd = &cobra.Command{
	Use:         "server",
	Short:       "Serve the HTTP API",
	Long:        `Serve the track, playlist, archive and download API. With WATCH_INGEST set the track directory is watched as well.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{daemonAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Run(ctx, svc)
			})
			if svc.Config.WatchIngest {
				g.Go(func() error {
					if n, err := svc.Watcher.Sweep(ctx); err != nil {
						logger.Warn("Initial ingest sweep failed", logger.ErrorField(err))
					} else if n > 0 {
						logger.Info("Adopted existing tracks", logger.Int("count", n))
					}
					return svc.Watcher.Run(ctx)
				})
			}
			return g.Wait()
		})
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
