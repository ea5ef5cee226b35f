package cmd

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"Rippers/core/app"
	"Rippers/core/archive"
	"Rippers/storage"

	"github.com/spf13/cobra"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "Manage the archive bucket",
}

func archiveStore() (*storage.ArchiveStore, error) {
	return storage.NewArchiveStore(loadConfig())
}

var minioCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the bucket is reachable and writable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archiveStore()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		if err := store.Check(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Bucket %s OK.\n", store.Bucket())
		return nil
	},
}

var minioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audio objects under --prefix",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archiveStore()
		if err != nil {
			return err
		}
		keys, err := store.ListAudio(cmd.Context(), minioPrefix)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d object(s)\n", len(keys))
		return nil
	},
}

var minioIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the bucket's audio and publish it as ARCHIVE_OBJECT",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.ArchiveObject == "" {
			return fmt.Errorf("ARCHIVE_OBJECT is not configured")
		}
		store, err := archiveStore()
		if err != nil {
			return err
		}
		var keys []string
		err = spin("Listing "+store.Bucket(), func() error {
			var err error
			keys, err = store.ListAudio(cmd.Context(), minioPrefix)
			return err
		})
		if err != nil {
			return err
		}
		index := archive.BuildIndex(keys, time.Now())
		if err := store.PublishIndex(cmd.Context(), cfg.ArchiveObject, index); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published %d entries to %s/%s\n", index.Count, store.Bucket(), cfg.ArchiveObject)
		return nil
	},
}

var minioPublishCmd = &cobra.Command{
	Use:   "publish <track>...",
	Short: "Upload tracks to the bucket under --prefix",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(ctx context.Context, svc *app.Services) error {
			if svc.ArchiveStore == nil {
				return fmt.Errorf("MINIO_ENDPOINT is not configured")
			}
			layout := svc.Tracks.Layout()
			bar := newBar(len(args), "Uploading")
			for _, name := range args {
				if !svc.Tracks.Exists(name) {
					return fmt.Errorf("track %s does not exist", name)
				}
				key, err := svc.ArchiveStore.PublishTrack(ctx, layout.AudioPath(name), minioPrefix)
				_ = bar.Add(1)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return bar.Finish()
		})
	},
}

var minioStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the objects under --prefix",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archiveStore()
		if err != nil {
			return err
		}
		stats, err := store.Stats(cmd.Context(), minioPrefix)
		if err != nil {
			return err
		}
		kinds := make([]string, 0, len(stats.SizeByKind))
		for k := range stats.SizeByKind {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		rows := [][]string{
			{"Bucket", store.Bucket()},
			{"Objects", strconv.FormatInt(stats.TotalObjects, 10)},
			{"Total size", formatFileSize(stats.TotalSize)},
		}
		if !stats.LastModified.IsZero() {
			rows = append(rows, []string{"Last modified", stats.LastModified.Format(time.RFC3339)})
		}
		for _, k := range kinds {
			rows = append(rows, []string{"  " + k, formatFileSize(stats.SizeByKind[k])})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"", ""}, rows, []columnAlignment{alignLeft, alignRight}))
		return nil
	},
}

var minioRemoveCmd = &cobra.Command{
	Use:   "rm <prefix>",
	Short: "Delete every object under a prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := archiveStore()
		if err != nil {
			return err
		}
		n, err := store.RemovePrefix(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d object(s)\n", n)
		return nil
	},
}

func init() {
	minioCmd.PersistentFlags().StringVarP(&minioPrefix, "prefix", "p", "", "object key prefix")

	minioCmd.AddCommand(minioCheckCmd, minioListCmd, minioStatsCmd, minioIndexCmd, minioPublishCmd, minioRemoveCmd)
	rootCmd.AddCommand(minioCmd)
}
