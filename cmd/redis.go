package cmd

import (
	"context"
	"fmt"
	"time"

	"Rippers/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis connection used for track locks",
	Long:  `Connect to Redis, round-trip a key and take and release one track lock.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Redis: %s:%s, DB %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		fmt.Fprintln(out, "Connected.")

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		if err := cache.CheckRoundTrip(ctx, client); err != nil {
			return err
		}
		fmt.Fprintln(out, "Read/write OK.")

		unlock, err := cache.NewRedisLocker(client).Lock(ctx, "redis-check.mp3")
		if err != nil {
			return fmt.Errorf("failed to take a track lock: %w", err)
		}
		unlock()
		fmt.Fprintln(out, "Track lock OK.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
