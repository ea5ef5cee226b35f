package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"Rippers/config"
	"Rippers/core/app"
	"Rippers/logger"
)

var (
	verbose bool

	cfgOnce sync.Once
	cfg     *config.Config
)

// loadConfig reads .env and the environment once per process.
func loadConfig() *config.Config {
	cfgOnce.Do(func() { cfg = config.Load() })
	return cfg
}

// daemonAnnotation marks commands that keep running and log at the configured level.
const daemonAnnotation = "daemon"

var rootCmd = &cobra.Command{
	Use:           "rippers",
	Short:         "Rippers keeps a personal library of audio rips, recordings and mixes.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		level := logger.LogLevel(cfg.LogLevel)
		if cmd.Annotations[daemonAnnotation] != "true" {
			// One-shot commands print their own output; keep stdout readable.
			level = logger.WarnLevel
		}
		if verbose {
			level = logger.DebugLevel
		}
		logger.InitLogger(logger.Config{
			Level:      level,
			Console:    consoleLogs(),
			OutputPath: cfg.LogFile,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,
			Compress:   cfg.LogCompress,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// Execute executes the root command.
func Execute() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withServices builds the services for one command and tears them down after.
// Ctrl-C cancels ctx.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Services) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, loadConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("Failed to close services", logger.ErrorField(err))
		}
	}()
	return fn(ctx, svc)
}
