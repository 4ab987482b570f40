package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"cryogon/rizumu-fetch/app"
	"cryogon/rizumu-fetch/config"
	"cryogon/rizumu-fetch/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg *config.Config
	log *zap.Logger

	mediaDir string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "rizumu-fetch",
	Short:         "Search and download audio/video from YouTube, SoundCloud and Spotify links.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if mediaDir != "" {
			cfg.MediaDir = mediaDir
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		var err error
		log, err = logger.New(logger.Config{Level: cfg.LogLevel, OutputPath: cfg.LogFile})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.ReplaceGlobals(log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&mediaDir, "media-dir", "", "content store root (overrides MEDIA_DIR)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withApp runs fn against a freshly wired App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	}()
	return fn(ctx, a)
}
