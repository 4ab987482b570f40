package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cryogon/rizumu-fetch/app"
	"cryogon/rizumu-fetch/httpd"
	"cryogon/rizumu-fetch/ipc"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the event socket",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           httpd.NewRouter(a, log),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("server listening", zap.String("addr", cfg.ListenAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		if cfg.SocketPath != "" {
			hub := ipc.NewHub(a.Scheduler(), log)
			a.Subscribe(hub.Broadcast)
			g.Go(func() error {
				return hub.Listen(gctx, cfg.SocketPath)
			})
		}

		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn("http shutdown", zap.Error(err))
			}
			if err := a.Close(shutdownCtx); err != nil {
				log.Warn("in-flight downloads were killed", zap.Error(err))
			}
			return nil
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "how long to wait for in-flight downloads on shutdown")
	rootCmd.AddCommand(serveCmd)
}
