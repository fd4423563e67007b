package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"harvest_service/internal/api"
	"harvest_service/internal/config"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info("Starting the harvest service...")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go a.cache.Run(sweepCtx, cfg.CacheSweepInterval)

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(a.synth, a.cache, a.geo, a.rules)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Harvest service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Warning: graceful shutdown failed")
	}
	return <-errCh
}
