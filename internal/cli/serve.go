package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/and161185/dolist/internal/api"
	"github.com/and161185/dolist/internal/app"
	"github.com/and161185/dolist/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(o *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local HTTP API for a UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(o.configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.API.Addr = addr
			}
			log, err := zap.NewProduction()
			if o.verbose {
				log, err = zap.NewDevelopment()
			}
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			srv := api.New(a.Session, a.Lists, log.Named("api"))
			res, err := srv.Resolve(ctx)
			if err != nil {
				log.Warn("initial session resolution", zap.Error(err))
			}
			log.Info("session resolved", zap.Stringer("destination", res.Destination))

			hs := &http.Server{
				Addr:              cfg.API.Addr,
				Handler:           srv.Handler(cfg.API.AllowedOrigins),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("listening", zap.String("addr", hs.Addr))
				errCh <- hs.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := hs.Shutdown(shutdownCtx); err != nil {
					_ = hs.Close()
				}
				log.Info("shutdown complete")
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides api.addr)")
	return cmd
}
