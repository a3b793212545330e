package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/category-browser/internal/server"
	"github.com/Sternrassler/category-browser/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve browse sessions over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLogger("serve")
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if c.cfg.Logging.LogLevel() != logging.LevelDebug {
				gin.SetMode(gin.ReleaseMode)
			}

			srv := server.New(a.opener(), server.Config{
				IdleTTL:      c.cfg.Server.SessionIdleTTL,
				ReapInterval: c.cfg.Server.ReapInterval,
			})
			reaperDone := make(chan struct{})
			go func() {
				defer close(reaperDone)
				srv.Run(ctx)
			}()

			httpSrv := &http.Server{
				Addr:              c.cfg.Server.ListenAddr,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info().
					Str("addr", httpSrv.Addr).
					Str("source", string(c.cfg.Catalog.Source)).
					Msg("Starting session server")
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case <-ctx.Done():
				logger.Info().Msg("Shutdown signal received")
			case err = <-errCh:
				logger.Error().Err(err).Msg("Server failed")
				stop()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if serr := httpSrv.Shutdown(shutdownCtx); serr != nil {
				logger.Warn().Err(serr).Msg("HTTP shutdown error")
			}
			<-reaperDone
			logger.Info().Msg("Server stopped")
			return err
		},
	}

	cmd.Flags().String("listen", "", "listen address (default :8080)")
	return cmd
}
