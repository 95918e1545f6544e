package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arin/morph/internal/observability"
	"github.com/arin/morph/internal/server"
)

var listenFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat orchestrator over a websocket",
	Long: `Start an HTTP server exposing:

  /ws       websocket chat (frames: chat, cancel)
  /models   models usable with the configured keys
  /health   health check
  /metrics  Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		metrics := observability.NewMetrics()
		a, err := newApp(metrics)
		if err != nil {
			return err
		}
		addr := listenFlag
		if addr == "" {
			addr = a.cfg.ListenAddr
		}

		checks := map[string]observability.HealthCheckFunc{}
		if a.cfg.RedisURL != "" {
			checks["search_cache"] = a.pingRedis
		}
		srv := server.New(a.orch, server.Options{
			Credentials:  a.creds,
			Models:       a.catalog,
			Search:       a.cfg.Search,
			Metrics:      metrics,
			Logger:       a.log,
			HealthChecks: checks,
			Version:      version,
		})

		httpServer := &http.Server{
			Addr:              addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			a.log.Info().
				Str("addr", addr).
				Bool("search", a.orch.SearchAvailable()).
				Int("models", len(a.models())).
				Msg("server listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		a.log.Info().Msg("server exited gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "Address to listen on (default from MORPH_LISTEN_ADDR or :8080)")
}
