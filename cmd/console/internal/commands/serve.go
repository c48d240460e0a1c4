package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/callsight/console/internal/api"
	"github.com/callsight/console/internal/calls"
	"github.com/callsight/console/internal/console"
	"github.com/callsight/console/internal/logger"
	"github.com/callsight/console/internal/session"
	"github.com/callsight/console/internal/telemetry"
)

type ServeCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"localhost:8080" env:"CALLSIGHT_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"CALLSIGHT_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"CALLSIGHT_TLS_KEY"`

	// Upstream API configuration
	APIURL          string        `help:"analytics API base URL" required:"" env:"CALLSIGHT_API_URL"`
	RefreshInterval time.Duration `help:"silent session refresh interval" default:"14m" env:"CALLSIGHT_REFRESH_INTERVAL"`
	CacheDir        string        `help:"directory for the HTTP response cache, empty keeps it in memory" default:"" env:"CALLSIGHT_CACHE_DIR"`
	ProbeTimeout    time.Duration `help:"how long to wait for the API to become reachable on startup" default:"30s" env:"CALLSIGHT_PROBE_TIMEOUT"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"http://localhost:8080" env:"CALLSIGHT_CORS_ORIGINS"`

	// Operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"CALLSIGHT_TRACING"`
}

func (c *ServeCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting console")

	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.InitTelemetry(ctx, "callsight-console", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	cacheOpt := api.WithCachingTransport()
	if c.CacheDir != "" {
		cacheOpt = api.WithHTTPClient(api.NewDiskCachingHTTPClient(c.CacheDir))
	}
	apiClient, err := api.New(c.APIURL, cacheOpt)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	// Wait for the API before serving pages that depend on it.
	_, err = backoff.Retry(ctx, func() (any, error) {
		return nil, apiClient.Ping(ctx)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(c.ProbeTimeout),
	)
	if err != nil {
		return fmt.Errorf("API at %s is not reachable: %w", c.APIURL, err)
	}
	log.Info().Str("api_url", apiClient.BaseURL()).Msg("API is reachable")

	sessions := session.NewManager(apiClient, session.WithRefreshInterval(c.RefreshInterval))
	defer sessions.Close()

	server := console.NewServer(apiClient, sessions, calls.NewClient(apiClient), c.CORSOrigins, log)
	httpServer := configureHTTPServer(c.Listen, server.Handler())

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" && c.Key != "" {
			log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
			errCh <- httpServer.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		log.Info().Str("addr", c.Listen).Msg("Starting HTTP server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shut down cleanly: %w", err)
	}
	return nil
}
