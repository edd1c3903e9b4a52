package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casavoz/voice-pipeline/internal/config"
	"github.com/casavoz/voice-pipeline/internal/observability"
	"github.com/casavoz/voice-pipeline/internal/provider"
	"github.com/casavoz/voice-pipeline/internal/resilience"
	"github.com/casavoz/voice-pipeline/internal/server"
	"github.com/casavoz/voice-pipeline/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := observability.GetLogger()
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal().Err(err).Msg("invalid server configuration")
	}

	logger.Info().
		Str("port", cfg.Port).
		Int("sample_rate", cfg.SampleRate).
		Str("language", cfg.DefaultLanguage).
		Bool("mock_providers", cfg.MockProviders).
		Msg("starting voice pipeline server")

	router := provider.NewRouter(cfg, logger)
	registry := session.NewRegistry()
	wsServer := server.New(cfg, router, registry, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWebSocket)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"providers": func(ctx context.Context) (bool, error) {
			for name, state := range router.BreakerStates() {
				if state == resilience.StateOpen {
					return false, errors.New("circuit open for " + name)
				}
			}
			return true, nil
		},
	}))
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown did not complete cleanly")
	}
	logger.Info().Int("sessions", registry.Count()).Msg("server stopped")
}
