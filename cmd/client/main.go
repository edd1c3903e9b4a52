package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casavoz/voice-pipeline/internal/audio"
	"github.com/casavoz/voice-pipeline/internal/client"
	"github.com/casavoz/voice-pipeline/internal/config"
	"github.com/casavoz/voice-pipeline/internal/observability"
	"github.com/casavoz/voice-pipeline/internal/protocol"
	"github.com/casavoz/voice-pipeline/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.GetLogger().Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("server", cfg.ServerURL).
		Int("sample_rate", cfg.SampleRate).
		Msg("starting voice client")

	sink, err := client.NewSpeakerSink(cfg.SampleRate)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open speaker")
	}
	defer sink.Close()

	scheduler := client.NewScheduler(sink, cfg.SampleRate, logger)
	go scheduler.Run()
	defer scheduler.Close()

	backoff := resilience.BackoffConfig{
		Base:        time.Duration(cfg.ReconnectBaseDelay) * time.Millisecond,
		Max:         time.Duration(cfg.ReconnectMaxDelay) * time.Millisecond,
		MaxAttempts: cfg.ReconnectMaxAttempts,
	}
	conn := client.NewConnection(cfg.ServerURL, cfg.AuthToken, cfg.SampleRate, backoff, logger)

	conn.On(protocol.TypeConnection, func(env *protocol.Envelope) {
		logger.Info().
			Str("client_id", env.ClientID).
			Strs("providers", env.AvailableProviders).
			Str("default_provider", env.DefaultProvider).
			Msg("session established")
	})
	conn.On(protocol.TypeTranscription, func(env *protocol.Envelope) {
		if env.Warning != "" {
			logger.Info().Str("warning", env.Warning).Msg("no transcript")
			return
		}
		logger.Info().Str("text", env.Text).Str("language", env.Language).Msg("you said")
	})
	conn.On(protocol.TypeResponseChunk, func(env *protocol.Envelope) {
		logger.Debug().Int("sequence", env.Sequence).Str("text", env.Text).Msg("chunk")
	})
	conn.On(protocol.TypeResponseComplete, func(env *protocol.Envelope) {
		logger.Info().
			Str("text", env.Text).
			Str("response_type", env.ResponseType).
			Int("chunks", env.TotalChunks).
			Msg("assistant")
	})
	conn.On(protocol.TypeError, func(env *protocol.Envelope) {
		logger.Warn().Str("message", env.Message).Msg("server error")
	})
	conn.OnAudio(func(frame []byte) {
		if err := scheduler.Enqueue(frame); err != nil {
			logger.Warn().Err(err).Msg("playback frame dropped")
		}
	})

	segCfg := audio.SegmenterConfig{
		EnergyThreshold: cfg.VADEnergyThreshold,
		SilenceBlocks:   cfg.VADSilenceBlocks,
		MaxUtteranceLen: cfg.SampleRate * audio.BytesPerSample * 30,
	}
	capture, err := client.NewCapture(cfg.SampleRate, segCfg, func(pcm []byte) {
		if err := conn.SendAudio(pcm); err != nil {
			logger.Warn().Err(err).Msg("failed to send utterance")
		}
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open microphone")
	}
	defer capture.Close()

	if err := capture.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start capture")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		capture.Stop()
		cancel()
	}()

	conn.Run(ctx)
	conn.Close()
	logger.Info().Msg("client stopped")
}
