package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"
)

// liveCallbackHandler implements the LiveMessageCallback interface by
// embedding the default handler and overriding only what we need.
type liveCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	onMessage func(*msginterfaces.MessageResponse)
	onClose   func()
	onError   func(*msginterfaces.ErrorResponse)
}

func (h *liveCallbackHandler) Message(msg *msginterfaces.MessageResponse) error {
	h.onMessage(msg)
	return nil
}

func (h *liveCallbackHandler) Close(cr *msginterfaces.CloseResponse) error {
	h.onClose()
	return nil
}

func (h *liveCallbackHandler) Error(er *msginterfaces.ErrorResponse) error {
	h.onError(er)
	return nil
}

// DeepgramTranscriber transcribes utterances over Deepgram's streaming API.
// Each Transcribe call opens a short-lived streaming connection, writes the
// full utterance, finishes the stream and collects the final results.
type DeepgramTranscriber struct {
	apiKey  string
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewDeepgramTranscriber creates a Deepgram transcriber for s16le mono PCM.
func NewDeepgramTranscriber(apiKey, model string, timeout time.Duration, logger zerolog.Logger) *DeepgramTranscriber {
	return &DeepgramTranscriber{
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		logger:  logger.With().Str("provider", "deepgram").Logger(),
	}
}

func (d *DeepgramTranscriber) Name() string { return "deepgram" }

// Transcribe streams one utterance and waits for the final transcript.
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, pcm []byte, language string, sampleRate int) (*Transcript, error) {
	if len(pcm) == 0 {
		return &Transcript{IsFinal: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	results := make(chan *Transcript, 16)
	done := make(chan struct{})
	errs := make(chan error, 1)

	callback := &liveCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		onMessage: func(msg *msginterfaces.MessageResponse) {
			if msg == nil || len(msg.Channel.Alternatives) == 0 {
				return
			}
			alt := msg.Channel.Alternatives[0]
			if !msg.IsFinal || alt.Transcript == "" {
				return
			}
			select {
			case results <- &Transcript{Text: alt.Transcript, Confidence: alt.Confidence, IsFinal: true}:
			default:
				d.logger.Warn().Msg("result channel full, dropping transcript segment")
			}
		},
		onClose: func() {
			close(done)
		},
		onError: func(er *msginterfaces.ErrorResponse) {
			select {
			case errs <- fmt.Errorf("deepgram stream error: %s", er.Description):
			default:
			}
		},
	}

	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:          d.model,
		Language:       language,
		Punctuate:      true,
		InterimResults: false,
		Encoding:       "linear16",
		Channels:       1,
		SampleRate:     sampleRate,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, d.apiKey, nil, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open deepgram stream: %w", err)
	}

	if _, err := client.Write(pcm); err != nil {
		client.Finish()
		return nil, fmt.Errorf("failed to send audio to deepgram: %w", err)
	}
	client.Finish()

	var parts []string
	var confidence float64
	var segments int
collect:
	for {
		select {
		case r := <-results:
			parts = append(parts, r.Text)
			confidence += r.Confidence
			segments++
		case err := <-errs:
			if len(parts) == 0 {
				return nil, err
			}
			d.logger.Warn().Err(err).Msg("stream error after partial transcript, keeping partial")
			break collect
		case <-done:
			break collect
		case <-ctx.Done():
			if len(parts) == 0 {
				return nil, fmt.Errorf("deepgram transcription timed out: %w", ctx.Err())
			}
			break collect
		}
	}

	// Drain results that raced with the close event.
	for {
		select {
		case r := <-results:
			parts = append(parts, r.Text)
			confidence += r.Confidence
			segments++
			continue
		default:
		}
		break
	}

	if segments > 0 {
		confidence /= float64(segments)
	}
	return &Transcript{
		Text:       strings.TrimSpace(strings.Join(parts, " ")),
		Confidence: confidence,
		IsFinal:    true,
	}, nil
}
