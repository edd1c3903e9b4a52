package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ElevenLabsSynthesizer streams speech from the ElevenLabs WebSocket API.
// Audio arrives as base64-encoded raw PCM chunks and is forwarded as raw
// s16le bytes, exercising the receiver's raw-PCM fallback path.
type ElevenLabsSynthesizer struct {
	apiKey     string
	modelID    string
	sampleRate int
	logger     zerolog.Logger
}

// NewElevenLabsSynthesizer creates an ElevenLabs streaming TTS client.
func NewElevenLabsSynthesizer(apiKey, modelID string, sampleRate int, logger zerolog.Logger) *ElevenLabsSynthesizer {
	return &ElevenLabsSynthesizer{
		apiKey:     apiKey,
		modelID:    modelID,
		sampleRate: sampleRate,
		logger:     logger.With().Str("provider", "elevenlabs").Logger(),
	}
}

func (e *ElevenLabsSynthesizer) Name() string { return "elevenlabs" }

// Synthesize opens a streaming connection, sends the text and forwards
// decoded audio chunks until the provider marks the stream final.
func (e *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voice string) (<-chan []byte, error) {
	url := fmt.Sprintf(
		"wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=pcm_%d",
		voice, e.modelID, e.sampleRate,
	)

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elevenlabs: %w", err)
	}

	if err := conn.WriteJSON(map[string]any{"text": text, "try_trigger_generation": true}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send text: %w", err)
	}
	// Empty text signals end of input.
	if err := conn.WriteJSON(map[string]string{"text": ""}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to finish input: %w", err)
	}

	audioChan := make(chan []byte, 10)
	go func() {
		defer func() {
			conn.Close()
			close(audioChan)
		}()

		// Close the socket when the caller gives up so ReadMessage unblocks.
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					e.logger.Warn().Err(err).Msg("stream read ended")
				}
				return
			}

			var response struct {
				Audio   string `json:"audio"`
				IsFinal bool   `json:"isFinal"`
			}
			if err := json.Unmarshal(message, &response); err != nil {
				e.logger.Warn().Err(err).Msg("dropping malformed stream message")
				continue
			}

			if response.Audio != "" {
				decoded, err := base64.StdEncoding.DecodeString(response.Audio)
				if err != nil {
					e.logger.Warn().Err(err).Msg("dropping undecodable audio chunk")
					continue
				}
				select {
				case audioChan <- decoded:
				case <-ctx.Done():
					return
				}
			}
			if response.IsFinal {
				return
			}
		}
	}()

	return audioChan, nil
}
