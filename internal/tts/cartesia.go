package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// CartesiaSynthesizer synthesizes speech through Cartesia's HTTP API and
// emits one WAV container blob per request.
type CartesiaSynthesizer struct {
	apiKey     string
	modelID    string
	apiURL     string
	sampleRate int
	httpClient *http.Client
	logger     zerolog.Logger
}

type cartesiaRequest struct {
	Text         string `json:"text"`
	VoiceID      string `json:"voice_id"`
	ModelID      string `json:"model_id,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
	SampleRate   int    `json:"sample_rate,omitempty"`
}

// NewCartesiaSynthesizer creates a Cartesia TTS client.
func NewCartesiaSynthesizer(apiKey, modelID string, sampleRate int, logger zerolog.Logger) *CartesiaSynthesizer {
	return &CartesiaSynthesizer{
		apiKey:     apiKey,
		modelID:    modelID,
		apiURL:     "https://api.cartesia.ai/v1/tts",
		sampleRate: sampleRate,
		httpClient: &http.Client{},
		logger:     logger.With().Str("provider", "cartesia").Logger(),
	}
}

func (c *CartesiaSynthesizer) Name() string { return "cartesia" }

// Synthesize requests WAV output and delivers it as a single chunk.
func (c *CartesiaSynthesizer) Synthesize(ctx context.Context, text, voice string) (<-chan []byte, error) {
	reqBody := cartesiaRequest{
		Text:         text,
		VoiceID:      voice,
		ModelID:      c.modelID,
		OutputFormat: "wav",
		SampleRate:   c.sampleRate,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("cartesia API returned status %d", resp.StatusCode)
	}

	audioChan := make(chan []byte, 1)
	go func() {
		defer func() {
			resp.Body.Close()
			close(audioChan)
		}()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			c.logger.Error().Err(err).Msg("failed to read synthesis response")
			return
		}
		if len(data) == 0 {
			c.logger.Warn().Msg("cartesia returned empty audio")
			return
		}
		select {
		case audioChan <- data:
		case <-ctx.Done():
		}
	}()

	return audioChan, nil
}
