package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/audio"
)

// WhisperTranscriber sends utterances to an OpenAI-compatible
// /audio/transcriptions endpoint as WAV uploads.
type WhisperTranscriber struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewWhisperTranscriber creates a Whisper-compatible transcriber.
func NewWhisperTranscriber(apiKey, baseURL, model string, timeout time.Duration, logger zerolog.Logger) *WhisperTranscriber {
	return &WhisperTranscriber{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("provider", "whisper").Logger(),
	}
}

func (w *WhisperTranscriber) Name() string { return "whisper" }

// Transcribe uploads the utterance, wrapped in a WAV container at the
// negotiated sample rate, and returns the transcript text.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, pcm []byte, language string, sampleRate int) (*Transcript, error) {
	if len(pcm) == 0 {
		return &Transcript{IsFinal: true}, nil
	}

	wavData, err := audio.EncodeWAV(pcm, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode utterance: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if err := mw.WriteField("model", w.model); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("transcription API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode transcription response: %w", err)
	}

	return &Transcript{Text: strings.TrimSpace(decoded.Text), IsFinal: true}, nil
}
