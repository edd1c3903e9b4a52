package stt

import (
	"context"

	"github.com/casavoz/voice-pipeline/internal/audio"
)

// MockTranscriber returns a canned transcript for any non-silent utterance.
// Used for local development without STT credentials.
type MockTranscriber struct {
	// Text is returned for non-silent audio. Silent audio yields an
	// empty transcript.
	Text string

	// SilenceThreshold is the RMS below which audio counts as silence.
	SilenceThreshold float64
}

// NewMockTranscriber creates a mock with sensible defaults.
func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{Text: "hola", SilenceThreshold: 50.0}
}

func (m *MockTranscriber) Name() string { return "mock" }

func (m *MockTranscriber) Transcribe(ctx context.Context, pcm []byte, language string, sampleRate int) (*Transcript, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if audio.RMS(audio.Samples(pcm)) <= m.SilenceThreshold {
		return &Transcript{IsFinal: true}, nil
	}
	return &Transcript{Text: m.Text, Confidence: 1.0, IsFinal: true}, nil
}
