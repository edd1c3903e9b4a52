package tts

import (
	"context"
	"errors"
	"math"

	"github.com/casavoz/voice-pipeline/internal/audio"
)

// MockSynthesizer emits a short sine tone as raw PCM chunks. Used for local
// development and tests.
type MockSynthesizer struct {
	// SampleRate of the generated tone.
	SampleRate int

	// Fail makes every Synthesize call return an error, for exercising
	// fallback paths.
	Fail bool
}

// NewMockSynthesizer creates a mock emitting a 440 Hz tone.
func NewMockSynthesizer(sampleRate int) *MockSynthesizer {
	return &MockSynthesizer{SampleRate: sampleRate}
}

func (m *MockSynthesizer) Name() string { return "mock" }

func (m *MockSynthesizer) Synthesize(ctx context.Context, text, voice string) (<-chan []byte, error) {
	if m.Fail {
		return nil, errors.New("mock synthesizer failure")
	}

	// Quarter second of 440 Hz, split into two chunks so consumers see a
	// multi-chunk stream.
	totalSamples := m.SampleRate / 4
	samples := make([]float32, totalSamples)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(2*math.Pi*440*float64(i)/float64(m.SampleRate)))
	}
	pcm := audio.Float32ToPCM16(samples)

	audioChan := make(chan []byte, 2)
	half := len(pcm) / 2
	half -= half % audio.BytesPerSample
	audioChan <- pcm[:half]
	audioChan <- pcm[half:]
	close(audioChan)
	return audioChan, nil
}
