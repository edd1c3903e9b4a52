package stt

import "context"

// Transcript is the outcome of transcribing one utterance.
type Transcript struct {
	// Text is the transcribed text, empty when no speech was detected.
	Text string

	// Confidence is the provider's confidence score (0.0 to 1.0) if available.
	Confidence float64

	// IsFinal marks final results; interim results carry partial text.
	IsFinal bool
}

// Transcriber converts one utterance of s16le mono PCM into text.
type Transcriber interface {
	// Name identifies the provider in chains and logs.
	Name() string

	// Transcribe submits a complete utterance and returns the final
	// transcript. sampleRate is the rate the PCM was captured at, as
	// negotiated in the session handshake. An empty-text transcript with
	// a nil error means the provider heard no speech.
	Transcribe(ctx context.Context, pcm []byte, language string, sampleRate int) (*Transcript, error)
}
