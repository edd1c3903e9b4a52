package tts

import "context"

// Synthesizer converts text to speech audio. Implementations emit either a
// single self-describing container blob (WAV) or a stream of raw s16le PCM
// chunks; receivers attempt container decode first and fall back to raw PCM.
type Synthesizer interface {
	// Name identifies the provider in chains and logs.
	Name() string

	// Synthesize starts synthesis and returns a channel of audio chunks.
	// The channel closes when synthesis ends; a mid-stream failure closes
	// the channel early after logging.
	Synthesize(ctx context.Context, text, voice string) (<-chan []byte, error)
}
