package audio

// SegmenterConfig tunes energy-based utterance segmentation.
type SegmenterConfig struct {
	EnergyThreshold float64 // RMS threshold separating speech from silence
	SilenceBlocks   int     // consecutive silent blocks that end an utterance
	MaxUtteranceLen int     // hard cap on buffered bytes per utterance
}

// DefaultSegmenterConfig returns segmentation defaults for 24 kHz mono
// capture with ~85 ms blocks.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		EnergyThreshold: 500.0,
		SilenceBlocks:   8,
		MaxUtteranceLen: 24000 * BytesPerSample * 30, // 30 seconds
	}
}

// Segmenter accumulates capture blocks into utterances. The server treats
// each binary frame as one complete utterance, so the capture side decides
// where utterances end: a run of silent blocks after speech closes one.
type Segmenter struct {
	cfg      SegmenterConfig
	buf      []byte
	speaking bool
	silent   int
}

// NewSegmenter creates a segmenter. A zero-valued config is replaced with
// defaults.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	if cfg.EnergyThreshold <= 0 {
		cfg.EnergyThreshold = DefaultSegmenterConfig().EnergyThreshold
	}
	if cfg.SilenceBlocks <= 0 {
		cfg.SilenceBlocks = DefaultSegmenterConfig().SilenceBlocks
	}
	if cfg.MaxUtteranceLen <= 0 {
		cfg.MaxUtteranceLen = DefaultSegmenterConfig().MaxUtteranceLen
	}
	return &Segmenter{cfg: cfg}
}

// Push feeds one converted PCM block. When the block completes an
// utterance, the accumulated PCM is returned and internal state resets;
// otherwise the return is nil.
func (sg *Segmenter) Push(block []byte) []byte {
	hasSpeech := RMS(Samples(block)) > sg.cfg.EnergyThreshold

	if hasSpeech {
		sg.silent = 0
		sg.speaking = true
		sg.buf = append(sg.buf, block...)
		if len(sg.buf) >= sg.cfg.MaxUtteranceLen {
			return sg.flush()
		}
		return nil
	}

	if !sg.speaking {
		// Leading silence is not buffered.
		return nil
	}

	sg.buf = append(sg.buf, block...)
	sg.silent++
	if sg.silent >= sg.cfg.SilenceBlocks {
		return sg.flush()
	}
	return nil
}

// Flush returns any buffered utterance, complete or not. Used when capture
// stops mid-speech.
func (sg *Segmenter) Flush() []byte {
	if !sg.speaking || len(sg.buf) == 0 {
		sg.Reset()
		return nil
	}
	return sg.flush()
}

// Speaking reports whether an utterance is currently open.
func (sg *Segmenter) Speaking() bool { return sg.speaking }

// Reset discards buffered audio and segmentation state.
func (sg *Segmenter) Reset() {
	sg.buf = nil
	sg.speaking = false
	sg.silent = 0
}

func (sg *Segmenter) flush() []byte {
	out := sg.buf
	sg.Reset()
	return out
}
