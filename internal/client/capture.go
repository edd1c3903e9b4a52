package client

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/audio"
)

// Capture records the default microphone, converts float32 samples to
// s16le PCM and segments the stream into utterances. Each completed
// utterance is handed to onUtterance as one frame.
type Capture struct {
	malgoCtx    *malgo.AllocatedContext
	device      *malgo.Device
	segmenter   *audio.Segmenter
	onUtterance func(pcm []byte)
	logger      zerolog.Logger
}

// NewCapture opens the default capture device at the given sample rate.
func NewCapture(sampleRate int, segCfg audio.SegmenterConfig, onUtterance func(pcm []byte), logger zerolog.Logger) (*Capture, error) {
	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to init audio context: %w", err)
	}

	c := &Capture{
		malgoCtx:    malgoCtx,
		segmenter:   audio.NewSegmenter(segCfg),
		onUtterance: onUtterance,
		logger:      logger.With().Str("component", "capture").Logger(),
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 100

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, in []byte, frameCount uint32) {
			c.onBlock(in)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, fmt.Errorf("failed to init capture device: %w", err)
	}
	c.device = device
	return c, nil
}

// onBlock runs on the device thread. It converts and segments one period of
// captured audio.
func (c *Capture) onBlock(in []byte) {
	samples := decodeF32(in)
	if len(samples) == 0 {
		return
	}
	pcm := audio.Float32ToPCM16(samples)
	if utterance := c.segmenter.Push(pcm); utterance != nil {
		c.logger.Debug().Int("bytes", len(utterance)).Msg("utterance captured")
		c.onUtterance(utterance)
	}
}

// Start begins capturing.
func (c *Capture) Start() error {
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}
	return nil
}

// Stop halts capture and flushes any in-progress utterance.
func (c *Capture) Stop() {
	_ = c.device.Stop()
	if utterance := c.segmenter.Flush(); utterance != nil {
		c.onUtterance(utterance)
	}
}

// Close releases the device and audio context.
func (c *Capture) Close() {
	c.device.Uninit()
	_ = c.malgoCtx.Uninit()
	c.malgoCtx.Free()
}

// decodeF32 reinterprets little-endian float32 bytes as samples.
func decodeF32(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
