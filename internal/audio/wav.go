package audio

import (
	"bytes"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV wraps s16le mono PCM in a WAV container so the receiver can
// recover the sample rate from the stream itself.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("empty PCM data")
	}
	samples := Samples(pcm)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(samples)),
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize WAV container: %w", err)
	}
	return ws.buf, nil
}

// DecodeWAV parses a WAV container and returns the s16le PCM payload with
// its sample rate. Returns an error for anything that is not a valid WAV
// stream, letting callers fall back to a raw-PCM interpretation.
func DecodeWAV(data []byte) ([]byte, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("not a WAV stream")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV data: %w", err)
	}
	pcm := make([]byte, len(buf.Data)*BytesPerSample)
	for i, s := range buf.Data {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	rate := int(dec.SampleRate)
	if buf.Format != nil && buf.Format.SampleRate > 0 {
		rate = buf.Format.SampleRate
	}
	return pcm, rate, nil
}

// memWriteSeeker is an in-memory io.WriteSeeker. The WAV encoder seeks back
// to patch chunk sizes, which bytes.Buffer cannot do.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		grown := make([]byte, need)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if next < 0 {
		return 0, fmt.Errorf("negative seek position %d", next)
	}
	m.pos = int(next)
	return next, nil
}
