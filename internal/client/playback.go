package client

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/audio"
)

// Sink consumes decoded PCM for immediate playback.
type Sink interface {
	Write(pcm []byte) (int, error)
}

// Clock abstracts time for the scheduler so ordering can be tested without
// sleeping.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Scheduler plays incoming audio frames back to back. Each frame is decoded
// (WAV container first, raw s16le fallback) and scheduled at
// max(now, end of previous frame), so frames that arrive faster than real
// time queue up instead of overlapping.
type Scheduler struct {
	sink       Sink
	clock      Clock
	sampleRate int
	maxLead    time.Duration
	queue      chan []byte
	scheduled  time.Time
	logger     zerolog.Logger
}

// NewScheduler creates a playback scheduler writing to sink.
func NewScheduler(sink Sink, sampleRate int, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		sink:       sink,
		clock:      realClock{},
		sampleRate: sampleRate,
		maxLead:    500 * time.Millisecond,
		queue:      make(chan []byte, 32),
		logger:     logger.With().Str("component", "playback").Logger(),
	}
}

// Enqueue decodes one received audio frame and queues it for playback.
// Frames that decode as WAV play at the container's sample rate metadata;
// anything else is treated as raw s16le at the negotiated rate.
func (s *Scheduler) Enqueue(frame []byte) error {
	pcm, _, err := audio.DecodeWAV(frame)
	if err != nil {
		// Not a container, assume raw PCM.
		pcm = frame
	}
	if len(pcm) == 0 {
		return nil
	}
	select {
	case s.queue <- pcm:
		return nil
	default:
		return fmt.Errorf("playback queue full, dropping %d bytes", len(pcm))
	}
}

// Run plays queued audio until the queue is closed. Segments are written
// ahead of their start time, up to maxLead, so the sink always has audio
// buffered across segment boundaries and never underruns between them.
func (s *Scheduler) Run() {
	for pcm := range s.queue {
		start := s.next(pcm)
		if lead := start.Sub(s.clock.Now()); lead > s.maxLead {
			s.clock.Sleep(lead - s.maxLead)
		}
		if _, err := s.sink.Write(pcm); err != nil {
			s.logger.Warn().Err(err).Msg("playback write failed")
		}
	}
}

// Close stops accepting frames and lets Run drain.
func (s *Scheduler) Close() {
	close(s.queue)
}

// next advances the schedule cursor: a segment starts at the later of now
// and the end of the previous segment.
func (s *Scheduler) next(pcm []byte) time.Time {
	duration := audio.Duration(len(pcm), s.sampleRate)
	start := s.clock.Now()
	if s.scheduled.After(start) {
		start = s.scheduled
	}
	s.scheduled = start.Add(duration)
	return start
}

// SpeakerSink plays PCM through the default output device. Incoming bytes
// land in a ring buffer that the device drains; gaps are filled with
// silence so the stream never underruns.
type SpeakerSink struct {
	ctx    *oto.Context
	player *oto.Player
	ring   *audio.RingBuffer
}

type ringReader struct {
	ring *audio.RingBuffer
}

func (r *ringReader) Read(p []byte) (int, error) {
	n := r.ring.Read(p)
	if n < len(p) {
		for i := n; i < len(p); i++ {
			p[i] = 0
		}
	}
	return len(p), nil
}

// NewSpeakerSink opens the default output device at the given sample rate.
func NewSpeakerSink(sampleRate int) (*SpeakerSink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	<-ready

	// Two seconds of buffered audio.
	ring := audio.NewRingBuffer(sampleRate * audio.BytesPerSample * 2)
	var reader io.Reader = &ringReader{ring: ring}
	player := ctx.NewPlayer(reader)
	player.Play()

	return &SpeakerSink{ctx: ctx, player: player, ring: ring}, nil
}

// Write buffers PCM for the device. Bytes beyond the ring capacity are
// dropped.
func (s *SpeakerSink) Write(pcm []byte) (int, error) {
	n := s.ring.Write(pcm)
	if n < len(pcm) {
		return n, fmt.Errorf("speaker buffer full, dropped %d bytes", len(pcm)-n)
	}
	return n, nil
}

// Close stops playback.
func (s *SpeakerSink) Close() error {
	s.ring.Clear()
	return s.player.Close()
}
