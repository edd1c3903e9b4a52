package client

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/audio"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

type fakeSink struct {
	writes [][]byte
}

func (s *fakeSink) Write(pcm []byte) (int, error) {
	s.writes = append(s.writes, pcm)
	return len(pcm), nil
}

func TestSchedulerBackToBackPlayback(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s := NewScheduler(&fakeSink{}, 24000, zerolog.Nop())
	s.clock = clock

	// One second of PCM at 24 kHz.
	second := make([]byte, 24000*audio.BytesPerSample)

	start1 := s.next(second)
	if !start1.Equal(clock.now) {
		t.Errorf("Expected first segment to start immediately, got %v", start1)
	}

	// The second segment arrives instantly but must wait for the first.
	start2 := s.next(second)
	if got := start2.Sub(start1); got != time.Second {
		t.Errorf("Expected second segment 1s after first, got %v", got)
	}

	// After a long gap the schedule snaps back to now.
	clock.now = clock.now.Add(10 * time.Second)
	start3 := s.next(second)
	if !start3.Equal(clock.now) {
		t.Errorf("Expected idle schedule to restart at now, got %v", start3)
	}
}

func TestSchedulerEnqueueDecodesWAV(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(sink, 24000, zerolog.Nop())
	s.clock = &fakeClock{now: time.Unix(1000, 0)}

	pcm := make([]byte, 480)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	encoded, err := audio.EncodeWAV(pcm, 24000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	if err := s.Enqueue(encoded); err != nil {
		t.Fatalf("Enqueue WAV failed: %v", err)
	}
	// Raw PCM frames pass straight through.
	if err := s.Enqueue(pcm); err != nil {
		t.Fatalf("Enqueue raw failed: %v", err)
	}
	s.Close()
	s.Run()

	if len(sink.writes) != 2 {
		t.Fatalf("Expected 2 playback writes, got %d", len(sink.writes))
	}
	if len(sink.writes[0]) != len(pcm) {
		t.Errorf("Expected container payload of %d bytes, got %d", len(pcm), len(sink.writes[0]))
	}
	if len(sink.writes[1]) != len(pcm) {
		t.Errorf("Expected raw payload of %d bytes, got %d", len(pcm), len(sink.writes[1]))
	}
}

func TestSchedulerWritesAheadOfPlayback(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	sink := &fakeSink{}
	s := NewScheduler(sink, 24000, zerolog.Nop())
	s.clock = clock

	// Two one second segments arrive at once. The first writes immediately;
	// the second is due 1s out, so Run sleeps only until it is maxLead ahead
	// of its start and hands it to the sink early.
	second := make([]byte, 24000*audio.BytesPerSample)
	if err := s.Enqueue(second); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := s.Enqueue(second); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	s.Close()
	s.Run()

	if len(sink.writes) != 2 {
		t.Fatalf("Expected 2 playback writes, got %d", len(sink.writes))
	}
	elapsed := clock.now.Sub(time.Unix(1000, 0))
	if elapsed != 500*time.Millisecond {
		t.Errorf("Expected 500ms of waiting before the second write, got %v", elapsed)
	}
}

func TestSchedulerDropsWhenQueueFull(t *testing.T) {
	s := NewScheduler(&fakeSink{}, 24000, zerolog.Nop())

	frame := make([]byte, 2)
	var dropped bool
	for i := 0; i < 100; i++ {
		if err := s.Enqueue(frame); err != nil {
			dropped = true
			break
		}
	}
	if !dropped {
		t.Error("Expected enqueue to fail once the queue is full")
	}
}

func TestRingReaderFillsSilence(t *testing.T) {
	ring := audio.NewRingBuffer(8)
	ring.Write([]byte{1, 2})
	r := &ringReader{ring: ring}

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("Expected full read of 4, got %d", n)
	}
	if buf[0] != 1 || buf[1] != 2 {
		t.Errorf("Expected buffered bytes first, got %v", buf)
	}
	if buf[2] != 0 || buf[3] != 0 {
		t.Errorf("Expected silence padding, got %v", buf)
	}
}
