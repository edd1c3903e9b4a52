package audio

import (
	"encoding/binary"
	"testing"
)

func pcmBlock(amplitude int16, samples int) []byte {
	out := make([]byte, samples*BytesPerSample)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(amplitude))
	}
	return out
}

func TestSegmenterIgnoresLeadingSilence(t *testing.T) {
	sg := NewSegmenter(SegmenterConfig{EnergyThreshold: 500, SilenceBlocks: 2})

	for i := 0; i < 10; i++ {
		if got := sg.Push(pcmBlock(0, 100)); got != nil {
			t.Fatalf("Expected nil for silent block %d, got %d bytes", i, len(got))
		}
	}
	if sg.Speaking() {
		t.Error("Expected no open utterance after silence")
	}
}

func TestSegmenterClosesUtteranceAfterSilence(t *testing.T) {
	sg := NewSegmenter(SegmenterConfig{EnergyThreshold: 500, SilenceBlocks: 2})

	speech := pcmBlock(2000, 100)
	silence := pcmBlock(0, 100)

	if got := sg.Push(speech); got != nil {
		t.Fatal("Expected nil mid-utterance")
	}
	if !sg.Speaking() {
		t.Fatal("Expected open utterance after speech block")
	}
	if got := sg.Push(silence); got != nil {
		t.Fatal("Expected nil after first silent block")
	}
	utterance := sg.Push(silence)
	if utterance == nil {
		t.Fatal("Expected utterance after second silent block")
	}
	// One speech block plus two silent tail blocks.
	if len(utterance) != 3*len(speech) {
		t.Errorf("Expected %d bytes, got %d", 3*len(speech), len(utterance))
	}
	if sg.Speaking() {
		t.Error("Expected segmenter reset after utterance")
	}
}

func TestSegmenterMaxLengthFlush(t *testing.T) {
	blockBytes := 100 * BytesPerSample
	sg := NewSegmenter(SegmenterConfig{EnergyThreshold: 500, SilenceBlocks: 8, MaxUtteranceLen: 3 * blockBytes})

	speech := pcmBlock(2000, 100)
	if got := sg.Push(speech); got != nil {
		t.Fatal("Expected nil on first block")
	}
	if got := sg.Push(speech); got != nil {
		t.Fatal("Expected nil on second block")
	}
	utterance := sg.Push(speech)
	if utterance == nil {
		t.Fatal("Expected forced flush at max length")
	}
	if len(utterance) != 3*blockBytes {
		t.Errorf("Expected %d bytes, got %d", 3*blockBytes, len(utterance))
	}
}

func TestSegmenterFlush(t *testing.T) {
	sg := NewSegmenter(SegmenterConfig{EnergyThreshold: 500, SilenceBlocks: 8})

	if got := sg.Flush(); got != nil {
		t.Errorf("Expected nil flush with no speech, got %d bytes", len(got))
	}

	speech := pcmBlock(2000, 100)
	sg.Push(speech)
	utterance := sg.Flush()
	if utterance == nil {
		t.Fatal("Expected buffered speech from Flush")
	}
	if len(utterance) != len(speech) {
		t.Errorf("Expected %d bytes, got %d", len(speech), len(utterance))
	}
}
