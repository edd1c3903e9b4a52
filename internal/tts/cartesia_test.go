package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestCartesiaSynthesize(t *testing.T) {
	wav := []byte("RIFFfake-wav-payload")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("Expected api key header, got %q", got)
		}
		var req cartesiaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Decode failed: %v", err)
		}
		if req.Text != "hola" {
			t.Errorf("Expected text hola, got %q", req.Text)
		}
		if req.VoiceID != "voz-1" {
			t.Errorf("Expected voice voz-1, got %q", req.VoiceID)
		}
		if req.OutputFormat != "wav" {
			t.Errorf("Expected wav output, got %q", req.OutputFormat)
		}
		w.Write(wav)
	}))
	defer server.Close()

	s := NewCartesiaSynthesizer("test-key", "sonic", 24000, zerolog.Nop())
	s.apiURL = server.URL

	stream, err := s.Synthesize(context.Background(), "hola", "voz-1")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	blob, ok := <-stream
	if !ok {
		t.Fatal("Expected one audio blob")
	}
	if string(blob) != string(wav) {
		t.Errorf("Expected WAV payload back, got %d bytes", len(blob))
	}
	if _, ok := <-stream; ok {
		t.Error("Expected stream closed after single blob")
	}
}

func TestCartesiaErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad voice", http.StatusBadRequest)
	}))
	defer server.Close()

	s := NewCartesiaSynthesizer("test-key", "sonic", 24000, zerolog.Nop())
	s.apiURL = server.URL

	if _, err := s.Synthesize(context.Background(), "hola", "voz-1"); err == nil {
		t.Error("Expected error for non-200 status")
	}
}

func TestMockSynthesizerEmitsRawPCM(t *testing.T) {
	s := NewMockSynthesizer(24000)
	stream, err := s.Synthesize(context.Background(), "hola", "voz")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	total := 0
	chunks := 0
	for chunk := range stream {
		if len(chunk)%2 != 0 {
			t.Errorf("Expected whole samples, got %d bytes", len(chunk))
		}
		total += len(chunk)
		chunks++
	}
	if chunks != 2 {
		t.Errorf("Expected 2 chunks, got %d", chunks)
	}
	// A quarter second of 16-bit mono audio.
	if total != 24000/4*2 {
		t.Errorf("Expected %d bytes, got %d", 24000/4*2, total)
	}
}

func TestMockSynthesizerFailMode(t *testing.T) {
	s := &MockSynthesizer{SampleRate: 24000, Fail: true}
	if _, err := s.Synthesize(context.Background(), "hola", "voz"); err == nil {
		t.Error("Expected error in fail mode")
	}
}
