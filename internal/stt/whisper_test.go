package stt

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/audio"
)

func tonePCM(samples int) []byte {
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(1500)))
	}
	return out
}

func TestWhisperTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("Expected /audio/transcriptions, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm failed: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("Expected model whisper-1, got %s", got)
		}
		if got := r.FormValue("language"); got != "es" {
			t.Errorf("Expected language es, got %s", got)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile failed: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			t.Errorf("reading upload failed: %v", err)
		}
		if !bytes.HasPrefix(data, []byte("RIFF")) {
			t.Error("Expected WAV upload")
		}
		if _, rate, err := audio.DecodeWAV(data); err != nil {
			t.Errorf("Expected decodable WAV upload, got %v", err)
		} else if rate != 16000 {
			t.Errorf("Expected WAV at the session rate 16000, got %d", rate)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"  hola mundo "}`))
	}))
	defer server.Close()

	tr := NewWhisperTranscriber("key", server.URL, "whisper-1", 5*time.Second, zerolog.Nop())
	transcript, err := tr.Transcribe(context.Background(), tonePCM(240), "es", 16000)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if transcript.Text != "hola mundo" {
		t.Errorf("Expected trimmed transcript, got %q", transcript.Text)
	}
	if !transcript.IsFinal {
		t.Error("Expected final transcript")
	}
}

func TestWhisperEmptyUtterance(t *testing.T) {
	tr := NewWhisperTranscriber("key", "http://unused", "whisper-1", time.Second, zerolog.Nop())
	transcript, err := tr.Transcribe(context.Background(), nil, "es", 24000)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if transcript.Text != "" {
		t.Errorf("Expected empty transcript, got %q", transcript.Text)
	}
}

func TestWhisperErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer server.Close()

	tr := NewWhisperTranscriber("key", server.URL, "whisper-1", time.Second, zerolog.Nop())
	if _, err := tr.Transcribe(context.Background(), tonePCM(240), "es", 24000); err == nil {
		t.Error("Expected error for non-200 status")
	}
}

func TestMockTranscriberSilence(t *testing.T) {
	tr := NewMockTranscriber()

	transcript, err := tr.Transcribe(context.Background(), make([]byte, 480), "es", 24000)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if transcript.Text != "" {
		t.Errorf("Expected empty transcript for silence, got %q", transcript.Text)
	}

	transcript, err = tr.Transcribe(context.Background(), tonePCM(240), "es", 24000)
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if transcript.Text != "hola" {
		t.Errorf("Expected canned transcript, got %q", transcript.Text)
	}
}
