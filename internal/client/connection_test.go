package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/protocol"
	"github.com/casavoz/voice-pipeline/internal/resilience"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestConnectionHandshakeAndDispatch(t *testing.T) {
	var mu sync.Mutex
	var gotConfig *protocol.Envelope
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		mu.Unlock()

		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// First frame must be the audio config handshake.
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.Parse(data)
		if err != nil {
			t.Errorf("Parse failed: %v", err)
			return
		}
		mu.Lock()
		gotConfig = env
		mu.Unlock()

		conn.WriteJSON(protocol.Connection("session-1", []string{"mock"}, "mock"))
		conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})

		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	c := NewConnection(url, "secret", 24000, resilience.DefaultBackoffConfig(), zerolog.Nop())

	connected := make(chan *protocol.Envelope, 1)
	audioFrames := make(chan []byte, 1)
	c.On(protocol.TypeConnection, func(env *protocol.Envelope) {
		connected <- env
	})
	c.OnAudio(func(frame []byte) {
		audioFrames <- frame
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case env := <-connected:
		if env.ClientID != "session-1" {
			t.Errorf("Expected client ID session-1, got %s", env.ClientID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for connection message")
	}

	select {
	case frame := <-audioFrames:
		if len(frame) != 3 {
			t.Errorf("Expected 3 byte frame, got %d", len(frame))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for audio frame")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotConfig == nil || gotConfig.Type != protocol.TypeConfig {
		t.Fatalf("Expected config handshake, got %+v", gotConfig)
	}
	if gotConfig.SampleRate != 24000 {
		t.Errorf("Expected sample rate 24000, got %d", gotConfig.SampleRate)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer auth header, got %q", gotAuth)
	}
}

func TestSendWithoutConnection(t *testing.T) {
	c := NewConnection("ws://localhost:1", "", 24000, resilience.DefaultBackoffConfig(), zerolog.Nop())

	if err := c.SendAudio([]byte{1}); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := c.SendControl(protocol.Config(24000)); err != ErrNotConnected {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestConnectionStopsAfterBudget(t *testing.T) {
	backoff := resilience.BackoffConfig{
		Base:        time.Millisecond,
		Max:         2 * time.Millisecond,
		MaxAttempts: 2,
	}
	// Nothing listens on this address.
	c := NewConnection("ws://127.0.0.1:1", "", 24000, backoff, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Run to stop after the reconnect budget")
	}
}
