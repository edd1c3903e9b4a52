package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/protocol"
	"github.com/casavoz/voice-pipeline/internal/resilience"
)

// ErrNotConnected is returned when a send is attempted without a live
// connection.
var ErrNotConnected = errors.New("not connected")

// ConnectionError reports a transport-level failure against one endpoint.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Handler reacts to one control message type.
type Handler func(env *protocol.Envelope)

// Connection maintains the WebSocket link to the voice server. It dials,
// performs the audio handshake, dispatches incoming frames and reconnects
// with exponential backoff when the link drops. After the attempt budget is
// exhausted it stops silently.
type Connection struct {
	url        string
	authToken  string
	sampleRate int
	backoff    resilience.BackoffConfig

	mu   sync.Mutex
	conn *websocket.Conn

	handlers map[string]Handler
	onAudio  func(frame []byte)
	logger   zerolog.Logger
}

// NewConnection creates a connection manager. Handlers and the audio
// callback must be registered before Run.
func NewConnection(url, authToken string, sampleRate int, backoff resilience.BackoffConfig, logger zerolog.Logger) *Connection {
	return &Connection{
		url:        url,
		authToken:  authToken,
		sampleRate: sampleRate,
		backoff:    backoff,
		handlers:   make(map[string]Handler),
		logger:     logger.With().Str("component", "connection").Logger(),
	}
}

// On registers a handler for a control message type. Unhandled types are
// logged and dropped.
func (c *Connection) On(msgType string, h Handler) {
	c.handlers[msgType] = h
}

// OnAudio registers the binary frame callback.
func (c *Connection) OnAudio(fn func(frame []byte)) {
	c.onAudio = fn
}

// Run connects and serves the link until ctx is cancelled or the reconnect
// budget runs out. Each successful connection resets the attempt counter.
func (c *Connection) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.connect(ctx); err != nil {
			c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("connection failed")
		} else {
			attempt = 0
			c.readLoop(ctx)
			c.teardown()
			if ctx.Err() != nil {
				return
			}
			c.logger.Info().Msg("connection lost, reconnecting")
		}

		if c.backoff.Exhausted(attempt) {
			c.logger.Error().Int("attempts", attempt).Msg("reconnect budget exhausted, giving up")
			return
		}
		delay := c.backoff.Delay(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (c *Connection) connect(ctx context.Context) error {
	header := http.Header{}
	if c.authToken != "" {
		header.Set("Authorization", "Bearer "+c.authToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return &ConnectionError{URL: c.url, Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// Announce our capture format before any audio flows.
	if err := c.SendControl(protocol.Config(c.sampleRate)); err != nil {
		c.teardown()
		return err
	}

	c.logger.Info().Str("url", c.url).Msg("connected")
	return nil
}

func (c *Connection) readLoop(ctx context.Context) {
	conn := c.current()
	if conn == nil {
		return
	}

	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if c.onAudio != nil {
				c.onAudio(data)
			}

		case websocket.TextMessage:
			env, err := protocol.Parse(data)
			if err != nil {
				c.logger.Warn().Err(err).Msg("dropping malformed control frame")
				continue
			}
			if h, ok := c.handlers[env.Type]; ok {
				h(env)
			} else {
				c.logger.Debug().Str("type", env.Type).Msg("unhandled control message")
			}
		}
	}
}

// SendAudio sends one utterance as a binary frame.
func (c *Connection) SendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// SendControl sends one control message as a text frame.
func (c *Connection) SendControl(env *protocol.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(env)
}

// Close drops the current connection.
func (c *Connection) Close() {
	c.teardown()
}

func (c *Connection) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Connection) teardown() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}
