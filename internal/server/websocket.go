package server

import (
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/config"
	"github.com/casavoz/voice-pipeline/internal/observability"
	"github.com/casavoz/voice-pipeline/internal/protocol"
	"github.com/casavoz/voice-pipeline/internal/provider"
	"github.com/casavoz/voice-pipeline/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server accepts voice sessions over WebSocket and runs a pipeline
// orchestrator per connection.
type Server struct {
	cfg      *config.Config
	router   *provider.Router
	registry *session.Registry
	logger   zerolog.Logger
}

// New creates a voice WebSocket server.
func New(cfg *config.Config, router *provider.Router, registry *session.Registry, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		router:   router,
		registry: registry,
		logger:   logger.With().Str("component", "ws_server").Logger(),
	}
}

// wsEmitter serializes writes to one connection. gorilla/websocket allows a
// single concurrent writer, and the read loop and pipeline goroutine both
// send frames.
type wsEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (e *wsEmitter) SendControl(env *protocol.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteJSON(env)
}

func (e *wsEmitter) SendAudio(data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteMessage(websocket.BinaryMessage, data)
}

// HandleWebSocket upgrades the connection and runs the session until the
// client disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AuthToken != "" {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("Authorization")
		}
		if token != s.cfg.AuthToken && token != "Bearer "+s.cfg.AuthToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	sess := session.New(sessionID, s.cfg.DefaultLanguage, s.router.DefaultLLM(), s.cfg.SampleRate, s.cfg.HistoryWindow)
	s.registry.Add(sess)
	metrics := observability.NewSessionMetrics(sessionID)
	defer func() {
		s.registry.Remove(sessionID)
		metrics.RecordSessionEnd()
	}()

	logger := s.logger.With().Str("session_id", sessionID).Logger()
	logger.Info().Str("remote", r.RemoteAddr).Msg("session connected")

	emitter := &wsEmitter{conn: conn}
	orch := session.NewOrchestrator(sess, s.router, s.cfg, emitter, metrics, logger)

	greeting := protocol.Connection(sessionID, s.router.LLMProviders(), s.router.DefaultLLM())
	if err := emitter.SendControl(greeting); err != nil {
		logger.Error().Err(err).Msg("failed to send connection greeting")
		return
	}
	orch.Greet()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("connection closed unexpectedly")
			} else {
				logger.Info().Msg("session disconnected")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			orch.HandleAudio(data)

		case websocket.TextMessage:
			env, err := protocol.Parse(data)
			if err != nil {
				logger.Warn().Err(err).Msg("rejecting control frame")
				metrics.RecordError("protocol", "ws_server")
				if sendErr := emitter.SendControl(protocol.Error(err.Error())); sendErr != nil {
					logger.Warn().Err(sendErr).Msg("failed to report protocol error")
				}
				continue
			}
			orch.HandleControl(env)
		}
	}
}
