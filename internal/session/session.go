package session

import (
	"sync"
	"time"

	"github.com/casavoz/voice-pipeline/internal/llm"
)

// Session holds the conversational state of one connected client. All
// accessors are safe for concurrent use; the websocket read loop and the
// pipeline goroutine both touch it.
type Session struct {
	ID          string
	ConnectedAt time.Time

	mu            sync.Mutex
	language      string
	llmProvider   string
	sampleRate    int
	history       []llm.Message
	historyWindow int
	isProcessing  bool
}

// New creates a session with the given defaults.
func New(id, language, llmProvider string, sampleRate, historyWindow int) *Session {
	return &Session{
		ID:            id,
		ConnectedAt:   time.Now(),
		language:      language,
		llmProvider:   llmProvider,
		sampleRate:    sampleRate,
		historyWindow: historyWindow,
	}
}

// TryBeginTurn attempts to claim the pipeline. It returns false when a turn
// is already in flight, in which case the caller must drop the input.
func (s *Session) TryBeginTurn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isProcessing {
		return false
	}
	s.isProcessing = true
	return true
}

// EndTurn releases the pipeline claim.
func (s *Session) EndTurn() {
	s.mu.Lock()
	s.isProcessing = false
	s.mu.Unlock()
}

// IsProcessing reports whether a turn is in flight.
func (s *Session) IsProcessing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isProcessing
}

// Language returns the active transcription language.
func (s *Session) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetLanguage changes the transcription language for subsequent turns.
func (s *Session) SetLanguage(language string) {
	s.mu.Lock()
	s.language = language
	s.mu.Unlock()
}

// Provider returns the selected LLM provider name.
func (s *Session) Provider() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.llmProvider
}

// SetProvider changes the preferred LLM provider for subsequent turns.
func (s *Session) SetProvider(name string) {
	s.mu.Lock()
	s.llmProvider = name
	s.mu.Unlock()
}

// SampleRate returns the negotiated input sample rate.
func (s *Session) SampleRate() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sampleRate
}

// SetSampleRate records the client's negotiated sample rate.
func (s *Session) SetSampleRate(rate int) {
	s.mu.Lock()
	s.sampleRate = rate
	s.mu.Unlock()
}

// History returns a copy of the conversation history.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, len(s.history))
	copy(out, s.history)
	return out
}

// HistoryLength returns the number of retained messages.
func (s *Session) HistoryLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// Append adds a message to the history, trimming the oldest messages once
// the window is exceeded.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, llm.Message{Role: role, Content: content})
	if len(s.history) > s.historyWindow {
		drop := len(s.history) - s.historyWindow
		s.history = append(s.history[:0], s.history[drop:]...)
	}
}

// ClearHistory discards the conversation history. Clearing an already empty
// history is a no-op.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	s.history = s.history[:0]
	s.mu.Unlock()
}
