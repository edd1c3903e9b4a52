package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type discriminators for the text-frame protocol.
// Binary frames carry raw audio and never use an envelope.
const (
	TypeConnection       = "connection"
	TypeConfig           = "config"
	TypeSetLanguage      = "setLanguage"
	TypeLanguageSet      = "languageSet"
	TypeClearHistory     = "clearHistory"
	TypeHistoryCleared   = "historyCleared"
	TypeSetProvider      = "setProvider"
	TypeProviderSet      = "providerSet"
	TypeGetStatus        = "getStatus"
	TypeStatus           = "status"
	TypeTranscription    = "transcription"
	TypeResponseChunk    = "response_chunk"
	TypeResponseComplete = "response_complete"
	TypeError            = "error"
)

// Envelope is the common shape of every control message. Payload fields of
// all variants are flattened into it; unknown fields are ignored on decode.
type Envelope struct {
	Type string `json:"type"`

	// connection
	ClientID           string   `json:"clientId,omitempty"`
	AvailableProviders []string `json:"availableProviders,omitempty"`
	DefaultProvider    string   `json:"defaultProvider,omitempty"`

	// config handshake
	SampleRate int `json:"sampleRate,omitempty"`

	// setLanguage / languageSet / transcription / status
	Language string `json:"language,omitempty"`

	// setProvider / providerSet
	Provider string `json:"provider,omitempty"`

	// status
	LLMProvider   string `json:"llmProvider,omitempty"`
	IsProcessing  *bool  `json:"isProcessing,omitempty"`
	HistoryLength *int   `json:"historyLength,omitempty"`

	// transcription / response_chunk / response_complete
	Text     string `json:"text"`
	Warning  string `json:"warning,omitempty"`
	Sequence int    `json:"sequence,omitempty"`

	// response_complete
	ResponseType string `json:"responseType,omitempty"`
	TotalChunks  int    `json:"totalChunks,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// ProtocolError reports a malformed or unexpected control message. It is
// logged and reported to the peer; it never terminates the connection.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Parse decodes a text frame into an Envelope.
func Parse(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &ProtocolError{Reason: "malformed JSON", Err: err}
	}
	if env.Type == "" {
		return nil, &ProtocolError{Reason: "missing type field"}
	}
	return &env, nil
}

// Connection builds the server greeting sent right after the socket opens.
func Connection(clientID string, providers []string, defaultProvider string) *Envelope {
	return &Envelope{
		Type:               TypeConnection,
		ClientID:           clientID,
		AvailableProviders: providers,
		DefaultProvider:    defaultProvider,
	}
}

// Config builds the client handshake carrying the negotiated sample rate.
func Config(sampleRate int) *Envelope {
	return &Envelope{Type: TypeConfig, SampleRate: sampleRate}
}

// Transcription builds a transcript notification. warning is empty for
// normal turns and set when no speech was detected.
func Transcription(text, language, warning string) *Envelope {
	return &Envelope{Type: TypeTranscription, Text: text, Language: language, Warning: warning}
}

// ResponseChunk builds one streamed LLM token message. Sequence numbers
// start at 1 and increase strictly within a turn.
func ResponseChunk(text string, sequence int) *Envelope {
	return &Envelope{Type: TypeResponseChunk, Text: text, Sequence: sequence}
}

// ResponseComplete closes out a turn with the concatenated response text.
func ResponseComplete(text, responseType string, totalChunks int) *Envelope {
	return &Envelope{Type: TypeResponseComplete, Text: text, ResponseType: responseType, TotalChunks: totalChunks}
}

// Status builds the reply to getStatus.
func Status(clientID, language, llmProvider string, isProcessing bool, historyLength int) *Envelope {
	return &Envelope{
		Type:          TypeStatus,
		ClientID:      clientID,
		Language:      language,
		LLMProvider:   llmProvider,
		IsProcessing:  &isProcessing,
		HistoryLength: &historyLength,
	}
}

// Error builds an error notification for the peer.
func Error(message string) *Envelope {
	return &Envelope{Type: TypeError, Message: message}
}
