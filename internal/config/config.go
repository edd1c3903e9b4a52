package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultSystemPrompt is the assistant persona used when SYSTEM_PROMPT is
// unset. The deployment default is a Spanish-speaking property concierge.
const DefaultSystemPrompt = "Eres un asistente de voz para una inmobiliaria de lujo. " +
	"Responde de forma breve, calida y conversacional. Ayuda con propiedades, " +
	"visitas y preguntas generales. Si no sabes algo, ofrece poner al cliente " +
	"en contacto con un agente."

// Config holds all configuration for the voice pipeline.
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Audio negotiation
	SampleRate int `envconfig:"SAMPLE_RATE" default:"24000"` // Hz, mono s16le

	// Conversation defaults
	DefaultLanguage string `envconfig:"DEFAULT_LANGUAGE" default:"es"`
	SystemPrompt    string `envconfig:"SYSTEM_PROMPT" default:""`
	HistoryWindow   int    `envconfig:"HISTORY_WINDOW" default:"20"` // max retained messages
	GreetingEnabled bool   `envconfig:"GREETING_ENABLED" default:"false"`
	GreetingText    string `envconfig:"GREETING_TEXT" default:"Hola, bienvenido. En que puedo ayudarte hoy?"`

	// Deepgram STT
	DeepgramAPIKey string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel  string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`

	// Whisper-compatible STT fallback
	WhisperAPIKey  string `envconfig:"WHISPER_API_KEY" default:""`
	WhisperBaseURL string `envconfig:"WHISPER_BASE_URL" default:"https://api.openai.com/v1"`
	WhisperModel   string `envconfig:"WHISPER_MODEL" default:"whisper-1"`

	// LLM providers, tried in the order openai, groq, ollama
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" default:""`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	GroqAPIKey    string `envconfig:"GROQ_API_KEY" default:""`
	GroqBaseURL   string `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	GroqModel     string `envconfig:"GROQ_MODEL" default:"llama-3.1-8b-instant"`
	OllamaURL     string `envconfig:"OLLAMA_URL" default:""`
	OllamaModel   string `envconfig:"OLLAMA_MODEL" default:"llama3.2:latest"`

	// Cartesia TTS
	CartesiaAPIKey  string `envconfig:"CARTESIA_API_KEY" default:""`
	CartesiaModelID string `envconfig:"CARTESIA_MODEL_ID" default:"sonic"`
	CartesiaVoiceID string `envconfig:"CARTESIA_VOICE_ID" default:"sonic-spanish"`
	// Per-class voice overrides, e.g. "welcome:voice-a,luxury:voice-b".
	// Classes without an override use the provider's default voice.
	CartesiaVoices map[string]string `envconfig:"CARTESIA_VOICES" default:""`

	// ElevenLabs TTS fallback
	ElevenLabsAPIKey  string            `envconfig:"ELEVENLABS_API_KEY" default:""`
	ElevenLabsVoiceID string            `envconfig:"ELEVENLABS_VOICE_ID" default:"21m00Tcm4TlvDq8ikWAM"`
	ElevenLabsModelID string            `envconfig:"ELEVENLABS_MODEL_ID" default:"eleven_flash_v2_5"`
	ElevenLabsVoices  map[string]string `envconfig:"ELEVENLABS_VOICES" default:""`

	// Mock providers replace real backends for local development and tests.
	MockProviders bool `envconfig:"MOCK_PROVIDERS" default:"false"`

	// Pipeline stage timeouts in seconds
	STTTimeout int `envconfig:"STT_TIMEOUT" default:"15"`
	LLMTimeout int `envconfig:"LLM_TIMEOUT" default:"30"`
	TTSTimeout int `envconfig:"TTS_TIMEOUT" default:"20"`

	// Circuit breaker over provider calls
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // seconds

	// Client configuration
	ServerURL            string  `envconfig:"SERVER_URL" default:"ws://localhost:8080/ws"`
	AuthToken            string  `envconfig:"AUTH_TOKEN" default:""`
	ReconnectMaxAttempts int     `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"10"`
	ReconnectBaseDelay   int     `envconfig:"RECONNECT_BASE_DELAY" default:"1000"`  // milliseconds
	ReconnectMaxDelay    int     `envconfig:"RECONNECT_MAX_DELAY" default:"10000"`  // milliseconds
	VADEnergyThreshold   float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS threshold
	VADSilenceBlocks     int     `envconfig:"VAD_SILENCE_BLOCKS" default:"8"`       // blocks of silence ending an utterance

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load reads configuration from a .env file if present, then from the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("SAMPLE_RATE must be positive, got %d", cfg.SampleRate)
	}
	if cfg.HistoryWindow < 2 {
		return nil, fmt.Errorf("HISTORY_WINDOW must be at least 2, got %d", cfg.HistoryWindow)
	}

	return &cfg, nil
}

// ValidateServer checks requirements that only apply to the server binary.
// The client shares the loader but needs no provider credentials.
func (c *Config) ValidateServer() error {
	if !c.MockProviders && !c.HasAnyLLM() {
		return fmt.Errorf("no LLM provider configured: set OPENAI_API_KEY, GROQ_API_KEY or OLLAMA_URL")
	}
	return nil
}

// HasAnyLLM reports whether at least one LLM backend has credentials.
func (c *Config) HasAnyLLM() bool {
	return c.OpenAIAPIKey != "" || c.GroqAPIKey != "" || c.OllamaURL != ""
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
