package config

import (
	"os"
	"testing"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for k, v := range env {
		old, had := os.LookupEnv(k)
		os.Setenv(k, v)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{"MOCK_PROVIDERS": "true"})

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Port)
	}
	if cfg.SampleRate != 24000 {
		t.Errorf("Expected sample rate 24000, got %d", cfg.SampleRate)
	}
	if cfg.DefaultLanguage != "es" {
		t.Errorf("Expected default language es, got %s", cfg.DefaultLanguage)
	}
	if cfg.HistoryWindow != 20 {
		t.Errorf("Expected history window 20, got %d", cfg.HistoryWindow)
	}
	if cfg.SystemPrompt != DefaultSystemPrompt {
		t.Error("Expected default system prompt")
	}
	if cfg.ReconnectMaxAttempts != 10 {
		t.Errorf("Expected 10 reconnect attempts, got %d", cfg.ReconnectMaxAttempts)
	}
	if cfg.ReconnectBaseDelay != 1000 || cfg.ReconnectMaxDelay != 10000 {
		t.Errorf("Expected 1000/10000 ms reconnect delays, got %d/%d", cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay)
	}
}

func TestLoadWithoutCredentialsStillSucceeds(t *testing.T) {
	// The client binary shares the loader and has no provider credentials.
	withEnv(t, map[string]string{
		"MOCK_PROVIDERS": "false",
		"OPENAI_API_KEY": "",
		"GROQ_API_KEY":   "",
		"OLLAMA_URL":     "",
	})

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected load to succeed without credentials, got %v", err)
	}
	if err := cfg.ValidateServer(); err == nil {
		t.Error("Expected server validation to fail without an LLM provider")
	}
}

func TestValidateServer(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"no providers", Config{}, true},
		{"mock providers", Config{MockProviders: true}, false},
		{"openai key", Config{OpenAIAPIKey: "sk-test"}, false},
		{"ollama url", Config{OllamaURL: "http://localhost:11434"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.ValidateServer()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestLoadParsesVoiceOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"MOCK_PROVIDERS":  "true",
		"CARTESIA_VOICES": "welcome:voz-a,luxury:voz-b",
	})

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := cfg.CartesiaVoices["welcome"]; got != "voz-a" {
		t.Errorf("Expected welcome voice voz-a, got %q", got)
	}
	if got := cfg.CartesiaVoices["luxury"]; got != "voz-b" {
		t.Errorf("Expected luxury voice voz-b, got %q", got)
	}
}

func TestLoadRejectsBadHistoryWindow(t *testing.T) {
	withEnv(t, map[string]string{
		"MOCK_PROVIDERS": "true",
		"HISTORY_WINDOW": "1",
	})

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for history window below 2")
	}
}

func TestHasAnyLLM(t *testing.T) {
	cfg := &Config{}
	if cfg.HasAnyLLM() {
		t.Error("Expected false with no credentials")
	}
	cfg.OllamaURL = "http://localhost:11434"
	if !cfg.HasAnyLLM() {
		t.Error("Expected true with Ollama configured")
	}
}
