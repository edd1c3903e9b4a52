package provider

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/config"
	"github.com/casavoz/voice-pipeline/internal/llm"
	"github.com/casavoz/voice-pipeline/internal/observability"
	"github.com/casavoz/voice-pipeline/internal/resilience"
	"github.com/casavoz/voice-pipeline/internal/stt"
	"github.com/casavoz/voice-pipeline/internal/tts"
)

// Router owns the provider chains for each pipeline capability and applies
// the fallback policy: candidates are tried in order, a failed candidate is
// skipped, and a single ProviderError is returned when the chain is
// exhausted. Every candidate call runs under a per-provider circuit
// breaker, so an open breaker counts as a failed candidate without a
// network round trip.
type Router struct {
	transcribers []stt.Transcriber
	generators   []llm.Generator
	synthesizers []tts.Synthesizer

	breakers map[string]*resilience.CircuitBreaker
	voices   map[string]map[string]string

	cfg    *config.Config
	logger zerolog.Logger
}

// NewRouter builds provider chains from the credentials present in cfg.
// With MockProviders set, every chain holds a single mock.
func NewRouter(cfg *config.Config, logger zerolog.Logger) *Router {
	r := &Router{
		breakers: make(map[string]*resilience.CircuitBreaker),
		cfg:      cfg,
		logger:   logger.With().Str("component", "provider_router").Logger(),
	}

	if cfg.MockProviders {
		r.transcribers = []stt.Transcriber{stt.NewMockTranscriber()}
		r.generators = []llm.Generator{llm.NewMockGenerator()}
		r.synthesizers = []tts.Synthesizer{tts.NewMockSynthesizer(cfg.SampleRate)}
	} else {
		if cfg.DeepgramAPIKey != "" {
			r.transcribers = append(r.transcribers, stt.NewDeepgramTranscriber(
				cfg.DeepgramAPIKey, cfg.DeepgramModel,
				time.Duration(cfg.STTTimeout)*time.Second, logger))
		}
		if cfg.WhisperAPIKey != "" {
			r.transcribers = append(r.transcribers, stt.NewWhisperTranscriber(
				cfg.WhisperAPIKey, cfg.WhisperBaseURL, cfg.WhisperModel,
				time.Duration(cfg.STTTimeout)*time.Second, logger))
		}

		if cfg.OpenAIAPIKey != "" {
			r.generators = append(r.generators, llm.NewOpenAIGenerator(
				"openai", cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, logger))
		}
		if cfg.GroqAPIKey != "" {
			r.generators = append(r.generators, llm.NewOpenAIGenerator(
				"groq", cfg.GroqAPIKey, cfg.GroqBaseURL, cfg.GroqModel, logger))
		}
		if cfg.OllamaURL != "" {
			r.generators = append(r.generators, llm.NewOllamaGenerator(cfg.OllamaURL, cfg.OllamaModel))
		}

		if cfg.CartesiaAPIKey != "" {
			r.synthesizers = append(r.synthesizers, tts.NewCartesiaSynthesizer(
				cfg.CartesiaAPIKey, cfg.CartesiaModelID, cfg.SampleRate, logger))
		}
		if cfg.ElevenLabsAPIKey != "" {
			r.synthesizers = append(r.synthesizers, tts.NewElevenLabsSynthesizer(
				cfg.ElevenLabsAPIKey, cfg.ElevenLabsModelID, cfg.SampleRate, logger))
		}
	}

	for _, t := range r.transcribers {
		r.addBreaker(t.Name())
	}
	for _, g := range r.generators {
		r.addBreaker(g.Name())
	}
	for _, s := range r.synthesizers {
		r.addBreaker(s.Name())
	}

	r.voices = map[string]map[string]string{
		"cartesia":   {"default": cfg.CartesiaVoiceID},
		"elevenlabs": {"default": cfg.ElevenLabsVoiceID},
	}
	for class, voiceID := range cfg.CartesiaVoices {
		r.SetVoice("cartesia", class, voiceID)
	}
	for class, voiceID := range cfg.ElevenLabsVoices {
		r.SetVoice("elevenlabs", class, voiceID)
	}

	return r
}

func (r *Router) addBreaker(name string) {
	if _, ok := r.breakers[name]; ok {
		return
	}
	r.breakers[name] = resilience.NewCircuitBreaker(name,
		r.cfg.CircuitBreakerMaxFailures,
		time.Duration(r.cfg.CircuitBreakerResetTimeout)*time.Second)
}

func (r *Router) call(name string, fn func() error) error {
	cb := r.breakers[name]
	if cb == nil {
		return fn()
	}
	err := cb.Call(fn)
	observability.UpdateCircuitBreakerState(name, int(cb.GetState()))
	return err
}

// Transcribe runs the utterance through the STT chain. sampleRate is the
// session's negotiated capture rate.
func (r *Router) Transcribe(ctx context.Context, pcm []byte, language string, sampleRate int) (*stt.Transcript, error) {
	if len(r.transcribers) == 0 {
		return nil, &ProviderError{Capability: CapabilitySTT, Err: errNoProviders}
	}

	var attempted []string
	var lastErr error
	for _, t := range r.transcribers {
		attempted = append(attempted, t.Name())

		var result *stt.Transcript
		err := r.call(t.Name(), func() error {
			var innerErr error
			result, innerErr = t.Transcribe(ctx, pcm, language, sampleRate)
			return innerErr
		})
		if err == nil {
			return result, nil
		}

		lastErr = err
		observability.RecordProviderFallback(string(CapabilitySTT), t.Name())
		r.logger.Warn().Err(err).Str("provider", t.Name()).Msg("transcriber failed, trying next")
	}
	return nil, &ProviderError{
		Capability: CapabilitySTT,
		Provider:   attempted[len(attempted)-1],
		Attempted:  attempted,
		Err:        lastErr,
	}
}

// Generate streams a reply through the LLM chain. preferred, when set and
// present in the chain, is tried first. A candidate that fails before
// delivering any delta is skipped; once a delta has reached consume the
// turn is committed to that candidate and its error is final.
func (r *Router) Generate(ctx context.Context, preferred string, history []llm.Message, systemPrompt string, consume func(delta string) error) error {
	chain := r.generatorChain(preferred)
	if len(chain) == 0 {
		return &ProviderError{Capability: CapabilityLLM, Err: errNoProviders}
	}

	var attempted []string
	var lastErr error
	for _, g := range chain {
		attempted = append(attempted, g.Name())

		delivered := 0
		err := r.call(g.Name(), func() error {
			return g.Generate(ctx, history, systemPrompt, func(delta string) error {
				delivered++
				return consume(delta)
			})
		})
		if err == nil {
			return nil
		}
		if delivered > 0 {
			return &ProviderError{
				Capability: CapabilityLLM,
				Provider:   g.Name(),
				Attempted:  attempted,
				Err:        err,
			}
		}

		lastErr = err
		observability.RecordProviderFallback(string(CapabilityLLM), g.Name())
		r.logger.Warn().Err(err).Str("provider", g.Name()).Msg("generator failed, trying next")
	}
	return &ProviderError{
		Capability: CapabilityLLM,
		Provider:   attempted[len(attempted)-1],
		Attempted:  attempted,
		Err:        lastErr,
	}
}

// Synthesize runs the text through the TTS chain. voiceClass selects an
// entry from the provider's voice table, falling back to its default voice.
func (r *Router) Synthesize(ctx context.Context, text, voiceClass string) (<-chan []byte, string, error) {
	if len(r.synthesizers) == 0 {
		return nil, "", &ProviderError{Capability: CapabilityTTS, Err: errNoProviders}
	}

	var attempted []string
	var lastErr error
	for _, s := range r.synthesizers {
		attempted = append(attempted, s.Name())

		voice := r.voiceFor(s.Name(), voiceClass)
		var stream <-chan []byte
		err := r.call(s.Name(), func() error {
			var innerErr error
			stream, innerErr = s.Synthesize(ctx, text, voice)
			return innerErr
		})
		if err == nil {
			return stream, s.Name(), nil
		}

		lastErr = err
		observability.RecordProviderFallback(string(CapabilityTTS), s.Name())
		r.logger.Warn().Err(err).Str("provider", s.Name()).Msg("synthesizer failed, trying next")
	}
	return nil, "", &ProviderError{
		Capability: CapabilityTTS,
		Provider:   attempted[len(attempted)-1],
		Attempted:  attempted,
		Err:        lastErr,
	}
}

func (r *Router) generatorChain(preferred string) []llm.Generator {
	if preferred == "" {
		return r.generators
	}
	chain := make([]llm.Generator, 0, len(r.generators))
	for _, g := range r.generators {
		if g.Name() == preferred {
			chain = append(chain, g)
		}
	}
	for _, g := range r.generators {
		if g.Name() != preferred {
			chain = append(chain, g)
		}
	}
	return chain
}

func (r *Router) voiceFor(providerName, voiceClass string) string {
	table := r.voices[providerName]
	if table == nil {
		return ""
	}
	if v, ok := table[voiceClass]; ok {
		return v
	}
	return table["default"]
}

// SetVoice maps a voice class to a provider-specific voice ID.
func (r *Router) SetVoice(providerName, voiceClass, voiceID string) {
	table := r.voices[providerName]
	if table == nil {
		table = make(map[string]string)
		r.voices[providerName] = table
	}
	table[voiceClass] = voiceID
}

// LLMProviders lists the configured LLM provider names in chain order.
func (r *Router) LLMProviders() []string {
	names := make([]string, len(r.generators))
	for i, g := range r.generators {
		names[i] = g.Name()
	}
	return names
}

// HasLLMProvider reports whether name is a configured LLM provider.
func (r *Router) HasLLMProvider(name string) bool {
	for _, g := range r.generators {
		if g.Name() == name {
			return true
		}
	}
	return false
}

// DefaultLLM returns the first configured LLM provider name, or empty.
func (r *Router) DefaultLLM() string {
	if len(r.generators) == 0 {
		return ""
	}
	return r.generators[0].Name()
}

// BreakerStates reports the circuit breaker state per provider, for
// readiness reporting.
func (r *Router) BreakerStates() map[string]resilience.CircuitState {
	states := make(map[string]resilience.CircuitState, len(r.breakers))
	for name, cb := range r.breakers {
		states[name] = cb.GetState()
	}
	return states
}
