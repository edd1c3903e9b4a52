package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/casavoz/voice-pipeline/internal/config"
	"github.com/casavoz/voice-pipeline/internal/llm"
	"github.com/casavoz/voice-pipeline/internal/observability"
	"github.com/casavoz/voice-pipeline/internal/protocol"
	"github.com/casavoz/voice-pipeline/internal/stt"
)

// Emitter delivers frames back to the client. The websocket layer
// implements it; tests substitute a recorder.
type Emitter interface {
	SendControl(env *protocol.Envelope) error
	SendAudio(data []byte) error
}

// ProviderRouter is the slice of the provider layer the pipeline needs.
// provider.Router implements it.
type ProviderRouter interface {
	Transcribe(ctx context.Context, pcm []byte, language string, sampleRate int) (*stt.Transcript, error)
	Generate(ctx context.Context, preferred string, history []llm.Message, systemPrompt string, consume func(delta string) error) error
	Synthesize(ctx context.Context, text, voiceClass string) (<-chan []byte, string, error)
	HasLLMProvider(name string) bool
}

// Orchestrator drives the turn pipeline for one session: audio in,
// transcript, streamed reply, synthesized speech out. One turn runs at a
// time; audio received mid-turn is dropped.
type Orchestrator struct {
	sess    *Session
	router  ProviderRouter
	cfg     *config.Config
	emitter Emitter
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewOrchestrator wires the pipeline for one session.
func NewOrchestrator(sess *Session, router ProviderRouter, cfg *config.Config, emitter Emitter, metrics *observability.Metrics, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		sess:    sess,
		router:  router,
		cfg:     cfg,
		emitter: emitter,
		metrics: metrics,
		logger:  logger.With().Str("session_id", sess.ID).Logger(),
	}
}

// HandleAudio accepts one utterance frame. If a turn is already in flight
// the frame is discarded and counted; otherwise a pipeline goroutine is
// started. Returns true when the frame was accepted.
func (o *Orchestrator) HandleAudio(pcm []byte) bool {
	if len(pcm) == 0 {
		return false
	}
	if !o.sess.TryBeginTurn() {
		o.metrics.RecordDroppedFrame()
		o.logger.Debug().Int("bytes", len(pcm)).Msg("dropping audio frame, turn in flight")
		return false
	}
	o.metrics.RecordAudioBytes("in", int64(len(pcm)))
	go o.runTurn(pcm)
	return true
}

func (o *Orchestrator) runTurn(pcm []byte) {
	defer o.sess.EndTurn()

	language := o.sess.Language()

	// Transcribe.
	o.metrics.RecordStageStart("stt")
	sttCtx, cancelSTT := context.WithTimeout(context.Background(), time.Duration(o.cfg.STTTimeout)*time.Second)
	transcript, err := o.router.Transcribe(sttCtx, pcm, language, o.sess.SampleRate())
	cancelSTT()
	o.metrics.RecordStageEnd("stt")
	if err != nil {
		o.failTurn("stt", err)
		return
	}
	if strings.TrimSpace(transcript.Text) == "" {
		o.sendControl(protocol.Transcription("", language, "No speech detected"))
		o.metrics.RecordTurn("empty")
		return
	}
	o.sendControl(protocol.Transcription(transcript.Text, language, ""))
	o.sess.Append(llm.RoleUser, transcript.Text)

	// Generate.
	o.metrics.RecordStageStart("llm")
	llmCtx, cancelLLM := context.WithTimeout(context.Background(), time.Duration(o.cfg.LLMTimeout)*time.Second)
	var reply strings.Builder
	sequence := 0
	err = o.router.Generate(llmCtx, o.sess.Provider(), o.sess.History(), o.cfg.SystemPrompt, func(delta string) error {
		sequence++
		reply.WriteString(delta)
		return o.emitter.SendControl(protocol.ResponseChunk(delta, sequence))
	})
	cancelLLM()
	o.metrics.RecordStageEnd("llm")
	if err != nil {
		o.failTurn("llm", err)
		return
	}

	text := reply.String()
	o.sess.Append(llm.RoleAssistant, text)
	responseType := classifyResponse(text)

	// Synthesize. The completion message goes out after the audio, so the
	// client can treat it as the end-of-turn marker.
	if err := o.speak(text, responseType); err != nil {
		o.failTurn("tts", err)
		return
	}
	o.sendControl(protocol.ResponseComplete(text, responseType, sequence))

	o.metrics.RecordTurn("completed")
	o.logger.Info().
		Str("response_type", responseType).
		Int("chunks", sequence).
		Msg("turn completed")
}

// Greet runs a synthetic assistant turn with the configured greeting text.
// It shares the busy guard with real turns, so a greeting never interleaves
// with client audio.
func (o *Orchestrator) Greet() {
	if !o.cfg.GreetingEnabled || o.cfg.GreetingText == "" {
		return
	}
	if !o.sess.TryBeginTurn() {
		return
	}
	go func() {
		defer o.sess.EndTurn()
		text := o.cfg.GreetingText
		o.sess.Append(llm.RoleAssistant, text)
		if err := o.speak(text, "welcome"); err != nil {
			o.failTurn("tts", err)
			return
		}
		o.sendControl(protocol.ResponseComplete(text, "welcome", 0))
		o.metrics.RecordTurn("completed")
	}()
}

func (o *Orchestrator) speak(text, responseType string) error {
	o.metrics.RecordStageStart("tts")
	defer o.metrics.RecordStageEnd("tts")

	ttsCtx, cancel := context.WithTimeout(context.Background(), time.Duration(o.cfg.TTSTimeout)*time.Second)
	defer cancel()

	stream, providerName, err := o.router.Synthesize(ttsCtx, text, responseType)
	if err != nil {
		return err
	}
	sent := 0
	for chunk := range stream {
		if err := o.emitter.SendAudio(chunk); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
		o.metrics.RecordAudioBytes("out", int64(len(chunk)))
		sent++
	}
	o.logger.Debug().Str("provider", providerName).Int("chunks", sent).Msg("synthesis delivered")
	return nil
}

// failTurn reports a pipeline failure to the client and leaves the session
// ready for the next turn. Errors never close the connection.
func (o *Orchestrator) failTurn(stage string, err error) {
	o.logger.Error().Err(err).Str("stage", stage).Msg("turn failed")
	o.metrics.RecordError("pipeline", stage)
	o.metrics.RecordTurn("error")
	o.sendControl(protocol.Error(err.Error()))
}

// HandleControl processes one text frame. Malformed or unexpected messages
// are answered with an error message and never terminate the connection.
func (o *Orchestrator) HandleControl(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeConfig:
		if env.SampleRate <= 0 {
			o.sendControl(protocol.Error(fmt.Sprintf("invalid sample rate: %d", env.SampleRate)))
			return
		}
		o.sess.SetSampleRate(env.SampleRate)
		o.logger.Info().Int("sample_rate", env.SampleRate).Msg("client audio configured")

	case protocol.TypeSetLanguage:
		if env.Language == "" {
			o.sendControl(protocol.Error("setLanguage requires a language code"))
			return
		}
		o.sess.SetLanguage(env.Language)
		o.sendControl(&protocol.Envelope{Type: protocol.TypeLanguageSet, Language: env.Language})

	case protocol.TypeClearHistory:
		o.sess.ClearHistory()
		o.sendControl(&protocol.Envelope{Type: protocol.TypeHistoryCleared})

	case protocol.TypeSetProvider:
		if !o.router.HasLLMProvider(env.Provider) {
			o.sendControl(protocol.Error(fmt.Sprintf("unknown provider: %s", env.Provider)))
			return
		}
		o.sess.SetProvider(env.Provider)
		o.sendControl(&protocol.Envelope{Type: protocol.TypeProviderSet, Provider: env.Provider})

	case protocol.TypeGetStatus:
		o.sendControl(protocol.Status(
			o.sess.ID,
			o.sess.Language(),
			o.sess.Provider(),
			o.sess.IsProcessing(),
			o.sess.HistoryLength(),
		))

	default:
		o.logger.Warn().Str("type", env.Type).Msg("unsupported control message")
		o.sendControl(protocol.Error(fmt.Sprintf("unsupported message type: %s", env.Type)))
	}
}

func (o *Orchestrator) sendControl(env *protocol.Envelope) {
	if err := o.emitter.SendControl(env); err != nil {
		o.logger.Warn().Err(err).Str("type", env.Type).Msg("failed to send control message")
	}
}

// classifyResponse buckets a reply into a voice class so synthesis can pick
// a matching voice.
func classifyResponse(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "bienvenido", "bienvenida", "hola", "encantado"):
		return "welcome"
	case containsAny(lower, "lujo", "exclusiv", "premium", "atico"):
		return "luxury"
	case containsAny(lower, "disculpa", "lo siento", "no puedo", "error"):
		return "error"
	case containsAny(lower, "agente", "contacto", "ayuda", "llamar"):
		return "support"
	default:
		return "general"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
