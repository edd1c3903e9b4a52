package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_pipeline_active_sessions",
		Help: "Number of connected voice sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_pipeline_sessions_total",
		Help: "Total number of voice sessions accepted",
	})

	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_turns_total",
		Help: "Total conversation turns by outcome",
	}, []string{"outcome"}) // completed, empty, error

	stageLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voice_pipeline_stage_latency_seconds",
		Help:    "Pipeline stage latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	}, []string{"stage"}) // stt, llm, tts

	providerFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_provider_fallbacks_total",
		Help: "Provider candidates skipped after a failure",
	}, []string{"capability", "provider"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_pipeline_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"provider"})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_pipeline_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // in, out

	droppedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_pipeline_dropped_frames_total",
		Help: "Audio frames discarded because a pipeline was already in flight",
	})
)

// Metrics tracks per-session measurements against the process-wide
// collectors.
type Metrics struct {
	mu          sync.Mutex
	sessionID   string
	stageStarts map[string]time.Time
}

// NewSessionMetrics creates a metrics tracker for one session and records
// its start.
func NewSessionMetrics(sessionID string) *Metrics {
	activeSessions.Inc()
	totalSessions.Inc()
	return &Metrics{
		sessionID:   sessionID,
		stageStarts: make(map[string]time.Time),
	}
}

// RecordSessionEnd records session teardown.
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
}

// RecordStageStart marks the beginning of a pipeline stage (stt, llm, tts).
func (m *Metrics) RecordStageStart(stage string) {
	m.mu.Lock()
	m.stageStarts[stage] = time.Now()
	m.mu.Unlock()
}

// RecordStageEnd observes the latency of a stage started earlier.
func (m *Metrics) RecordStageEnd(stage string) {
	m.mu.Lock()
	start, ok := m.stageStarts[stage]
	delete(m.stageStarts, stage)
	m.mu.Unlock()
	if ok {
		stageLatency.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// RecordTurn records a completed conversation turn by outcome.
func (m *Metrics) RecordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio volume by direction ("in" or "out").
func (m *Metrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytes.WithLabelValues(direction).Add(float64(bytes))
}

// RecordDroppedFrame counts a frame discarded by the busy-drop policy.
func (m *Metrics) RecordDroppedFrame() {
	droppedFrames.Inc()
}

// RecordProviderFallback counts a provider skipped during chain fallback.
func RecordProviderFallback(capability, provider string) {
	providerFallbacks.WithLabelValues(capability, provider).Inc()
}

// UpdateCircuitBreakerState updates the breaker state gauge for a provider.
func UpdateCircuitBreakerState(provider string, state int) {
	circuitBreakerState.WithLabelValues(provider).Set(float64(state))
}
