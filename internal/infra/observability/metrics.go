package observability

import (
	"time"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics of the bot.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	turnDuration    *prometheus.HistogramVec
	turnsTotal      *prometheus.CounterVec
	intentsTotal    *prometheus.CounterVec
	llmFallbacks    *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	tokensUsed      *prometheus.CounterVec
	quotesGenerated prometheus.Counter
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
}

// responderLabels are pre-created so the snapshot reports zeros instead of
// missing keys.
var responderLabels = []string{
	domain.TargetNeedsBasedSelling.String(),
	domain.TargetQuote.String(),
	domain.TargetPresenter.String(),
	domain.TargetFinish.String(),
	"command",
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iagente_turn_duration_seconds",
				Help:    "Duration of a conversation turn by responder.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"target"},
		),
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iagente_turns_total",
				Help: "Total conversation turns processed by responder.",
			},
			[]string{"target"},
		),
		intentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iagente_intents_total",
				Help: "Classified intents of inbound messages.",
			},
			[]string{"intent"},
		),
		llmFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iagente_llm_fallbacks_total",
				Help: "Times a component used its deterministic fallback instead of the LLM.",
			},
			[]string{"component"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iagente_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iagente_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		quotesGenerated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "iagente_quotes_generated_total",
				Help: "Total quotes produced by the quoting engine.",
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iagente_state_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iagente_state_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordTurn records one processed turn for the responder that handled it.
func (m *Metrics) RecordTurn(target string, d time.Duration) {
	m.turnDuration.WithLabelValues(target).Observe(d.Seconds())
	m.turnsTotal.WithLabelValues(target).Inc()
}

// IncrIntent counts a classified intent.
func (m *Metrics) IncrIntent(intent string) {
	m.intentsTotal.WithLabelValues(intent).Inc()
}

// IncrFallback counts a deterministic fallback taken by component.
func (m *Metrics) IncrFallback(component string) {
	m.llmFallbacks.WithLabelValues(component).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// AddQuotes counts quotes handed to a client.
func (m *Metrics) AddQuotes(n int) {
	m.quotesGenerated.Add(float64(n))
}

// Snapshot returns the current turn metrics for the admin API.
func (m *Metrics) Snapshot() *domain.TurnMetrics {
	byTarget := make(map[string]int64, len(responderLabels))
	var total float64
	for _, t := range responderLabels {
		v := getCounterValue(m.turnsTotal, t)
		byTarget[t] = int64(v)
		total += v
	}

	var fallbacks float64
	for _, c := range []string{"extractor", "classifier", "router", "responder", "conversation"} {
		fallbacks += getCounterValue(m.llmFallbacks, c)
	}

	hits := getCounterValue(m.cacheHits, "state")
	misses := getCounterValue(m.cacheMisses, "state")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.TurnMetrics{
		TotalTurns:      int64(total),
		TurnsByTarget:   byTarget,
		LLMFallbacks:    int64(fallbacks),
		QuotesGenerated: int64(counterValue(m.quotesGenerated)),
		CacheHitRate:    hitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return counterValue(cv.WithLabelValues(label))
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
