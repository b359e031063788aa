package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WorldStateCacheHits tracks get() calls answered from the cached sample.
	WorldStateCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflex_worldstate_cache_hits_total",
		Help: "World-state cache reads served without a fetch",
	})

	// WorldStateCacheMisses tracks get() calls that triggered or joined a fetch.
	WorldStateCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflex_worldstate_cache_misses_total",
		Help: "World-state cache reads that required a fetch",
	})

	// WorldStateFetchErrors tracks failed world-state fetches (fail-closed ticks).
	WorldStateFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflex_worldstate_fetch_errors_total",
		Help: "World-state fetcher failures; each one fails a tick closed",
	})

	// WorldStateFetchDuration tracks fetcher roundtrip latency.
	WorldStateFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reflex_worldstate_fetch_duration_seconds",
		Help:    "World-state fetch latency",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	// TickDuration tracks the duration of one registry tick evaluation.
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reflex_tick_duration_seconds",
		Help:    "Duration of one reflex registry tick",
		Buckets: prometheus.DefBuckets,
	})

	// TicksTotal tracks evaluated ticks by outcome (fired / no_fire / state_unavailable).
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_ticks_total",
		Help: "Registry ticks evaluated, by outcome",
	}, []string{"outcome"})

	// ReflexFires tracks non-null evaluate results per reflex.
	ReflexFires = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_fires_total",
		Help: "Reflex controllers returning a candidate task",
	}, []string{"reflex"})

	// ReflexEvaluatePanics tracks controller contract violations caught by the registry.
	ReflexEvaluatePanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_evaluate_panics_total",
		Help: "Panics recovered from reflex evaluate calls",
	}, []string{"reflex"})

	// EnqueueOutcomes tracks enqueue helper results by kind and skip reason.
	EnqueueOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_enqueue_outcomes_total",
		Help: "Enqueue attempts by outcome kind and skip reason",
	}, []string{"kind", "reason"})

	// FireRateLimited tracks fires suppressed by the per-reflex limiter.
	FireRateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_fire_rate_limited_total",
		Help: "Reflex fires suppressed by the storm-protection limiter",
	}, []string{"reflex"})

	// ProofBundlesBuilt tracks proof bundles by verification outcome.
	ProofBundlesBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_proof_bundles_total",
		Help: "Proof bundles built, by verification reason",
	}, []string{"verified", "reason"})

	// AccumulatorOccupancy tracks live proof accumulators per reflex.
	AccumulatorOccupancy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reflex_accumulator_occupancy",
		Help: "Current number of retained proof accumulators",
	}, []string{"reflex"})

	// PriorAdjustments tracks credit-assignment updates by direction.
	PriorAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_prior_adjustments_total",
		Help: "Prior updates applied by the credit store",
	}, []string{"direction"})

	// StreamClients tracks currently connected lifecycle stream clients.
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reflex_stream_clients",
		Help: "Connected lifecycle event stream clients",
	})

	// RecorderWrites tracks proof recorder writes by backend and result.
	RecorderWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_recorder_writes_total",
		Help: "Proof bundle recorder writes",
	}, []string{"backend", "result"})
)
