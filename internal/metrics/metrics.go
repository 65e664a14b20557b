// Package metrics provides Prometheus instrumentation for the risk evidence service.
package metrics

import (
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ScoringRunsTotal counts scoring runs by ruleset.
	ScoringRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dnfbp",
			Name:      "scoring_runs_total",
			Help:      "Total scoring runs by ruleset.",
		},
		[]string{"ruleset"},
	)

	// ClientsScoredTotal counts scored clients by band.
	ClientsScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dnfbp",
			Name:      "clients_scored_total",
			Help:      "Total clients scored by resulting band.",
		},
		[]string{"band"},
	)

	// ManifestsBuiltTotal counts manifests by signing outcome (signed, unsigned, failed).
	ManifestsBuiltTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dnfbp",
			Name:      "manifests_built_total",
			Help:      "Total evidence manifests built by signing outcome.",
		},
		[]string{"outcome"},
	)

	// SigningFailuresTotal counts manifests that fell back to unsigned because signing failed.
	SigningFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dnfbp",
			Name:      "signing_failures_total",
			Help:      "Manifests emitted unsigned because signing failed with keys configured.",
		},
	)

	// EvidenceLookupsTotal counts token cache lookups by result (hit, miss, expired).
	EvidenceLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dnfbp",
			Name:      "evidence_lookups_total",
			Help:      "Token cache lookups by result.",
		},
		[]string{"result"},
	)

	// EvidenceCacheEntries tracks bundles currently held in memory.
	EvidenceCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dnfbp",
			Name:      "evidence_cache_entries",
			Help:      "Evidence bundles currently held in the token cache.",
		},
	)

	// SideEffectFailuresTotal counts failed best-effort side effects by sink.
	SideEffectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dnfbp",
			Name:      "side_effect_failures_total",
			Help:      "Failed best-effort side effects by sink (index, mirror, ledger, publish).",
		},
		[]string{"sink"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ScoringRunsTotal,
			ClientsScoredTotal,
			ManifestsBuiltTotal,
			SigningFailuresTotal,
			EvidenceLookupsTotal,
			EvidenceCacheEntries,
			SideEffectFailuresTotal,
		)
	})
}

// Handler returns an echo handler serving the Prometheus exposition format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
