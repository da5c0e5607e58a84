package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RecomputeTotal counts totals recomputations by document type.
	RecomputeTotal *prometheus.CounterVec
	// AutosaveRunsTotal counts autosave persistence outcomes.
	AutosaveRunsTotal *prometheus.CounterVec
	// AutosaveSkippedTotal counts ticks skipped because a save was in flight.
	AutosaveSkippedTotal prometheus.Counter
	// SnapshotPersistLatency records snapshot persistence latency in milliseconds.
	SnapshotPersistLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers billing-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RecomputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "totals_recompute_total",
			Help:      "Count of document totals recomputations by document type.",
		}, []string{"doc_type"})
		AutosaveRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autosave_runs_total",
			Help:      "Count of autosave persistence runs by outcome.",
		}, []string{"result"})
		AutosaveSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autosave_skipped_total",
			Help:      "Ticks skipped because a previous save was still in flight.",
		})
		SnapshotPersistLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_persist_duration_ms",
			Help:      "Latency for snapshot persistence in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"result"})

		RecomputeTotal = registerCounterVec(reg, RecomputeTotal)
		AutosaveRunsTotal = registerCounterVec(reg, AutosaveRunsTotal)
		SnapshotPersistLatency = registerHistogramVec(reg, SnapshotPersistLatency)
		AutosaveSkippedTotal = registerCounter(reg, AutosaveSkippedTotal)
	})
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
