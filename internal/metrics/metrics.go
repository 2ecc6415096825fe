package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchstream_records_total",
			Help: "Change records seen by the batch coordinator",
		},
		[]string{"kind", "outcome"}, // INSERT|MODIFY|REMOVE|unknown , processed|skipped|failed|poison
	)

	SideEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchstream_side_effects_total",
			Help: "Derived writes attempted per change event",
		},
		[]string{"effect", "outcome"}, // history|transaction|user_counter|job_counter , applied|skipped|suppressed|failed
	)

	BatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchstream_batches_total",
			Help: "Batch attempts by outcome",
		},
		[]string{"outcome"}, // succeeded|failed|dead_lettered
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchstream_batch_duration_seconds",
			Help:    "Wall time of one coordinator pass over a batch",
			Buckets: prometheus.DefBuckets,
		},
	)
)

var once sync.Once

// MustRegister registers the collectors once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			RecordsTotal,
			SideEffectsTotal,
			BatchesTotal,
			BatchDuration,
		)
	})
}
