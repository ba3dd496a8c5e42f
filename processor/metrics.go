package processor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/forestrie/go-batchedmerkle/batched"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

type metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	// status: applied/deferred/superseded/replayed/dropped
	updatesTotal *prometheus.CounterVec
	// kind: nullifier/address/leaf
	queuedTotal    *prometheus.CounterVec
	rolloversTotal *prometheus.CounterVec
}

func newMetrics(namespace string, reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		operationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "processor",
				Name:      "operations_total",
				Help:      "Total number of processed account operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "processor",
				Name:      "operation_duration_seconds",
				Help:      "Duration of account operations including the commit",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		updatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "processor",
				Name:      "batch_updates_total",
				Help:      "Batch updates by outcome",
			},
			[]string{"status"},
		),
		queuedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "processor",
				Name:      "queued_values_total",
				Help:      "Values inserted into queues",
			},
			[]string{"kind"},
		),
		rolloversTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "processor",
				Name:      "rollovers_total",
				Help:      "Trees rolled over",
			},
			[]string{"tree_type"},
		),
	}
}

func (m *metrics) observe(operation string, start time.Time, err error) {
	status := statusSuccess
	if err != nil {
		status = statusError
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *metrics) observeResult(res batched.UpdateResult) {
	if res.Status == batched.UpdateApplied {
		m.updatesTotal.WithLabelValues("applied").Inc()
	} else {
		m.updatesTotal.WithLabelValues("deferred").Inc()
	}
	if res.Superseded != nil {
		m.updatesTotal.WithLabelValues("superseded").Inc()
	}
	m.updatesTotal.WithLabelValues("replayed").Add(float64(len(res.Replayed)))
	m.updatesTotal.WithLabelValues("dropped").Add(float64(len(res.Dropped)))
}
