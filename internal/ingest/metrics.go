package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_ingest_rows_total",
			Help: "Ingested rows by outcome (inserted, updated, error)",
		},
		[]string{"outcome"},
	)

	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_ingest_batches_total",
			Help: "Dispatched batches by result (ok, partial, failed)",
		},
		[]string{"result"},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_ingest_batch_duration_seconds",
			Help:    "Duration of one bulk upsert",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)
