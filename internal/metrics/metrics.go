package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breedpipe_stage_runs_total",
		Help: "Total number of pipeline stage runs by outcome",
	}, []string{"stage", "status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "breedpipe_stage_duration_seconds",
		Help:    "Duration of pipeline stage runs",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	RowsLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breedpipe_raw_rows_loaded_total",
		Help: "Total number of raw breed rows appended to the raw table",
	})

	LastLoadTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "breedpipe_last_load_timestamp_seconds",
		Help: "Unix time of the last successful raw load",
	})

	ModelRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breedpipe_model_rows",
		Help: "Rows produced by each model on its last evaluation",
	}, []string{"model"})

	TestFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breedpipe_test_failures_total",
		Help: "Total number of failed or errored data tests",
	}, []string{"test"})
)
