package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracecorr_runs_total",
		Help: "Correlation runs by outcome.",
	}, []string{"status"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracecorr_run_duration_seconds",
		Help:    "Wall time of a full correlation run.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	FlowsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracecorr_flows_processed_total",
		Help: "Flows correlated.",
	})

	TraceEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracecorr_trace_events_total",
		Help: "Packet records parsed from trace files.",
	})

	MalformedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracecorr_malformed_records_total",
		Help: "Matched records skipped for delay because they lack a timestamp or sequence id.",
	})

	UnmatchedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracecorr_unmatched_records_total",
		Help: "Received data records without a send record.",
	})

	LastAverageDelay = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracecorr_last_average_delay_seconds",
		Help: "Average one-way delay of the last successful run with matched samples.",
	})

	LastLost = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tracecorr_last_lost_packets",
		Help: "Lost packets (data and acks) of the last successful run.",
	})
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)
