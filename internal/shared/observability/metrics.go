package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "protoscope_parsing_seconds",
		Help:    "Time spent loading declarations from one source kind.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	DeclaredTypes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "protoscope_declared_types",
		Help: "Number of declared types in the active store.",
	})

	HierarchyEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "protoscope_hierarchy_edges",
		Help: "Number of extends, implements and uses edges in the active store.",
	})

	RejectedTypesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protoscope_rejected_types_total",
		Help: "Total number of declarations dropped by load-time validation.",
	})

	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protoscope_resolutions_total",
		Help: "Prototype resolutions by outcome (ok or error code).",
	}, []string{"outcome"})

	ResolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "protoscope_resolution_seconds",
		Help:    "Latency of a single prototype resolution.",
		Buckets: []float64{.000001, .00001, .0001, .001, .01, .1},
	})

	ReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "protoscope_reloads_total",
		Help: "Hot reloads by result (ok or error).",
	}, []string{"result"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "protoscope_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "protoscope_analysis_seconds",
		Help:    "Time spent on high-level tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
)
