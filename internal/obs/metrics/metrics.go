// Package metrics exports Prometheus counters and histograms for the
// ingestion and detection core, grounded on jordigilh-kubernaut's
// pkg/infrastructure/metrics pattern of package-level registered
// collectors rather than a passed-around registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DetectorEventsTotal counts events persisted per detector, labeled by
	// detector name, for drift-detection baselines and dashboards.
	DetectorEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radiancefleet",
		Name:      "detector_events_total",
		Help:      "Total events persisted by each detector, by detector name.",
	}, []string{"detector"})

	// PipelineStepDuration records wall-clock time per orchestrator step.
	PipelineStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "radiancefleet",
		Name:      "pipeline_step_duration_seconds",
		Help:      "Duration of each pipeline orchestrator step.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"step", "status"})

	// IngestRecordsTotal counts normalized/dropped records during ingestion.
	IngestRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "radiancefleet",
		Name:      "ingest_records_total",
		Help:      "Ingested AIS records, by outcome (stored/duplicate/error).",
	}, []string{"outcome"})

	// ScoringClampedTotal counts how often the final score required
	// clamping to the [0, 200] bound, a health signal for the scoring
	// config (persistent clamping suggests miscalibrated weights).
	ScoringClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "radiancefleet",
		Name:      "scoring_clamped_total",
		Help:      "Number of scored gaps whose raw score required clamping to [0,200].",
	})
)
