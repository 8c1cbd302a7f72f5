// Package orchestrator sequences one full detection cycle (§4.6): ten
// ordered steps over a [date_from, date_to] window, each flag-gated,
// hard-or-soft on failure, with drift detection and per-run bookkeeping.
// Grounded on the teacher's scan-orchestration loop (internal/scanner's
// phase sequencing and ScanProgress-style run bookkeeping), generalized
// from a single continuous chain scan to a batch of named steps.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radiancefleet/core/internal/apperr"
	"github.com/radiancefleet/core/internal/config"
	"github.com/radiancefleet/core/internal/obs"
	"github.com/radiancefleet/core/internal/obs/metrics"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

// Step names, used both as the PipelineRun.Steps map keys and as the
// Prometheus "step" label.
const (
	StepExternalFetchers    = "external_fetchers"
	StepGapDetection        = "gap_detection"
	StepCoverageQuality     = "coverage_quality"
	StepFeedOutage          = "feed_outage"
	StepBehaviorDetectors   = "behavior_detectors"
	StepScoring             = "scoring"
	StepConfidence          = "confidence"
	StepIdentityResolution  = "identity_resolution"
	StepOwnershipGraph      = "ownership_graph"
	StepSummaryAssembly     = "summary_assembly"
)

var orderedSteps = []string{
	StepExternalFetchers, StepGapDetection, StepCoverageQuality, StepFeedOutage,
	StepBehaviorDetectors, StepScoring, StepConfidence, StepIdentityResolution,
	StepOwnershipGraph, StepSummaryAssembly,
}

// hardSteps abort the run on failure; every other step is soft.
var hardSteps = map[string]bool{
	StepGapDetection: true,
	StepScoring:      true,
}

// StepFunc runs one pipeline step and reports how many detector events (or
// equivalent units) it produced, for the per-run detector-counts snapshot.
type StepFunc func(ctx context.Context) (count int, err error)

// Window is the [date_from, date_to] scoring window for one run.
type Window struct {
	DateFrom    time.Time
	DateTo      time.Time
	ScoringDate time.Time
}

// Runner wires the flag-gated step functions and the run-bookkeeping repo
// together. Steps is populated by cmd/radiancefleet from the concrete
// detector/scoring/identity/ownership packages; orchestrator itself holds
// no detector logic, only sequencing.
type Runner struct {
	Runs   *store.RunRepo
	Flags  *config.ScoringConfig
	Steps  map[string]StepFunc
	// DetectorFlag maps a step name to the flag key DetectionIsEnabled
	// checks; steps without an entry always run.
	DetectorFlag map[string]string
}

// TopAlert is one entry of the pipeline's summary output (§4.6 "Pipeline
// output").
type TopAlert struct {
	GapEventID   int64
	MMSI         string
	RiskScore    int
	DurationH    float64
	CorridorID   *int64
}

// Result is the pipeline's final output, matching §4.6's documented shape.
type Result struct {
	RunID      int64
	RunStatus  string
	Steps      map[string]models.StepResult
	TopAlerts  []TopAlert
}

// Run executes every step in dependency order, persisting a PipelineRun at
// start and finish.
func (r *Runner) Run(ctx context.Context, w Window, topAlerts func(ctx context.Context) ([]TopAlert, error)) (Result, error) {
	now := w.ScoringDate
	runID, err := r.Runs.Create(ctx, models.PipelineRun{
		DateFrom: w.DateFrom, DateTo: w.DateTo, ScoringDate: w.ScoringDate, StartedAt: now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: creating pipeline run: %w", err)
	}

	drift, err := r.computeDriftDisabled(ctx)
	if err != nil {
		obs.From(ctx).Warn("drift detection failed, proceeding without carrying forward disabled detectors", zap.Error(err))
	}

	stepResults := make(map[string]models.StepResult, len(orderedSteps))
	detectorCounts := map[string]int{}
	status := "complete"

	for _, name := range orderedSteps {
		if flagKey, gated := r.DetectorFlag[name]; gated && !r.Flags.DetectionIsEnabled(flagKey) {
			stepResults[name] = models.StepResult{Status: "skipped", Detail: "detector disabled by config"}
			continue
		}
		if driftDisabled(drift, name) {
			stepResults[name] = models.StepResult{Status: "skipped", Detail: "disabled by drift detection"}
			continue
		}

		fn, ok := r.Steps[name]
		if !ok {
			stepResults[name] = models.StepResult{Status: "skipped", Detail: "no step implementation registered"}
			continue
		}

		start := time.Now()
		count, stepErr := fn(ctx)
		elapsed := time.Since(start).Seconds()

		if stepErr != nil {
			metrics.PipelineStepDuration.WithLabelValues(name, "failed").Observe(elapsed)
			stepResults[name] = models.StepResult{Status: "failed", Detail: stepErr.Error()}
			obs.From(ctx).Error("pipeline step failed", zap.String("step", name), zap.Error(stepErr))
			if hardSteps[name] || apperr.IsHard(stepErr) {
				status = "failed"
				break
			}
			status = "partial"
			continue
		}

		metrics.PipelineStepDuration.WithLabelValues(name, "ok").Observe(elapsed)
		stepResults[name] = models.StepResult{Status: "ok"}
		detectorCounts[name] = count
	}

	var alerts []TopAlert
	if status != "failed" && topAlerts != nil {
		alerts, err = topAlerts(ctx)
		if err != nil {
			obs.From(ctx).Warn("top-alerts assembly failed", zap.Error(err))
			stepResults[StepSummaryAssembly] = models.StepResult{Status: "failed", Detail: err.Error()}
		}
	}

	finished := now
	run := models.PipelineRun{
		Status: status, FinishedAt: &finished, Steps: stepResults,
		DetectorCounts: detectorCounts, DriftDisabledDetectors: drift,
	}
	if err := r.Runs.Finish(ctx, runID, run); err != nil {
		return Result{}, fmt.Errorf("orchestrator: finishing pipeline run %d: %w", runID, err)
	}

	return Result{RunID: runID, RunStatus: status, Steps: stepResults, TopAlerts: alerts}, nil
}

// computeDriftDisabled implements §4.6's warm-up-gated drift detector: it
// is a no-op until at least 3 historical completed runs exist, and
// otherwise always carries forward whatever the most recent run already
// had disabled (the spec requires an explicit operator confirmation to
// re-enable a drift-disabled detector, which this package has no channel
// for, so the safe default is to never silently re-enable one).
func (r *Runner) computeDriftDisabled(ctx context.Context) ([]string, error) {
	recent, err := r.Runs.RecentCompleted(ctx, 3)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: loading recent runs for drift warm-up: %w", err)
	}
	if len(recent) < 3 {
		return nil, nil
	}
	latest := recent[0]
	return append([]string(nil), latest.DriftDisabledDetectors...), nil
}

func driftDisabled(disabled []string, step string) bool {
	for _, d := range disabled {
		if d == step {
			return true
		}
	}
	return false
}
