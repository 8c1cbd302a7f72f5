// Package evidence implements the evidence-card builder (§4.8): an
// analyst-reviewed, write-once snapshot of a gap event's score, breakdown,
// and movement context, and the alerting layer alongside it. Grounded on
// the teacher's internal/heuristics package for the shared "read detector
// output, assemble an analyst-facing artifact" shape.
package evidence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radiancefleet/core/internal/config"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

// Disclaimer is the fixed string attached to every exported evidence card,
// matching §4.8's "fixed disclaimer string" (the core makes no legal
// determination; everything here is analyst-reviewed risk triage).
const Disclaimer = "This card is an automated risk-triage artifact, not a legal determination. " +
	"All positions and classifications require independent analyst verification before action."

// ErrNotReviewed is returned when Build is asked to export a gap event
// still in the "new" analyst status (§4.8 "for a given gap event and
// analyst-reviewed status != new").
var ErrNotReviewed = fmt.Errorf("evidence: gap event has not been analyst-reviewed")

// Dependencies bundles the repos Build needs to assemble a card.
type Dependencies struct {
	Gaps      *store.GapEventRepo
	Positions *store.PositionRepo
	Vessels   *store.VesselRepo
	Corridors *config.Bundle
}

// Build assembles and persists an EvidenceCard for gapEventID. It refuses
// to export a card for a gap event still marked "new": export is an
// analyst action, not an automatic byproduct of scoring.
func Build(ctx context.Context, deps Dependencies, evidenceRepo *store.EvidenceRepo, gapEventID int64, analystNotes string, now time.Time) (models.EvidenceCard, error) {
	gap, found, err := deps.Gaps.ByID(ctx, gapEventID)
	if err != nil {
		return models.EvidenceCard{}, fmt.Errorf("evidence: loading gap event %d: %w", gapEventID, err)
	}
	if !found {
		return models.EvidenceCard{}, fmt.Errorf("evidence: gap event %d not found", gapEventID)
	}
	if gap.AnalystStatus == models.StatusNew {
		return models.EvidenceCard{}, ErrNotReviewed
	}

	vessel, found, err := deps.Vessels.ByID(ctx, gap.VesselID)
	if err != nil {
		return models.EvidenceCard{}, fmt.Errorf("evidence: loading vessel %d: %w", gap.VesselID, err)
	}
	if !found {
		return models.EvidenceCard{}, fmt.Errorf("evidence: vessel %d not found", gap.VesselID)
	}

	lastKnown, found, err := deps.Positions.ByID(ctx, gap.StartPointID)
	if err != nil {
		return models.EvidenceCard{}, fmt.Errorf("evidence: loading gap start point %d: %w", gap.StartPointID, err)
	}
	if !found {
		return models.EvidenceCard{}, fmt.Errorf("evidence: gap start point %d not found", gap.StartPointID)
	}
	firstAfter, found, err := deps.Positions.ByID(ctx, gap.EndPointID)
	if err != nil {
		return models.EvidenceCard{}, fmt.Errorf("evidence: loading gap end point %d: %w", gap.EndPointID, err)
	}
	if !found {
		return models.EvidenceCard{}, fmt.Errorf("evidence: gap end point %d not found", gap.EndPointID)
	}

	corridorName := ""
	coverage := gap.CoverageQuality
	if gap.CorridorID != nil {
		for _, c := range deps.Corridors.Corridors.ToModels() {
			if c.ID == *gap.CorridorID {
				corridorName = c.Name
				break
			}
		}
	}
	if coverage == "" || coverage == models.CoverageUnknown {
		coverage = config.CoverageQualityForCorridor(corridorName)
	}

	card := models.EvidenceCard{
		ID:                uuid.NewString(),
		GapEventID:        gap.ID,
		VesselSnapshot:    vessel,
		LastKnownPosition: lastKnown,
		FirstAfterGap:     firstAfter,
		RiskScoreAtExport: gap.RiskScore,
		BreakdownAtExport: copyBreakdown(gap.Breakdown),
		MovementEnvelope: models.MovementEnvelope{
			MaxPlausibleDistanceNM: gap.MaxPlausibleDistanceNM,
			ActualDistanceNM:       gap.ActualGapDistanceNM,
			VelocityRatio:          gap.VelocityPlausibilityRatio,
			ImpossibleSpeedFlag:    gap.ImpossibleSpeedFlag,
		},
		CorridorName:    corridorName,
		CoverageQuality: coverage,
		AnalystNotes:    analystNotes,
		ExportedAtUTC:   now,
		Disclaimer:      Disclaimer,
	}

	if err := evidenceRepo.Insert(ctx, card); err != nil {
		return models.EvidenceCard{}, fmt.Errorf("evidence: persisting card for gap event %d: %w", gap.ID, err)
	}
	return card, nil
}

func copyBreakdown(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
