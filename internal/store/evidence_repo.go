package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/radiancefleet/core/pkg/models"
)

// EvidenceRepo persists exported evidence cards (§4.8). A card is a
// write-once artifact: once exported it is immutable, so there is no
// Update here, only Insert and lookup.
type EvidenceRepo struct{ tx pgx.Tx }

func NewEvidenceRepo(tx pgx.Tx) *EvidenceRepo { return &EvidenceRepo{tx: tx} }

func (r *EvidenceRepo) Insert(ctx context.Context, card models.EvidenceCard) error {
	breakdown, err := json.Marshal(card.BreakdownAtExport)
	if err != nil {
		return fmt.Errorf("store: marshaling evidence breakdown: %w", err)
	}
	envelope, err := json.Marshal(card.MovementEnvelope)
	if err != nil {
		return fmt.Errorf("store: marshaling movement envelope: %w", err)
	}
	vesselSnapshot, err := json.Marshal(card.VesselSnapshot)
	if err != nil {
		return fmt.Errorf("store: marshaling vessel snapshot: %w", err)
	}

	const q = `
		INSERT INTO evidence_cards
			(id, gap_event_id, vessel_snapshot, last_known_position_id, first_after_gap_id,
			 risk_score_at_export, breakdown_at_export, movement_envelope, corridor_name,
			 coverage_quality, analyst_notes, exported_at_utc, disclaimer)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = r.tx.Exec(ctx, q, card.ID, card.GapEventID, vesselSnapshot,
		card.LastKnownPosition.ID, card.FirstAfterGap.ID, card.RiskScoreAtExport,
		breakdown, envelope, card.CorridorName, string(card.CoverageQuality),
		card.AnalystNotes, card.ExportedAtUTC, card.Disclaimer)
	if err != nil {
		return fmt.Errorf("store: inserting evidence card: %w", err)
	}
	return nil
}

func (r *EvidenceRepo) ByGapEvent(ctx context.Context, gapEventID int64) (models.EvidenceCard, bool, error) {
	const q = `
		SELECT id, gap_event_id, vessel_snapshot, breakdown_at_export, movement_envelope,
		       corridor_name, coverage_quality, analyst_notes, exported_at_utc, disclaimer,
		       risk_score_at_export
		FROM evidence_cards WHERE gap_event_id = $1`
	var card models.EvidenceCard
	var vesselSnapshot, breakdown, envelope []byte
	var coverage string
	err := r.tx.QueryRow(ctx, q, gapEventID).Scan(&card.ID, &card.GapEventID, &vesselSnapshot,
		&breakdown, &envelope, &card.CorridorName, &coverage, &card.AnalystNotes,
		&card.ExportedAtUTC, &card.Disclaimer, &card.RiskScoreAtExport)
	if err == pgx.ErrNoRows {
		return models.EvidenceCard{}, false, nil
	}
	if err != nil {
		return models.EvidenceCard{}, false, fmt.Errorf("store: querying evidence card: %w", err)
	}
	card.CoverageQuality = models.CoverageQuality(coverage)
	if err := json.Unmarshal(vesselSnapshot, &card.VesselSnapshot); err != nil {
		return models.EvidenceCard{}, false, fmt.Errorf("store: unmarshaling vessel snapshot: %w", err)
	}
	if err := json.Unmarshal(breakdown, &card.BreakdownAtExport); err != nil {
		return models.EvidenceCard{}, false, fmt.Errorf("store: unmarshaling evidence breakdown: %w", err)
	}
	if err := json.Unmarshal(envelope, &card.MovementEnvelope); err != nil {
		return models.EvidenceCard{}, false, fmt.Errorf("store: unmarshaling movement envelope: %w", err)
	}
	return card, true, nil
}
