package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/radiancefleet/core/pkg/models"
)

// RunRepo persists PipelineRun bookkeeping (§4.6). Step results and
// volume snapshots are stored as jsonb columns rather than side tables:
// they are write-once summaries read back whole, never queried by field.
type RunRepo struct{ tx pgx.Tx }

func NewRunRepo(tx pgx.Tx) *RunRepo { return &RunRepo{tx: tx} }

func (r *RunRepo) Create(ctx context.Context, run models.PipelineRun) (int64, error) {
	const q = `
		INSERT INTO pipeline_runs (date_from, date_to, scoring_date, started_at, status)
		VALUES ($1,$2,$3,$4,'partial')
		RETURNING id`
	var id int64
	err := r.tx.QueryRow(ctx, q, run.DateFrom, run.DateTo, run.ScoringDate, run.StartedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: creating pipeline run: %w", err)
	}
	return id, nil
}

// Finish writes the final step/count snapshots and closes out the run.
func (r *RunRepo) Finish(ctx context.Context, runID int64, run models.PipelineRun) error {
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("store: marshaling step results: %w", err)
	}
	counts, err := json.Marshal(run.DetectorCounts)
	if err != nil {
		return fmt.Errorf("store: marshaling detector counts: %w", err)
	}
	volumes, err := json.Marshal(run.DataVolumeSnapshot)
	if err != nil {
		return fmt.Errorf("store: marshaling data volume snapshot: %w", err)
	}
	drift, err := json.Marshal(run.DriftDisabledDetectors)
	if err != nil {
		return fmt.Errorf("store: marshaling drift-disabled detectors: %w", err)
	}

	const q = `
		UPDATE pipeline_runs
		SET finished_at = $1, status = $2, steps = $3, detector_counts = $4,
		    data_volume_snapshot = $5, drift_disabled_detectors = $6
		WHERE id = $7`
	_, err = r.tx.Exec(ctx, q, run.FinishedAt, run.Status, steps, counts, volumes, drift, runID)
	if err != nil {
		return fmt.Errorf("store: finishing pipeline run: %w", err)
	}
	return nil
}

// RecentCompleted returns the most recent N completed runs, newest first,
// used by the drift detector's 3-run warm-up window (§4.6).
func (r *RunRepo) RecentCompleted(ctx context.Context, n int) ([]models.PipelineRun, error) {
	const q = `
		SELECT id, date_from, date_to, scoring_date, started_at, finished_at, status,
		       steps, detector_counts, data_volume_snapshot, drift_disabled_detectors
		FROM pipeline_runs
		WHERE status = 'complete'
		ORDER BY started_at DESC
		LIMIT $1`
	rows, err := r.tx.Query(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: querying recent runs: %w", err)
	}
	defer rows.Close()

	var out []models.PipelineRun
	for rows.Next() {
		var run models.PipelineRun
		var steps, counts, volumes, drift []byte
		if err := rows.Scan(&run.ID, &run.DateFrom, &run.DateTo, &run.ScoringDate,
			&run.StartedAt, &run.FinishedAt, &run.Status, &steps, &counts, &volumes, &drift); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(steps, &run.Steps); err != nil {
			return nil, fmt.Errorf("store: unmarshaling step results: %w", err)
		}
		if err := json.Unmarshal(counts, &run.DetectorCounts); err != nil {
			return nil, fmt.Errorf("store: unmarshaling detector counts: %w", err)
		}
		if err := json.Unmarshal(volumes, &run.DataVolumeSnapshot); err != nil {
			return nil, fmt.Errorf("store: unmarshaling data volume snapshot: %w", err)
		}
		if err := json.Unmarshal(drift, &run.DriftDisabledDetectors); err != nil {
			return nil, fmt.Errorf("store: unmarshaling drift-disabled detectors: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
