package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/radiancefleet/core/pkg/models"
)

// ObservationRepo stores short-retention per-source raw echoes used for
// cross-receiver disagreement detection (§4.2 spoofing sub-type
// cross_receiver_disagreement). Kept separate from PositionRepo because
// observations are purged far more aggressively than the canonical track.
type ObservationRepo struct {
	tx pgx.Tx
}

func NewObservationRepo(tx pgx.Tx) *ObservationRepo { return &ObservationRepo{tx: tx} }

func (r *ObservationRepo) Insert(ctx context.Context, o models.Observation) error {
	const q = `
		INSERT INTO observations (mmsi, timestamp_utc, source, lat, lon, received_utc)
		VALUES ($1,$2,$3,$4,$5,$6)`
	if _, err := r.tx.Exec(ctx, q, o.MMSI, o.TimestampUTC, o.Source, o.Lat, o.Lon, o.ReceivedUTC); err != nil {
		return fmt.Errorf("store: inserting observation: %w", err)
	}
	return nil
}

// ForMMSIAt returns every source's echo of mmsi within toleranceSeconds of
// ts, the raw material cross_receiver_disagreement compares pairwise.
func (r *ObservationRepo) ForMMSIAt(ctx context.Context, mmsi string, ts time.Time, toleranceSeconds int) ([]models.Observation, error) {
	const q = `
		SELECT mmsi, timestamp_utc, source, lat, lon, received_utc
		FROM observations
		WHERE mmsi = $1 AND timestamp_utc BETWEEN $2 AND $3
		ORDER BY timestamp_utc ASC`
	window := time.Duration(toleranceSeconds) * time.Second
	rows, err := r.tx.Query(ctx, q, mmsi, ts.Add(-window), ts.Add(window))
	if err != nil {
		return nil, fmt.Errorf("store: querying observations: %w", err)
	}
	defer rows.Close()

	var out []models.Observation
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.MMSI, &o.TimestampUTC, &o.Source, &o.Lat, &o.Lon, &o.ReceivedUTC); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes observations received before cutoff. The caller
// owns the surrounding transaction and its commit; this method issues a
// single statement and does not commit on its own (§5 "purge_old does not
// autocommit; the scheduler's transaction boundary is authoritative").
func (r *ObservationRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM observations WHERE received_utc < $1`
	tag, err := r.tx.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: purging observations: %w", err)
	}
	return tag.RowsAffected(), nil
}
