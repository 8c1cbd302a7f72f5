package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/radiancefleet/core/pkg/models"
)

// PositionRepo persists the canonical per-vessel AIS track.
type PositionRepo struct {
	tx pgx.Tx
}

func NewPositionRepo(tx pgx.Tx) *PositionRepo { return &PositionRepo{tx: tx} }

// Insert records a position report, silently deduplicating on the
// (vessel_id, timestamp_utc) natural key: repeated ingestion of the same
// AIS message (common across overlapping feed windows) must not create
// duplicate track points (§4.1 "position dedup is on (vessel, timestamp)").
func (r *PositionRepo) Insert(ctx context.Context, p models.Position) (inserted bool, err error) {
	const q = `
		INSERT INTO positions
			(vessel_id, timestamp_utc, lat, lon, sog_knots, cog_degrees,
			 heading_degrees, nav_status_code, draught_meters, destination,
			 ais_class, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (vessel_id, timestamp_utc) DO NOTHING`
	tag, err := r.tx.Exec(ctx, q, p.VesselID, p.TimestampUTC, p.Lat, p.Lon,
		p.SOGKnots, p.COGDegrees, p.HeadingDegrees, p.NavStatusCode,
		p.DraughtMeters, p.Destination, string(p.AISClass), p.Source)
	if err != nil {
		return false, fmt.Errorf("store: inserting position: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// LatestBefore returns the most recent position for vesselID strictly
// before cutoff, used by gap detection to find the pre-gap anchor point.
func (r *PositionRepo) LatestBefore(ctx context.Context, vesselID int64, cutoff time.Time) (models.Position, bool, error) {
	const q = `
		SELECT id, vessel_id, timestamp_utc, lat, lon, sog_knots, cog_degrees,
		       heading_degrees, nav_status_code, draught_meters, destination,
		       ais_class, source
		FROM positions
		WHERE vessel_id = $1 AND timestamp_utc < $2
		ORDER BY timestamp_utc DESC
		LIMIT 1`
	row := r.tx.QueryRow(ctx, q, vesselID, cutoff)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Position{}, false, nil
	}
	if err != nil {
		return models.Position{}, false, fmt.Errorf("store: querying latest position: %w", err)
	}
	return p, true, nil
}

// Track returns all positions for vesselID within [from, to], ordered by
// time, for detectors that need a contiguous window (loitering, STS,
// track-naturalness).
func (r *PositionRepo) Track(ctx context.Context, vesselID int64, from, to time.Time) ([]models.Position, error) {
	const q = `
		SELECT id, vessel_id, timestamp_utc, lat, lon, sog_knots, cog_degrees,
		       heading_degrees, nav_status_code, draught_meters, destination,
		       ais_class, source
		FROM positions
		WHERE vessel_id = $1 AND timestamp_utc BETWEEN $2 AND $3
		ORDER BY timestamp_utc ASC`
	rows, err := r.tx.Query(ctx, q, vesselID, from, to)
	if err != nil {
		return nil, fmt.Errorf("store: querying track: %w", err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning track row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InWindow returns every position across all vessels within [from, to],
// ordered by time, for the fleet-wide passes (STS, convoy) that index
// positions by grid cell and time bucket rather than per-vessel track.
func (r *PositionRepo) InWindow(ctx context.Context, from, to time.Time) ([]models.Position, error) {
	const q = `
		SELECT id, vessel_id, timestamp_utc, lat, lon, sog_knots, cog_degrees,
		       heading_degrees, nav_status_code, draught_meters, destination,
		       ais_class, source
		FROM positions
		WHERE timestamp_utc BETWEEN $1 AND $2
		ORDER BY timestamp_utc ASC`
	rows, err := r.tx.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("store: querying fleet-wide window: %w", err)
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning fleet-wide window row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ByID returns a single position by its primary key, used by the evidence
// builder to resolve a gap event's recorded start/end point IDs.
func (r *PositionRepo) ByID(ctx context.Context, id int64) (models.Position, bool, error) {
	const q = `
		SELECT id, vessel_id, timestamp_utc, lat, lon, sog_knots, cog_degrees,
		       heading_degrees, nav_status_code, draught_meters, destination,
		       ais_class, source
		FROM positions WHERE id = $1`
	p, err := scanPosition(r.tx.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Position{}, false, nil
	}
	if err != nil {
		return models.Position{}, false, fmt.Errorf("store: querying position %d: %w", id, err)
	}
	return p, true, nil
}

// NearbyVessels returns vessel IDs with a position inside bbox at
// approximately ts (within toleranceMinutes), used by STS-transfer and
// convoy detection to find co-located vessels.
func (r *PositionRepo) NearbyVessels(ctx context.Context, bbox models.BoundingBox, ts time.Time, toleranceMinutes int) ([]int64, error) {
	const q = `
		SELECT DISTINCT vessel_id
		FROM positions
		WHERE lat BETWEEN $1 AND $2 AND lon BETWEEN $3 AND $4
		  AND timestamp_utc BETWEEN $5 AND $6`
	window := time.Duration(toleranceMinutes) * time.Minute
	rows, err := r.tx.Query(ctx, q, bbox.MinLat, bbox.MaxLat, bbox.MinLon, bbox.MaxLon,
		ts.Add(-window), ts.Add(window))
	if err != nil {
		return nil, fmt.Errorf("store: querying nearby vessels: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanPosition(row pgx.Row) (models.Position, error) {
	var p models.Position
	var aisClass string
	err := row.Scan(&p.ID, &p.VesselID, &p.TimestampUTC, &p.Lat, &p.Lon,
		&p.SOGKnots, &p.COGDegrees, &p.HeadingDegrees, &p.NavStatusCode,
		&p.DraughtMeters, &p.Destination, &aisClass, &p.Source)
	if err != nil {
		return models.Position{}, err
	}
	p.AISClass = models.AISClass(aisClass)
	return p, nil
}
