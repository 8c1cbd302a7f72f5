package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/radiancefleet/core/pkg/models"
)

// VesselRepo exposes vessel-identity queries over a transaction supplied by
// the caller (the outer transaction is owned by the ingestion worker, not
// by this repository — §5).
type VesselRepo struct {
	tx pgx.Tx
}

func NewVesselRepo(tx pgx.Tx) *VesselRepo { return &VesselRepo{tx: tx} }

// FlagDeriver computes a flag and flag-risk category from an MMSI's MID
// prefix. Implemented in internal/ingest/normalize and injected here to
// avoid a store -> ingest import cycle.
type FlagDeriver func(mmsi string) (flag string, risk models.FlagRisk)

// UpsertVessel resolves a vessel by MMSI, creating one if absent.
//
// Because multiple concurrent ingestion workers may race to create the same
// new MMSI, the insert is wrapped in a nested savepoint: on a uniqueness
// violation the savepoint is released (not the outer transaction rolled
// back) and the row is re-queried (§4.1 "Vessel upsert under concurrency",
// §5, §9 "Savepoint / nested transaction for concurrent vessel insert").
func (r *VesselRepo) UpsertVessel(ctx context.Context, mmsi string, derive FlagDeriver) (models.Vessel, error) {
	if v, ok, err := r.findByMMSI(ctx, mmsi); err != nil {
		return models.Vessel{}, err
	} else if ok {
		return r.resolveCanonical(ctx, v)
	}

	flag, risk := derive(mmsi)
	now := time.Now().UTC()

	const savepoint = "vessel_insert_sp"
	if _, err := r.tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return models.Vessel{}, fmt.Errorf("store: opening savepoint: %w", err)
	}

	insertSQL := `
		INSERT INTO vessels (mmsi, flag, flag_risk, mmsi_first_seen_utc, ais_class)
		VALUES ($1, $2, $3, $4, 'unknown')
		RETURNING id`

	var id int64
	err := r.tx.QueryRow(ctx, insertSQL, mmsi, flag, string(risk), now).Scan(&id)
	if err == nil {
		if _, relErr := r.tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); relErr != nil {
			return models.Vessel{}, fmt.Errorf("store: releasing savepoint: %w", relErr)
		}
		return models.Vessel{
			ID: id, MMSI: mmsi, Flag: flag, FlagRisk: risk,
			MMSIFirstSeenUTC: now, AISClass: models.AISClassUnknown,
		}, nil
	}

	if !isUniqueViolation(err) {
		return models.Vessel{}, fmt.Errorf("store: inserting vessel: %w", err)
	}

	// Another worker won the race. Roll back to the savepoint (undoing only
	// the failed insert, never the outer transaction) and re-query.
	if _, rbErr := r.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
		return models.Vessel{}, fmt.Errorf("store: rolling back to savepoint: %w", rbErr)
	}
	if _, relErr := r.tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); relErr != nil {
		return models.Vessel{}, fmt.Errorf("store: releasing savepoint after conflict: %w", relErr)
	}

	v, ok, err := r.findByMMSI(ctx, mmsi)
	if err != nil {
		return models.Vessel{}, err
	}
	if !ok {
		return models.Vessel{}, fmt.Errorf("store: vessel %s vanished after uniqueness conflict", mmsi)
	}
	return r.resolveCanonical(ctx, v)
}

func (r *VesselRepo) findByMMSI(ctx context.Context, mmsi string) (models.Vessel, bool, error) {
	const q = `
		SELECT id, mmsi, imo, name, callsign, flag, flag_risk, vessel_type,
		       deadweight_tonnes, year_built, ais_class, mmsi_first_seen_utc,
		       merged_into_vessel_id
		FROM vessels WHERE mmsi = $1`
	row := r.tx.QueryRow(ctx, q, mmsi)
	v, err := scanVessel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Vessel{}, false, nil
	}
	if err != nil {
		return models.Vessel{}, false, fmt.Errorf("store: querying vessel by mmsi: %w", err)
	}
	return v, true, nil
}

func scanVessel(row pgx.Row) (models.Vessel, error) {
	var v models.Vessel
	var imo, name, callsign, vesselType *string
	var dwt *float64
	var yearBuilt *int
	var mergedInto *int64
	err := row.Scan(&v.ID, &v.MMSI, &imo, &name, &callsign, &v.Flag, &v.FlagRisk,
		&vesselType, &dwt, &yearBuilt, &v.AISClass, &v.MMSIFirstSeenUTC, &mergedInto)
	if err != nil {
		return models.Vessel{}, err
	}
	if imo != nil {
		v.IMO = *imo
	}
	if name != nil {
		v.Name = *name
	}
	if callsign != nil {
		v.Callsign = *callsign
	}
	if vesselType != nil {
		v.VesselType = *vesselType
	}
	if dwt != nil {
		v.DeadweightTonnes = *dwt
	}
	if yearBuilt != nil {
		v.YearBuilt = *yearBuilt
	}
	v.MergedIntoVesselID = mergedInto
	return v, nil
}

// resolveCanonical walks merged_into_vessel_id chains to the non-absorbed
// canonical vessel, guarding against cycles with a 10-hop limit (§3
// "chains must be acyclic and resolve to a non-absorbed canonical within
// <=10 hops").
func (r *VesselRepo) resolveCanonical(ctx context.Context, v models.Vessel) (models.Vessel, error) {
	const maxHops = 10
	current := v
	for hop := 0; current.IsAbsorbed(); hop++ {
		if hop >= maxHops {
			return models.Vessel{}, fmt.Errorf("store: merge chain for vessel %d exceeds %d hops", v.ID, maxHops)
		}
		const q = `
			SELECT id, mmsi, imo, name, callsign, flag, flag_risk, vessel_type,
			       deadweight_tonnes, year_built, ais_class, mmsi_first_seen_utc,
			       merged_into_vessel_id
			FROM vessels WHERE id = $1`
		row := r.tx.QueryRow(ctx, q, *current.MergedIntoVesselID)
		next, err := scanVessel(row)
		if err != nil {
			return models.Vessel{}, fmt.Errorf("store: resolving merge chain: %w", err)
		}
		current = next
	}
	return current, nil
}

// ByID returns a single vessel by primary key, resolving through
// resolveCanonical so callers always see the absorbed-or-not final vessel
// rather than a dark placeholder row.
func (r *VesselRepo) ByID(ctx context.Context, id int64) (models.Vessel, bool, error) {
	const q = `
		SELECT id, mmsi, imo, name, callsign, flag, flag_risk, vessel_type,
		       deadweight_tonnes, year_built, ais_class, mmsi_first_seen_utc,
		       merged_into_vessel_id
		FROM vessels WHERE id = $1`
	v, err := scanVessel(r.tx.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Vessel{}, false, nil
	}
	if err != nil {
		return models.Vessel{}, false, fmt.Errorf("store: querying vessel %d: %w", id, err)
	}
	resolved, err := r.resolveCanonical(ctx, v)
	if err != nil {
		return models.Vessel{}, false, err
	}
	return resolved, true, nil
}

// AllActive returns every vessel ID that has not been absorbed into
// another vessel via identity resolution, the per-run cohort the
// orchestrator's behavior-detector step iterates.
func (r *VesselRepo) AllActive(ctx context.Context) ([]int64, error) {
	const q = `SELECT id FROM vessels WHERE merged_into_vessel_id IS NULL`
	rows, err := r.tx.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: listing active vessels: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UpdateLaidUpFlags persists the laid-up classification computed by the
// loitering detector's daily-position sweep (§4.2.4).
func (r *VesselRepo) UpdateLaidUpFlags(ctx context.Context, vesselID int64, laidUp30d, laidUp60d, inSTSZone bool) error {
	const q = `
		UPDATE vessels
		SET laid_up_30d = $2, laid_up_60d = $3, laid_up_in_sts_zone = $4
		WHERE id = $1`
	if _, err := r.tx.Exec(ctx, q, vesselID, laidUp30d, laidUp60d, inSTSZone); err != nil {
		return fmt.Errorf("store: updating laid-up flags for vessel %d: %w", vesselID, err)
	}
	return nil
}

// MergeInto sets darkVesselID's merged_into_vessel_id to canonicalID,
// executing an identity-resolution merge (§4.5). Derived rows (positions,
// detector events) are left addressed by the absorbed vessel's own ID;
// readers resolve to the canonical vessel via resolveCanonical rather than
// this call rewriting foreign keys in bulk.
func (r *VesselRepo) MergeInto(ctx context.Context, darkVesselID, canonicalID int64) error {
	if darkVesselID == canonicalID {
		return fmt.Errorf("store: cannot merge vessel %d into itself", darkVesselID)
	}
	const q = `UPDATE vessels SET merged_into_vessel_id = $2 WHERE id = $1`
	if _, err := r.tx.Exec(ctx, q, darkVesselID, canonicalID); err != nil {
		return fmt.Errorf("store: merging vessel %d into %d: %w", darkVesselID, canonicalID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
