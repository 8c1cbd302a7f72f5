package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/radiancefleet/core/pkg/models"
)

// Every event repository in this file follows the same contract: detectors
// are idempotent, so Insert checks the event's natural key before writing
// and reports whether a new row was created. Re-running a detector over an
// already-scored window must not duplicate events or disturb an analyst's
// AnalystStatus on the existing row (§4.2 "detectors are idempotent").

// GapEventRepo persists AIS-silence events.
type GapEventRepo struct{ tx pgx.Tx }

func NewGapEventRepo(tx pgx.Tx) *GapEventRepo { return &GapEventRepo{tx: tx} }

func (r *GapEventRepo) Insert(ctx context.Context, e models.GapEvent) (int64, bool, error) {
	const existsQ = `SELECT id FROM gap_events WHERE vessel_id = $1 AND start_utc = $2`
	var id int64
	err := r.tx.QueryRow(ctx, existsQ, e.VesselID, e.StartUTC).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("store: checking gap event dedup: %w", err)
	}

	const q = `
		INSERT INTO gap_events
			(vessel_id, start_utc, end_utc, duration_hours, start_point_id,
			 end_point_id, pre_gap_sog_knots, actual_gap_distance_nm,
			 max_plausible_distance_nm, velocity_plausibility_ratio,
			 impossible_speed_flag, corridor_id, in_dark_zone, is_feed_outage,
			 coverage_quality, risk_score, analyst_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,'new')
		RETURNING id`
	err = r.tx.QueryRow(ctx, q, e.VesselID, e.StartUTC, e.EndUTC, e.DurationHours,
		e.StartPointID, e.EndPointID, e.PreGapSOGKnots, e.ActualGapDistanceNM,
		e.MaxPlausibleDistanceNM, e.VelocityPlausibilityRatio, e.ImpossibleSpeedFlag,
		e.CorridorID, e.InDarkZone, e.IsFeedOutage, string(e.CoverageQuality), e.RiskScore,
	).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("store: inserting gap event: %w", err)
	}
	return id, true, nil
}

// ByID returns one gap event, used by the evidence builder to load the
// event an analyst is exporting.
func (r *GapEventRepo) ByID(ctx context.Context, id int64) (models.GapEvent, bool, error) {
	const q = `
		SELECT id, vessel_id, start_utc, end_utc, duration_hours, start_point_id,
		       end_point_id, pre_gap_sog_knots, actual_gap_distance_nm,
		       max_plausible_distance_nm, velocity_plausibility_ratio,
		       impossible_speed_flag, corridor_id, in_dark_zone, is_feed_outage,
		       coverage_quality, risk_score, analyst_status
		FROM gap_events WHERE id = $1`
	var e models.GapEvent
	var coverage, status string
	err := r.tx.QueryRow(ctx, q, id).Scan(&e.ID, &e.VesselID, &e.StartUTC, &e.EndUTC, &e.DurationHours,
		&e.StartPointID, &e.EndPointID, &e.PreGapSOGKnots, &e.ActualGapDistanceNM,
		&e.MaxPlausibleDistanceNM, &e.VelocityPlausibilityRatio, &e.ImpossibleSpeedFlag,
		&e.CorridorID, &e.InDarkZone, &e.IsFeedOutage, &coverage, &e.RiskScore, &status,
	)
	if err == pgx.ErrNoRows {
		return models.GapEvent{}, false, nil
	}
	if err != nil {
		return models.GapEvent{}, false, fmt.Errorf("store: querying gap event %d: %w", id, err)
	}
	e.CoverageQuality = models.CoverageQuality(coverage)
	e.AnalystStatus = models.AnalystStatus(status)
	return e, true, nil
}

// OpenSince returns gap events for vesselID starting on or after since,
// used by the feed-outage detector to gather a candidate cohort.
func (r *GapEventRepo) OpenSince(ctx context.Context, vesselID int64, since time.Time) ([]models.GapEvent, error) {
	const q = `
		SELECT id, vessel_id, start_utc, end_utc, duration_hours, start_point_id,
		       end_point_id, pre_gap_sog_knots, actual_gap_distance_nm,
		       max_plausible_distance_nm, velocity_plausibility_ratio,
		       impossible_speed_flag, corridor_id, in_dark_zone, is_feed_outage,
		       coverage_quality, risk_score, analyst_status
		FROM gap_events WHERE vessel_id = $1 AND start_utc >= $2 ORDER BY start_utc`
	rows, err := r.tx.Query(ctx, q, vesselID, since)
	if err != nil {
		return nil, fmt.Errorf("store: querying gap events: %w", err)
	}
	defer rows.Close()
	var out []models.GapEvent
	for rows.Next() {
		var e models.GapEvent
		var coverage, status string
		if err := rows.Scan(&e.ID, &e.VesselID, &e.StartUTC, &e.EndUTC, &e.DurationHours,
			&e.StartPointID, &e.EndPointID, &e.PreGapSOGKnots, &e.ActualGapDistanceNM,
			&e.MaxPlausibleDistanceNM, &e.VelocityPlausibilityRatio, &e.ImpossibleSpeedFlag,
			&e.CorridorID, &e.InDarkZone, &e.IsFeedOutage, &coverage, &e.RiskScore, &status,
		); err != nil {
			return nil, err
		}
		e.CoverageQuality = models.CoverageQuality(coverage)
		e.AnalystStatus = models.AnalystStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Straddles reports whether t falls inside an open gap window for
// vesselID, the draught detector's guard against attributing a loaded/
// ballast transition to a period with no AIS coverage to confirm it.
func (r *GapEventRepo) Straddles(ctx context.Context, vesselID int64, t time.Time) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1 FROM gap_events
			WHERE vessel_id = $1 AND start_utc <= $2 AND end_utc >= $2
		)`
	var found bool
	if err := r.tx.QueryRow(ctx, q, vesselID, t).Scan(&found); err != nil {
		return false, fmt.Errorf("store: checking gap straddle: %w", err)
	}
	return found, nil
}

// InWindow returns every gap event starting within [from, to], the cohort
// the scoring step re-evaluates each run regardless of which vessel they
// belong to.
func (r *GapEventRepo) InWindow(ctx context.Context, from, to time.Time) ([]models.GapEvent, error) {
	const q = `
		SELECT id, vessel_id, start_utc, end_utc, duration_hours, start_point_id,
		       end_point_id, pre_gap_sog_knots, actual_gap_distance_nm,
		       max_plausible_distance_nm, velocity_plausibility_ratio,
		       impossible_speed_flag, corridor_id, in_dark_zone, is_feed_outage,
		       coverage_quality, risk_score, analyst_status
		FROM gap_events WHERE start_utc BETWEEN $1 AND $2 ORDER BY start_utc`
	rows, err := r.tx.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("store: querying gap events in window: %w", err)
	}
	defer rows.Close()
	var out []models.GapEvent
	for rows.Next() {
		var e models.GapEvent
		var coverage, status string
		if err := rows.Scan(&e.ID, &e.VesselID, &e.StartUTC, &e.EndUTC, &e.DurationHours,
			&e.StartPointID, &e.EndPointID, &e.PreGapSOGKnots, &e.ActualGapDistanceNM,
			&e.MaxPlausibleDistanceNM, &e.VelocityPlausibilityRatio, &e.ImpossibleSpeedFlag,
			&e.CorridorID, &e.InDarkZone, &e.IsFeedOutage, &coverage, &e.RiskScore, &status,
		); err != nil {
			return nil, err
		}
		e.CoverageQuality = models.CoverageQuality(coverage)
		e.AnalystStatus = models.AnalystStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateScore persists a gap event's computed risk score and signal
// breakdown (§4.3's engine output), leaving AnalystStatus untouched so
// re-scoring never disturbs an analyst's review progress.
func (r *GapEventRepo) UpdateScore(ctx context.Context, id int64, riskScore int, breakdown map[string]int) error {
	raw, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("store: marshaling gap event breakdown: %w", err)
	}
	const q = `UPDATE gap_events SET risk_score = $2, breakdown = $3 WHERE id = $1`
	if _, err := r.tx.Exec(ctx, q, id, riskScore, raw); err != nil {
		return fmt.Errorf("store: updating gap event %d score: %w", id, err)
	}
	return nil
}

// MarkFeedOutage flips is_feed_outage on a cohort of gap events at once,
// used when the adaptive-threshold detector reclassifies a synchronized
// drop as an upstream outage rather than per-vessel dark activity.
func (r *GapEventRepo) MarkFeedOutage(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE gap_events SET is_feed_outage = true WHERE id = ANY($1)`
	if _, err := r.tx.Exec(ctx, q, ids); err != nil {
		return fmt.Errorf("store: marking feed outage: %w", err)
	}
	return nil
}

// SpoofingAnomalyRepo persists unified spoofing sub-detector findings.
type SpoofingAnomalyRepo struct{ tx pgx.Tx }

func NewSpoofingAnomalyRepo(tx pgx.Tx) *SpoofingAnomalyRepo { return &SpoofingAnomalyRepo{tx: tx} }

func (r *SpoofingAnomalyRepo) Insert(ctx context.Context, a models.SpoofingAnomaly) (int64, bool, error) {
	const existsQ = `
		SELECT id FROM spoofing_anomalies
		WHERE vessel_id = $1 AND type = $2 AND start_utc = $3`
	var id int64
	err := r.tx.QueryRow(ctx, existsQ, a.VesselID, string(a.Type), a.StartUTC).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("store: checking spoofing dedup: %w", err)
	}

	const q = `
		INSERT INTO spoofing_anomalies
			(vessel_id, type, start_utc, end_utc, tier, detail, risk_score, analyst_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,'new')
		RETURNING id`
	err = r.tx.QueryRow(ctx, q, a.VesselID, string(a.Type), a.StartUTC, a.EndUTC,
		a.Tier, a.Detail, a.RiskScore).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("store: inserting spoofing anomaly: %w", err)
	}
	return id, true, nil
}

// ByVesselAndType returns all anomalies of a given type for a vessel,
// used by subsumption rules that need sibling context (e.g. suppressing
// circle_spoof when anchor_spoof already explains the same window).
func (r *SpoofingAnomalyRepo) ByVesselAndType(ctx context.Context, vesselID int64, t models.SpoofingType) ([]models.SpoofingAnomaly, error) {
	const q = `
		SELECT id, vessel_id, type, start_utc, end_utc, tier, detail, risk_score, analyst_status
		FROM spoofing_anomalies WHERE vessel_id = $1 AND type = $2 ORDER BY start_utc`
	rows, err := r.tx.Query(ctx, q, vesselID, string(t))
	if err != nil {
		return nil, fmt.Errorf("store: querying spoofing anomalies: %w", err)
	}
	defer rows.Close()
	var out []models.SpoofingAnomaly
	for rows.Next() {
		var a models.SpoofingAnomaly
		var typ, status string
		if err := rows.Scan(&a.ID, &a.VesselID, &typ, &a.StartUTC, &a.EndUTC, &a.Tier, &a.Detail, &a.RiskScore, &status); err != nil {
			return nil, err
		}
		a.Type = models.SpoofingType(typ)
		a.AnalystStatus = models.AnalystStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// STSTransferRepo persists ship-to-ship transfer detections.
type STSTransferRepo struct{ tx pgx.Tx }

func NewSTSTransferRepo(tx pgx.Tx) *STSTransferRepo { return &STSTransferRepo{tx: tx} }

func (r *STSTransferRepo) Insert(ctx context.Context, e models.STSTransferEvent) (int64, bool, error) {
	lo, hi := models.PairKey(e.Vessel1ID, e.Vessel2ID)
	const existsQ = `
		SELECT id FROM sts_transfer_events
		WHERE vessel1_id = $1 AND vessel2_id = $2 AND start_utc = $3`
	var id int64
	err := r.tx.QueryRow(ctx, existsQ, lo, hi, e.StartUTC).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("store: checking sts dedup: %w", err)
	}

	const q = `
		INSERT INTO sts_transfer_events
			(vessel1_id, vessel2_id, start_utc, end_utc, mean_lat, mean_lon,
			 detection_type, corridor_id, risk_score, analyst_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,'new')
		RETURNING id`
	err = r.tx.QueryRow(ctx, q, lo, hi, e.StartUTC, e.EndUTC, e.MeanLat, e.MeanLon,
		string(e.DetectionType), e.CorridorID, e.RiskScore).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("store: inserting sts transfer event: %w", err)
	}
	return id, true, nil
}

// ForVesselAround reports whether a spoofing anomaly for vesselID overlaps
// [t-window, t+window], the corroboration check the feed-outage detector
// uses to tell a synchronized AIS blackout from a single vessel actively
// evading (§4.2.2 "corroborated by an independent signal").
func (r *SpoofingAnomalyRepo) ForVesselAround(ctx context.Context, vesselID int64, t time.Time, window time.Duration) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1 FROM spoofing_anomalies
			WHERE vessel_id = $1 AND start_utc BETWEEN $2 AND $3
		)`
	var found bool
	if err := r.tx.QueryRow(ctx, q, vesselID, t.Add(-window), t.Add(window)).Scan(&found); err != nil {
		return false, fmt.Errorf("store: checking spoofing corroboration: %w", err)
	}
	return found, nil
}

// ForVesselAround reports whether vesselID appears in an STS transfer event
// overlapping [t-window, t+window], the sibling corroboration check to
// SpoofingAnomalyRepo.ForVesselAround.
func (r *STSTransferRepo) ForVesselAround(ctx context.Context, vesselID int64, t time.Time, window time.Duration) (bool, error) {
	const q = `
		SELECT EXISTS(
			SELECT 1 FROM sts_transfer_events
			WHERE (vessel1_id = $1 OR vessel2_id = $1) AND start_utc BETWEEN $2 AND $3
		)`
	var found bool
	if err := r.tx.QueryRow(ctx, q, vesselID, t.Add(-window), t.Add(window)).Scan(&found); err != nil {
		return false, fmt.Errorf("store: checking sts corroboration: %w", err)
	}
	return found, nil
}

// LoiteringRepo persists loitering events.
type LoiteringRepo struct{ tx pgx.Tx }

func NewLoiteringRepo(tx pgx.Tx) *LoiteringRepo { return &LoiteringRepo{tx: tx} }

func (r *LoiteringRepo) Insert(ctx context.Context, e models.LoiteringEvent) (int64, bool, error) {
	const existsQ = `SELECT id FROM loitering_events WHERE vessel_id = $1 AND start_utc = $2`
	var id int64
	err := r.tx.QueryRow(ctx, existsQ, e.VesselID, e.StartUTC).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("store: checking loitering dedup: %w", err)
	}

	const q = `
		INSERT INTO loitering_events
			(vessel_id, start_utc, end_utc, median_sog_knots, mean_lat, mean_lon,
			 corridor_id, preceding_gap_id, following_gap_id, risk_score, analyst_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'new')
		RETURNING id`
	err = r.tx.QueryRow(ctx, q, e.VesselID, e.StartUTC, e.EndUTC, e.MedianSOGKnots,
		e.MeanLat, e.MeanLon, e.CorridorID, e.PrecedingGapID, e.FollowingGapID, e.RiskScore).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("store: inserting loitering event: %w", err)
	}
	return id, true, nil
}

// ConvoyRepo persists convoy/floating-storage/arctic-no-ice flag events,
// sharing one table via the Kind discriminator.
type ConvoyRepo struct{ tx pgx.Tx }

func NewConvoyRepo(tx pgx.Tx) *ConvoyRepo { return &ConvoyRepo{tx: tx} }

func (r *ConvoyRepo) Insert(ctx context.Context, e models.ConvoyEvent) (int64, bool, error) {
	lo, hi := models.PairKey(e.VesselAID, e.VesselBID)
	const existsQ = `
		SELECT id FROM convoy_events
		WHERE vessel_a_id = $1 AND vessel_b_id = $2 AND kind = $3 AND start_utc = $4`
	var id int64
	err := r.tx.QueryRow(ctx, existsQ, lo, hi, string(e.Kind), e.StartUTC).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("store: checking convoy dedup: %w", err)
	}

	const q = `
		INSERT INTO convoy_events
			(vessel_a_id, vessel_b_id, kind, start_utc, end_utc, risk_score, analyst_status)
		VALUES ($1,$2,$3,$4,$5,$6,'new')
		RETURNING id`
	err = r.tx.QueryRow(ctx, q, lo, hi, string(e.Kind), e.StartUTC, e.EndUTC, e.RiskScore).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("store: inserting convoy event: %w", err)
	}
	return id, true, nil
}

// DraughtChangeRepo persists confirmed loaded/ballast transitions.
type DraughtChangeRepo struct{ tx pgx.Tx }

func NewDraughtChangeRepo(tx pgx.Tx) *DraughtChangeRepo { return &DraughtChangeRepo{tx: tx} }

func (r *DraughtChangeRepo) Insert(ctx context.Context, e models.DraughtChangeEvent) (int64, bool, error) {
	const existsQ = `SELECT id FROM draught_change_events WHERE vessel_id = $1 AND timestamp_utc = $2`
	var id int64
	err := r.tx.QueryRow(ctx, existsQ, e.VesselID, e.TimestampUTC).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("store: checking draught change dedup: %w", err)
	}

	const q = `
		INSERT INTO draught_change_events
			(vessel_id, timestamp_utc, before_meters, after_meters, delta_meters,
			 near_port, is_offshore, near_sts_event, straddles_gap, risk_score, analyst_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'new')
		RETURNING id`
	err = r.tx.QueryRow(ctx, q, e.VesselID, e.TimestampUTC, e.BeforeMeters, e.AfterMeters,
		e.DeltaMeters, e.NearPort, e.IsOffshore, e.NearSTSEvent, e.StraddlesGap, e.RiskScore).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("store: inserting draught change event: %w", err)
	}
	return id, true, nil
}

// MMSICloningRepo persists implied-speed-jump detections attributable to
// two hulls sharing one MMSI.
type MMSICloningRepo struct{ tx pgx.Tx }

func NewMMSICloningRepo(tx pgx.Tx) *MMSICloningRepo { return &MMSICloningRepo{tx: tx} }

func (r *MMSICloningRepo) Insert(ctx context.Context, e models.MMSICloningEvent) (int64, bool, error) {
	const existsQ = `
		SELECT id FROM mmsi_cloning_events
		WHERE vessel_id = $1 AND start_position_id = $2 AND end_position_id = $3`
	var id int64
	err := r.tx.QueryRow(ctx, existsQ, e.VesselID, e.StartPositionID, e.EndPositionID).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("store: checking mmsi cloning dedup: %w", err)
	}

	const q = `
		INSERT INTO mmsi_cloning_events
			(vessel_id, start_position_id, end_position_id, distance_nm, implied_speed_kn,
			 risk_score, analyst_status)
		VALUES ($1,$2,$3,$4,$5,$6,'new')
		RETURNING id`
	err = r.tx.QueryRow(ctx, q, e.VesselID, e.StartPositionID, e.EndPositionID,
		e.DistanceNM, e.ImpliedSpeedKn, e.RiskScore).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("store: inserting mmsi cloning event: %w", err)
	}
	return id, true, nil
}

// NameChangeRepo persists vessel name/callsign changes, the raw material
// for the identity-swap (handshake) sub-detector.
type NameChangeRepo struct{ tx pgx.Tx }

func NewNameChangeRepo(tx pgx.Tx) *NameChangeRepo { return &NameChangeRepo{tx: tx} }

func (r *NameChangeRepo) Insert(ctx context.Context, c models.NameChange) (int64, bool, error) {
	const existsQ = `
		SELECT id FROM name_changes
		WHERE vessel_id = $1 AND observed_utc = $2 AND new_name = $3`
	var id int64
	err := r.tx.QueryRow(ctx, existsQ, c.VesselID, c.ObservedUTC, c.NewName).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != pgx.ErrNoRows {
		return 0, false, fmt.Errorf("store: checking name change dedup: %w", err)
	}

	const q = `
		INSERT INTO name_changes (vessel_id, old_name, new_name, observed_utc)
		VALUES ($1,$2,$3,$4)
		RETURNING id`
	err = r.tx.QueryRow(ctx, q, c.VesselID, c.OldName, c.NewName, c.ObservedUTC).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("store: inserting name change: %w", err)
	}
	return id, true, nil
}

// Around returns vesselID's name changes observed within window of t,
// used to test whether a meeting at t coincided with a name swap.
func (r *NameChangeRepo) Around(ctx context.Context, vesselID int64, t time.Time, window time.Duration) ([]models.NameChange, error) {
	const q = `
		SELECT id, vessel_id, old_name, new_name, observed_utc
		FROM name_changes
		WHERE vessel_id = $1 AND observed_utc BETWEEN $2 AND $3
		ORDER BY observed_utc ASC`
	rows, err := r.tx.Query(ctx, q, vesselID, t.Add(-window), t.Add(window))
	if err != nil {
		return nil, fmt.Errorf("store: querying name changes: %w", err)
	}
	defer rows.Close()

	var out []models.NameChange
	for rows.Next() {
		var c models.NameChange
		if err := rows.Scan(&c.ID, &c.VesselID, &c.OldName, &c.NewName, &c.ObservedUTC); err != nil {
			return nil, fmt.Errorf("store: scanning name change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
