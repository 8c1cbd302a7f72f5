package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/radiancefleet/core/pkg/models"
)

// MergeCandidateRepo persists identity-resolution proposals (§4.5).
type MergeCandidateRepo struct{ tx pgx.Tx }

func NewMergeCandidateRepo(tx pgx.Tx) *MergeCandidateRepo { return &MergeCandidateRepo{tx: tx} }

func (r *MergeCandidateRepo) Insert(ctx context.Context, c models.MergeCandidate) (int64, error) {
	breakdown, err := json.Marshal(c.ScoreBreakdown)
	if err != nil {
		return 0, fmt.Errorf("store: marshaling merge score breakdown: %w", err)
	}
	const q = `
		INSERT INTO merge_candidates
			(dark_vessel_id, new_vessel_id, confidence, status, score_breakdown, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id`
	var id int64
	err = r.tx.QueryRow(ctx, q, c.DarkVesselID, c.NewVesselID, c.Confidence,
		string(c.Status), breakdown, c.CreatedAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: inserting merge candidate: %w", err)
	}
	return id, nil
}

func (r *MergeCandidateRepo) UpdateStatus(ctx context.Context, id int64, status models.MergeCandidateStatus, decidedAt interface{}) error {
	const q = `UPDATE merge_candidates SET status = $1, decided_at = $2 WHERE id = $3`
	if _, err := r.tx.Exec(ctx, q, string(status), decidedAt, id); err != nil {
		return fmt.Errorf("store: updating merge candidate status: %w", err)
	}
	return nil
}

// ByStatus returns candidates in a given status, used both by the
// auto-merge sweep (PENDING above threshold) and by chain construction
// (AUTO_MERGED, ANALYST_MERGED).
func (r *MergeCandidateRepo) ByStatus(ctx context.Context, status models.MergeCandidateStatus) ([]models.MergeCandidate, error) {
	const q = `
		SELECT id, dark_vessel_id, new_vessel_id, confidence, status, score_breakdown, created_at, decided_at
		FROM merge_candidates WHERE status = $1`
	rows, err := r.tx.Query(ctx, q, string(status))
	if err != nil {
		return nil, fmt.Errorf("store: querying merge candidates: %w", err)
	}
	defer rows.Close()

	var out []models.MergeCandidate
	for rows.Next() {
		var c models.MergeCandidate
		var st string
		var breakdown []byte
		if err := rows.Scan(&c.ID, &c.DarkVesselID, &c.NewVesselID, &c.Confidence,
			&st, &breakdown, &c.CreatedAt, &c.DecidedAt); err != nil {
			return nil, err
		}
		c.Status = models.MergeCandidateStatus(st)
		if err := json.Unmarshal(breakdown, &c.ScoreBreakdown); err != nil {
			return nil, fmt.Errorf("store: unmarshaling merge score breakdown: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MergeOperationRepo persists executed merges.
type MergeOperationRepo struct{ tx pgx.Tx }

func NewMergeOperationRepo(tx pgx.Tx) *MergeOperationRepo { return &MergeOperationRepo{tx: tx} }

func (r *MergeOperationRepo) Insert(ctx context.Context, op models.MergeOperation) (int64, error) {
	const q = `
		INSERT INTO merge_operations
			(candidate_id, dark_vessel_id, canonical_vessel_id, executed_at, executed_by)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`
	var id int64
	err := r.tx.QueryRow(ctx, q, op.CandidateID, op.DarkVesselID, op.CanonicalVesselID,
		op.ExecutedAt, op.ExecutedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: inserting merge operation: %w", err)
	}
	return id, nil
}

// ForVessel returns every merge operation where vesselID was absorbed or
// was the canonical target, the edge set the BFS chain builder walks.
func (r *MergeOperationRepo) ForVessel(ctx context.Context, vesselID int64) ([]models.MergeOperation, error) {
	const q = `
		SELECT id, candidate_id, dark_vessel_id, canonical_vessel_id, executed_at, executed_by
		FROM merge_operations WHERE dark_vessel_id = $1 OR canonical_vessel_id = $1`
	rows, err := r.tx.Query(ctx, q, vesselID)
	if err != nil {
		return nil, fmt.Errorf("store: querying merge operations: %w", err)
	}
	defer rows.Close()

	var out []models.MergeOperation
	for rows.Next() {
		var op models.MergeOperation
		if err := rows.Scan(&op.ID, &op.CandidateID, &op.DarkVesselID, &op.CanonicalVesselID,
			&op.ExecutedAt, &op.ExecutedBy); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// MergeChainRepo persists the BFS-constructed audit trail of absorptions.
type MergeChainRepo struct{ tx pgx.Tx }

func NewMergeChainRepo(tx pgx.Tx) *MergeChainRepo { return &MergeChainRepo{tx: tx} }

func (r *MergeChainRepo) Upsert(ctx context.Context, chain models.MergeChain) (int64, error) {
	links, err := json.Marshal(chain.CandidateIDs)
	if err != nil {
		return 0, fmt.Errorf("store: marshaling merge chain links: %w", err)
	}
	const q = `
		INSERT INTO merge_chains (root_vessel_id, links_json)
		VALUES ($1, $2)
		ON CONFLICT (root_vessel_id) DO UPDATE SET links_json = EXCLUDED.links_json
		RETURNING id`
	var id int64
	if err := r.tx.QueryRow(ctx, q, chain.RootVesselID, links).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: upserting merge chain: %w", err)
	}
	return id, nil
}

// Invalidate removes a merge chain, used when an analyst rejects a
// candidate that had already contributed a link to the chain.
func (r *MergeChainRepo) Invalidate(ctx context.Context, rootVesselID int64) error {
	const q = `DELETE FROM merge_chains WHERE root_vessel_id = $1`
	if _, err := r.tx.Exec(ctx, q, rootVesselID); err != nil {
		return fmt.Errorf("store: invalidating merge chain: %w", err)
	}
	return nil
}

func (r *MergeChainRepo) ByRoot(ctx context.Context, rootVesselID int64) (models.MergeChain, bool, error) {
	const q = `SELECT id, root_vessel_id, links_json FROM merge_chains WHERE root_vessel_id = $1`
	var chain models.MergeChain
	var links []byte
	err := r.tx.QueryRow(ctx, q, rootVesselID).Scan(&chain.ID, &chain.RootVesselID, &links)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MergeChain{}, false, nil
	}
	if err != nil {
		return models.MergeChain{}, false, fmt.Errorf("store: querying merge chain: %w", err)
	}
	chain.LinksJSON = string(links)
	if err := json.Unmarshal(links, &chain.CandidateIDs); err != nil {
		return models.MergeChain{}, false, fmt.Errorf("store: unmarshaling merge chain links: %w", err)
	}
	return chain, true, nil
}

// OwnerRepo persists normalized owner entities and their sanction status.
type OwnerRepo struct{ tx pgx.Tx }

func NewOwnerRepo(tx pgx.Tx) *OwnerRepo { return &OwnerRepo{tx: tx} }

func (r *OwnerRepo) Upsert(ctx context.Context, o models.Owner) (int64, error) {
	const q = `
		INSERT INTO owners (normalized_name, country, address, parent_owner_id, is_sanctioned)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (normalized_name, country) DO UPDATE
			SET address = EXCLUDED.address,
			    parent_owner_id = EXCLUDED.parent_owner_id,
			    is_sanctioned = EXCLUDED.is_sanctioned
		RETURNING id`
	var id int64
	err := r.tx.QueryRow(ctx, q, o.NormalizedName, o.Country, o.Address, o.ParentOwnerID, o.IsSanctioned).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: upserting owner: %w", err)
	}
	return id, nil
}

func (r *OwnerRepo) ParentChain(ctx context.Context, ownerID int64, maxDepth int) ([]models.Owner, error) {
	var chain []models.Owner
	current := ownerID
	for depth := 0; depth < maxDepth; depth++ {
		const q = `SELECT id, normalized_name, country, address, parent_owner_id, is_sanctioned FROM owners WHERE id = $1`
		var o models.Owner
		err := r.tx.QueryRow(ctx, q, current).Scan(&o.ID, &o.NormalizedName, &o.Country, &o.Address, &o.ParentOwnerID, &o.IsSanctioned)
		if errors.Is(err, pgx.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("store: walking owner parent chain: %w", err)
		}
		chain = append(chain, o)
		if o.ParentOwnerID == nil {
			break
		}
		current = *o.ParentOwnerID
	}
	return chain, nil
}

// OwnershipChangeRepo persists registered-owner transitions.
type OwnershipChangeRepo struct{ tx pgx.Tx }

func NewOwnershipChangeRepo(tx pgx.Tx) *OwnershipChangeRepo { return &OwnershipChangeRepo{tx: tx} }

func (r *OwnershipChangeRepo) Insert(ctx context.Context, c models.OwnershipChangeEvent) error {
	const q = `
		INSERT INTO ownership_change_events (vessel_id, old_owner_id, new_owner_id, changed_at)
		VALUES ($1,$2,$3,$4)`
	if _, err := r.tx.Exec(ctx, q, c.VesselID, c.OldOwnerID, c.NewOwnerID, c.ChangedAt); err != nil {
		return fmt.Errorf("store: inserting ownership change: %w", err)
	}
	return nil
}

func (r *OwnershipChangeRepo) CountSince(ctx context.Context, vesselID int64, sinceMonthsAgo interface{}) (int, error) {
	const q = `
		SELECT count(*) FROM ownership_change_events
		WHERE vessel_id = $1 AND changed_at >= $2`
	var n int
	if err := r.tx.QueryRow(ctx, q, vesselID, sinceMonthsAgo).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting ownership changes: %w", err)
	}
	return n, nil
}

// VesselsForOwner returns every vessel ID currently registered to ownerID,
// the edge set the shell-chain and cluster walks need but that doesn't
// belong on Owner itself (an owner doesn't know its vessels, only the
// reverse foreign key does).
func (r *OwnershipChangeRepo) VesselsForOwner(ctx context.Context, ownerID int64) ([]int64, error) {
	const q = `SELECT id FROM vessels WHERE owner_id = $1`
	rows, err := r.tx.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: querying vessels for owner %d: %w", ownerID, err)
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

// OwnerClusterRepo persists the owner clusters computed by internal/ownership.
type OwnerClusterRepo struct{ tx pgx.Tx }

func NewOwnerClusterRepo(tx pgx.Tx) *OwnerClusterRepo { return &OwnerClusterRepo{tx: tx} }

func (r *OwnerClusterRepo) Upsert(ctx context.Context, c models.OwnerCluster) (int64, error) {
	ownerIDs, err := json.Marshal(c.OwnerIDs)
	if err != nil {
		return 0, fmt.Errorf("store: marshaling owner cluster members: %w", err)
	}
	if c.ID != 0 {
		const q = `UPDATE owner_clusters SET owner_ids = $2, is_sanctioned = $3 WHERE id = $1`
		if _, err := r.tx.Exec(ctx, q, c.ID, ownerIDs, c.IsSanctioned); err != nil {
			return 0, fmt.Errorf("store: updating owner cluster %d: %w", c.ID, err)
		}
		return c.ID, nil
	}
	const q = `INSERT INTO owner_clusters (owner_ids, is_sanctioned) VALUES ($1,$2) RETURNING id`
	var id int64
	if err := r.tx.QueryRow(ctx, q, ownerIDs, c.IsSanctioned).Scan(&id); err != nil {
		return 0, fmt.Errorf("store: inserting owner cluster: %w", err)
	}
	return id, nil
}

func (r *OwnerClusterRepo) ByOwner(ctx context.Context, ownerID int64) (models.OwnerCluster, bool, error) {
	const q = `
		SELECT id, owner_ids, is_sanctioned FROM owner_clusters
		WHERE owner_ids @> to_jsonb($1::bigint)`
	var cluster models.OwnerCluster
	var ownerIDs []byte
	err := r.tx.QueryRow(ctx, q, ownerID).Scan(&cluster.ID, &ownerIDs, &cluster.IsSanctioned)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.OwnerCluster{}, false, nil
	}
	if err != nil {
		return models.OwnerCluster{}, false, fmt.Errorf("store: querying owner cluster for owner %d: %w", ownerID, err)
	}
	if err := json.Unmarshal(ownerIDs, &cluster.OwnerIDs); err != nil {
		return models.OwnerCluster{}, false, fmt.Errorf("store: unmarshaling owner cluster members: %w", err)
	}
	return cluster, true, nil
}

// VesselFingerprintRepo persists per-vessel behavioral feature vectors used
// by internal/identity's fingerprint scoring (Euclidean distance, equally
// weighted features, not Mahalanobis).
type VesselFingerprintRepo struct{ tx pgx.Tx }

func NewVesselFingerprintRepo(tx pgx.Tx) *VesselFingerprintRepo { return &VesselFingerprintRepo{tx: tx} }

func (r *VesselFingerprintRepo) Upsert(ctx context.Context, fp models.VesselFingerprint) error {
	features, err := json.Marshal(fp.Features)
	if err != nil {
		return fmt.Errorf("store: marshaling vessel fingerprint: %w", err)
	}
	const q = `
		INSERT INTO vessel_fingerprints (vessel_id, features)
		VALUES ($1, $2)
		ON CONFLICT (vessel_id) DO UPDATE SET features = EXCLUDED.features`
	if _, err := r.tx.Exec(ctx, q, fp.VesselID, features); err != nil {
		return fmt.Errorf("store: upserting vessel fingerprint: %w", err)
	}
	return nil
}

func (r *VesselFingerprintRepo) ByVesselID(ctx context.Context, vesselID int64) (models.VesselFingerprint, bool, error) {
	const q = `SELECT vessel_id, features FROM vessel_fingerprints WHERE vessel_id = $1`
	var fp models.VesselFingerprint
	var features []byte
	err := r.tx.QueryRow(ctx, q, vesselID).Scan(&fp.VesselID, &features)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.VesselFingerprint{}, false, nil
	}
	if err != nil {
		return models.VesselFingerprint{}, false, fmt.Errorf("store: querying vessel fingerprint %d: %w", vesselID, err)
	}
	if err := json.Unmarshal(features, &fp.Features); err != nil {
		return models.VesselFingerprint{}, false, fmt.Errorf("store: unmarshaling vessel fingerprint: %w", err)
	}
	return fp, true, nil
}

// RecentlyDark returns IDs of vessels whose most recent position precedes
// cutoff by at least minSilenceHours, the candidate pool of "went dark"
// hulls identity resolution tries to match against newly-appeared vessels.
func (r *VesselFingerprintRepo) RecentlyDark(ctx context.Context, cutoff time.Time, minSilenceHours float64) ([]int64, error) {
	const q = `
		SELECT v.id FROM vessels v
		JOIN LATERAL (
			SELECT MAX(timestamp_utc) AS last_seen FROM positions WHERE vessel_id = v.id
		) p ON true
		WHERE v.merged_into_vessel_id IS NULL
		  AND p.last_seen IS NOT NULL
		  AND p.last_seen <= $1 - ($2 * interval '1 hour')`
	rows, err := r.tx.Query(ctx, q, cutoff, minSilenceHours)
	if err != nil {
		return nil, fmt.Errorf("store: listing recently-dark vessels: %w", err)
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

// NewlyAppeared returns IDs of vessels first seen on or after cutoff, the
// candidate pool identity resolution tries to match against recently-dark
// hulls.
func (r *VesselFingerprintRepo) NewlyAppeared(ctx context.Context, cutoff time.Time) ([]int64, error) {
	const q = `
		SELECT id FROM vessels
		WHERE merged_into_vessel_id IS NULL AND mmsi_first_seen_utc >= $1`
	rows, err := r.tx.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("store: listing newly-appeared vessels: %w", err)
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

func (r *OwnerRepo) All(ctx context.Context) ([]models.Owner, error) {
	const q = `SELECT id, normalized_name, country, address, parent_owner_id, is_sanctioned FROM owners`
	rows, err := r.tx.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: listing owners: %w", err)
	}
	defer rows.Close()
	var out []models.Owner
	for rows.Next() {
		var o models.Owner
		if err := rows.Scan(&o.ID, &o.NormalizedName, &o.Country, &o.Address, &o.ParentOwnerID, &o.IsSanctioned); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
