// Package identity implements identity resolution (§4.5): scoring whether a
// newly-appeared vessel is the same physical hull as a vessel that recently
// went dark, executing or queuing the resulting merge, and maintaining the
// BFS-constructed audit chain of executed merges. Grounded on the teacher's
// internal/heuristics clustering style: an eliminative prefilter followed by
// a weighted positive-signal sum, never a single dominant feature.
package identity

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/radiancefleet/core/internal/geo"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

const (
	autoMergeThreshold = 85.0
	pendingThreshold   = 50.0
	maxChainDepth      = 10
)

// CandidateInput carries the two vessels' comparable attributes plus the
// out-of-band facts (proximity, shared commercial affiliations, AIS
// overlap) the eliminative prefilter and scoring rules need. Not every
// field lives on models.Vessel (P&I club membership in particular is
// sourced from a separate registry feed), so callers assemble this from
// whatever lookups they have rather than identity reaching back into store
// itself.
type CandidateInput struct {
	Dark models.Vessel
	New  models.Vessel

	DarkFingerprint models.VesselFingerprint
	NewFingerprint  models.VesselFingerprint
	// FingerprintPercentile is the distance between the two fingerprints'
	// feature vectors expressed as a percentile against the population of
	// all pairwise distances (0 = closest/most similar, 1 = furthest).
	// Computed by the caller, which holds the full population, with
	// EuclideanDistance: every feature is weighted equally, with no
	// covariance scaling (not a Mahalanobis distance). Identity only
	// interprets the percentile.
	FingerprintPercentile float64
	HasFingerprints       bool

	DarkLastPosition models.Position
	NewFirstPosition models.Position
	HasPositions     bool

	DarkPIClub string
	NewPIClub  string

	// NoOverlappingAIS is true when the dark vessel's last transmission and
	// the new vessel's first transmission do not overlap in time at all
	// (the handoff is clean rather than two MMSIs broadcasting at once).
	NoOverlappingAIS bool
}

// ScoreResult is the eliminative-prefilter-and-scoring outcome for one pair.
type ScoreResult struct {
	Eliminated bool
	Score      float64
	Breakdown  map[string]float64
}

// Score applies the §4.5 eliminative prefilter and, if the pair survives
// it, the weighted positive-signal sum. Eliminated pairs score 0 and are
// never persisted as a MergeCandidate.
func Score(in CandidateInput) ScoreResult {
	if eliminated(in) {
		return ScoreResult{Eliminated: true}
	}

	b := map[string]float64{}

	if in.Dark.IMO != "" && in.Dark.IMO == in.New.IMO {
		b["imo_exact_match"] = 50
	}
	if in.Dark.VesselType != "" && in.Dark.VesselType == in.New.VesselType {
		b["vessel_type_match"] = 10
	}
	if in.Dark.AISClass != "" && in.Dark.AISClass == in.New.AISClass {
		b["ais_class_match"] = 10
	}

	if in.Dark.DeadweightTonnes > 0 && in.New.DeadweightTonnes > 0 {
		ratio := dwtRatioDelta(in.Dark.DeadweightTonnes, in.New.DeadweightTonnes)
		switch {
		case ratio <= 0.05:
			b["dwt_ratio_within_5pct"] = 15
		case ratio <= 0.15:
			b["dwt_ratio_within_15pct"] = 10
		}
	}

	if in.Dark.YearBuilt > 0 && in.New.YearBuilt > 0 && abs(in.Dark.YearBuilt-in.New.YearBuilt) <= 2 {
		b["year_built_within_2yr"] = 10
	}

	if in.HasPositions {
		b["proximity"] = proximityScore(in.DarkLastPosition, in.NewFirstPosition)
	}

	if in.Dark.ISMManager != "" && in.Dark.ISMManager == in.New.ISMManager {
		b["shared_ism_manager"] = 10
	}
	if in.DarkPIClub != "" && in.DarkPIClub == in.NewPIClub {
		b["shared_pi_club"] = 10
	}

	if in.HasFingerprints {
		switch {
		case in.FingerprintPercentile <= 0.25:
			b["fingerprint_similarity"] = 15
		case in.FingerprintPercentile <= 0.5:
			b["fingerprint_similarity"] = 10
		case in.FingerprintPercentile >= 0.75:
			b["fingerprint_similarity"] = -5
		}
	}

	if in.NoOverlappingAIS {
		b["no_overlapping_ais"] = 10
	}

	var total float64
	for _, v := range b {
		total += v
	}
	return ScoreResult{Score: total, Breakdown: b}
}

// eliminated applies the prefilter: a known vessel_type or ais_class
// mismatch, or a DWT delta beyond 30%, rules out the pair before any
// positive scoring runs.
func eliminated(in CandidateInput) bool {
	if in.Dark.VesselType != "" && in.New.VesselType != "" && in.Dark.VesselType != in.New.VesselType {
		return true
	}
	if in.Dark.AISClass != "" && in.New.AISClass != "" && in.Dark.AISClass != in.New.AISClass {
		return true
	}
	if in.Dark.DeadweightTonnes > 0 && in.New.DeadweightTonnes > 0 {
		if dwtRatioDelta(in.Dark.DeadweightTonnes, in.New.DeadweightTonnes) > 0.30 {
			return true
		}
	}
	return false
}

func dwtRatioDelta(a, b float64) float64 {
	if a == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / a
}

// proximityScore awards up to 15 points on a sliding scale, full credit
// within 10nm and none beyond 100nm.
func proximityScore(last, first models.Position) float64 {
	const fullCreditNM = 10.0
	const noCreditNM = 100.0
	distance := geo.HaversineNM(last.Lat, last.Lon, first.Lat, first.Lon)
	switch {
	case distance <= fullCreditNM:
		return 15
	case distance >= noCreditNM:
		return 0
	default:
		frac := 1 - (distance-fullCreditNM)/(noCreditNM-fullCreditNM)
		return 15 * frac
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Resolver wires the three identity-resolution repos together.
type Resolver struct {
	Candidates *store.MergeCandidateRepo
	Operations *store.MergeOperationRepo
	Chains     *store.MergeChainRepo
	Vessels    *store.VesselRepo
}

// Evaluate scores in and dispatches per §4.5's thresholds: >=85 executes an
// immediate merge and rebuilds the chain rooted at the canonical vessel,
// 50-84 persists a PENDING candidate for analyst review, and below 50 is
// discarded without a persisted row.
func (r *Resolver) Evaluate(ctx context.Context, in CandidateInput, now time.Time) (ScoreResult, error) {
	result := Score(in)
	if result.Eliminated || result.Score < pendingThreshold {
		return result, nil
	}

	breakdown := make(map[string]float64, len(result.Breakdown))
	for k, v := range result.Breakdown {
		breakdown[k] = v
	}

	candidate := models.MergeCandidate{
		DarkVesselID:   in.Dark.ID,
		NewVesselID:    in.New.ID,
		Confidence:     result.Score,
		Status:         models.MergeStatusPending,
		ScoreBreakdown: breakdown,
		CreatedAt:      now,
	}

	if result.Score >= autoMergeThreshold {
		candidate.Status = models.MergeStatusAutoMerged
	}

	id, err := r.Candidates.Insert(ctx, candidate)
	if err != nil {
		return result, fmt.Errorf("identity: persisting merge candidate for (%d,%d): %w", in.Dark.ID, in.New.ID, err)
	}

	if result.Score < autoMergeThreshold {
		return result, nil
	}

	decidedAt := now
	if err := r.Candidates.UpdateStatus(ctx, id, models.MergeStatusAutoMerged, decidedAt); err != nil {
		return result, fmt.Errorf("identity: marking candidate %d auto-merged: %w", id, err)
	}

	op := models.MergeOperation{
		CandidateID:       id,
		DarkVesselID:      in.Dark.ID,
		CanonicalVesselID: in.New.ID,
		ExecutedAt:        now,
		ExecutedBy:        "auto",
	}
	if _, err := r.Operations.Insert(ctx, op); err != nil {
		return result, fmt.Errorf("identity: recording merge operation for dark vessel %d: %w", in.Dark.ID, err)
	}
	if err := r.Vessels.MergeInto(ctx, in.Dark.ID, in.New.ID); err != nil {
		return result, fmt.Errorf("identity: merging vessel %d into %d: %w", in.Dark.ID, in.New.ID, err)
	}

	if err := r.rebuildChain(ctx, in.New.ID); err != nil {
		return result, err
	}
	return result, nil
}

// rebuildChain walks every merge operation touching rootVesselID, breadth
// first, and persists the ordered candidate IDs that compose the absorption
// history. Only AUTO_MERGED and ANALYST_MERGED candidates ever produced an
// operation row, so no status filtering is needed here: a PENDING or
// REJECTED candidate never reaches MergeOperationRepo at all.
func (r *Resolver) rebuildChain(ctx context.Context, rootVesselID int64) error {
	visited := map[int64]bool{rootVesselID: true}
	queue := []int64{rootVesselID}
	var candidateIDs []int64

	for depth := 0; depth < maxChainDepth && len(queue) > 0; depth++ {
		var next []int64
		for _, vesselID := range queue {
			ops, err := r.Operations.ForVessel(ctx, vesselID)
			if err != nil {
				return fmt.Errorf("identity: walking merge operations for vessel %d: %w", vesselID, err)
			}
			for _, op := range ops {
				candidateIDs = append(candidateIDs, op.CandidateID)
				other := op.DarkVesselID
				if other == vesselID {
					other = op.CanonicalVesselID
				}
				if !visited[other] {
					visited[other] = true
					next = append(next, other)
				}
			}
		}
		queue = next
	}

	if len(candidateIDs) == 0 {
		return nil
	}
	chain := models.MergeChain{RootVesselID: rootVesselID, CandidateIDs: dedupInts(candidateIDs)}
	if _, err := r.Chains.Upsert(ctx, chain); err != nil {
		return fmt.Errorf("identity: upserting merge chain rooted at %d: %w", rootVesselID, err)
	}
	return nil
}

// Reject marks a PENDING candidate REJECTED and invalidates any merge chain
// that had already absorbed it as a link: a chain is only as trustworthy as
// its weakest accepted link, so one rejection downstream of an earlier
// auto-merge must not leave a stale chain claiming otherwise.
func (r *Resolver) Reject(ctx context.Context, candidateID int64, rootVesselID int64, decidedAt time.Time) error {
	if err := r.Candidates.UpdateStatus(ctx, candidateID, models.MergeStatusRejected, decidedAt); err != nil {
		return fmt.Errorf("identity: marking candidate %d rejected: %w", candidateID, err)
	}

	chain, found, err := r.Chains.ByRoot(ctx, rootVesselID)
	if err != nil {
		return fmt.Errorf("identity: loading merge chain rooted at %d: %w", rootVesselID, err)
	}
	if !found {
		return nil
	}
	for _, id := range chain.CandidateIDs {
		if id == candidateID {
			return r.Chains.Invalidate(ctx, rootVesselID)
		}
	}
	return nil
}

// AnalystMerge executes a PENDING candidate's merge on an analyst's
// decision (the 50-84 band never auto-executes) and rebuilds the chain the
// same way an auto-merge would.
func (r *Resolver) AnalystMerge(ctx context.Context, candidate models.MergeCandidate, analyst string, now time.Time) error {
	if err := r.Candidates.UpdateStatus(ctx, candidate.ID, models.MergeStatusAnalystMerged, now); err != nil {
		return fmt.Errorf("identity: marking candidate %d analyst-merged: %w", candidate.ID, err)
	}
	op := models.MergeOperation{
		CandidateID:       candidate.ID,
		DarkVesselID:      candidate.DarkVesselID,
		CanonicalVesselID: candidate.NewVesselID,
		ExecutedAt:        now,
		ExecutedBy:        analyst,
	}
	if _, err := r.Operations.Insert(ctx, op); err != nil {
		return fmt.Errorf("identity: recording analyst merge operation for dark vessel %d: %w", candidate.DarkVesselID, err)
	}
	if err := r.Vessels.MergeInto(ctx, candidate.DarkVesselID, candidate.NewVesselID); err != nil {
		return fmt.Errorf("identity: merging vessel %d into %d: %w", candidate.DarkVesselID, candidate.NewVesselID, err)
	}
	return r.rebuildChain(ctx, candidate.NewVesselID)
}

func dedupInts(in []int64) []int64 {
	seen := map[int64]bool{}
	var out []int64
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// EuclideanDistance is the caller's distance metric between two fingerprint
// feature vectors, the input to the population-percentile ranking
// CandidateInput.FingerprintPercentile documents. Vectors of mismatched
// length return +Inf, since the features they carry aren't comparable.
func EuclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sumSq float64
	for i := range a {
		d := a[i] - b[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

// Percentile expresses d's rank within population on a 0 (closest) to 1
// (furthest) scale: the fraction of the population at or closer than d.
func Percentile(population []float64, d float64) float64 {
	if len(population) == 0 {
		return 0
	}
	closerOrEqual := 0
	for _, p := range population {
		if p <= d {
			closerOrEqual++
		}
	}
	return float64(closerOrEqual) / float64(len(population))
}
