package models

import "time"

// MergeCandidateStatus tracks an identity-resolution proposal through review.
type MergeCandidateStatus string

const (
	MergeStatusPending      MergeCandidateStatus = "PENDING"
	MergeStatusAutoMerged   MergeCandidateStatus = "AUTO_MERGED"
	MergeStatusAnalystMerged MergeCandidateStatus = "ANALYST_MERGED"
	MergeStatusRejected     MergeCandidateStatus = "REJECTED"
)

// MergeCandidate proposes that a silent (dark) vessel and a recently
// appeared (new) vessel are the same hull (§4.5).
type MergeCandidate struct {
	ID            int64
	DarkVesselID  int64
	NewVesselID   int64
	Confidence    float64
	Status        MergeCandidateStatus
	ScoreBreakdown map[string]float64
	CreatedAt     time.Time
	DecidedAt     *time.Time
}

// MergeOperation records an executed merge (auto or analyst-approved).
type MergeOperation struct {
	ID              int64
	CandidateID     int64
	DarkVesselID    int64
	CanonicalVesselID int64
	ExecutedAt      time.Time
	ExecutedBy      string // "auto" or analyst identifier
}

// MergeChain is a BFS-constructed audit trail of vessel absorptions.
// LinksJSON stores the ordered candidate IDs that compose the chain;
// only AUTO_MERGED and ANALYST_MERGED statuses may contribute a link.
type MergeChain struct {
	ID        int64
	RootVesselID int64
	LinksJSON string
	CandidateIDs []int64
}

// VesselFingerprint holds the feature vector used for fingerprint-distance
// scoring between merge candidates (§4.5 "fingerprint bonus/penalty"). The
// features are compared by identity.EuclideanDistance, equally weighted;
// no Mahalanobis (covariance-scaled) distance is computed.
type VesselFingerprint struct {
	VesselID  int64
	Features  []float64 // e.g. [avg_sog, heading_entropy, typical_draught, ...]
}

// Owner is a normalized (lowercased, trimmed) registered owner entity.
type Owner struct {
	ID             int64
	NormalizedName string
	Country        string
	Address        string
	ParentOwnerID  *int64
	IsSanctioned   bool
}

// OwnerCluster groups owners that resolve to the same normalized identity
// or ownership chain.
type OwnerCluster struct {
	ID           int64
	OwnerIDs     []int64
	IsSanctioned bool
}

// OwnershipChangeEvent records a vessel changing registered owner, used by
// the post-sanction reshuffling detector (>2 changes in 12 months).
type OwnershipChangeEvent struct {
	VesselID    int64
	OldOwnerID  int64
	NewOwnerID  int64
	ChangedAt   time.Time
}

// VerificationLog records a call to a paid third-party verification
// provider (an external collaborator; the core only persists the result).
type VerificationLog struct {
	ID        int64
	VesselID  int64
	Provider  string
	RequestedAt time.Time
	Result    string
}

// PipelineRun is the per-run bookkeeping record for the orchestrator (§4.6).
type PipelineRun struct {
	ID                       int64
	DateFrom                 time.Time
	DateTo                   time.Time
	ScoringDate              time.Time
	StartedAt                time.Time
	FinishedAt               *time.Time
	Status                   string // complete|partial|failed
	Steps                    map[string]StepResult
	DetectorCounts           map[string]int
	DataVolumeSnapshot       map[string]int
	DriftDisabledDetectors   []string
}

// StepResult captures the outcome of one orchestrator step.
type StepResult struct {
	Status string // ok|skipped|failed
	Detail string
}

// EvidenceCard is the analyst-reviewed, exported snapshot of a gap event.
type EvidenceCard struct {
	ID                string
	GapEventID        int64
	VesselSnapshot    Vessel
	LastKnownPosition Position
	FirstAfterGap     Position
	RiskScoreAtExport int
	BreakdownAtExport map[string]int
	MovementEnvelope  MovementEnvelope
	CorridorName      string
	CoverageQuality   CoverageQuality
	AnalystNotes      string
	ExportedAtUTC     time.Time
	Disclaimer        string
}

// MovementEnvelope is the plausibility window computed by the gap detector.
type MovementEnvelope struct {
	MaxPlausibleDistanceNM float64
	ActualDistanceNM       float64
	VelocityRatio          float64
	ImpossibleSpeedFlag    bool
}
