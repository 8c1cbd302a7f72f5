package models

import "time"

// AnalystStatus is the review lifecycle of an analyst-facing event.
type AnalystStatus string

const (
	StatusNew          AnalystStatus = "new"
	StatusUnderReview  AnalystStatus = "under_review"
	StatusConfirmed    AnalystStatus = "confirmed"
	StatusDismissed    AnalystStatus = "dismissed"
	StatusArchived     AnalystStatus = "archived"
)

// CoverageQuality labels how reliable AIS coverage is believed to be in the
// region of an event, driven by the static table in §6.
type CoverageQuality string

const (
	CoverageGood     CoverageQuality = "GOOD"
	CoverageModerate CoverageQuality = "MODERATE"
	CoveragePartial  CoverageQuality = "PARTIAL"
	CoveragePoor     CoverageQuality = "POOR"
	CoverageNone     CoverageQuality = "NONE"
	CoverageUnknown  CoverageQuality = "UNKNOWN"
)

// GapEvent is a period of AIS silence for one vessel exceeding the
// configured minimum (default 2h). See detect/gap.
type GapEvent struct {
	ID                       int64
	VesselID                 int64
	StartUTC                 time.Time
	EndUTC                   time.Time
	DurationHours            float64
	StartPointID             int64
	EndPointID               int64
	PreGapSOGKnots           float64
	ActualGapDistanceNM      float64
	MaxPlausibleDistanceNM   float64
	VelocityPlausibilityRatio float64
	ImpossibleSpeedFlag      bool
	CorridorID               *int64
	InDarkZone               bool
	IsFeedOutage             bool
	CoverageQuality          CoverageQuality
	RiskScore                int
	Breakdown                map[string]int
	AnalystStatus            AnalystStatus
}

// SpoofingType enumerates the unified spoofing sub-detector outputs (§4.2.3).
type SpoofingType string

const (
	SpoofMMSIReuse              SpoofingType = "mmsi_reuse"
	SpoofNavStatusMismatch      SpoofingType = "nav_status_mismatch"
	SpoofCircle                 SpoofingType = "circle_spoof"
	SpoofAnchor                 SpoofingType = "anchor_spoof"
	SpoofErraticNavStatus       SpoofingType = "erratic_nav_status"
	SpoofCrossReceiverDisagree  SpoofingType = "cross_receiver_disagreement"
	SpoofIdentitySwap           SpoofingType = "identity_swap"
	SpoofFakePortCall           SpoofingType = "fake_port_call"
	SpoofStaleAISData           SpoofingType = "stale_ais_data"
	SpoofSyntheticTrack         SpoofingType = "synthetic_track"
	SpoofIMOFraud               SpoofingType = "imo_fraud"
	SpoofTrackReplay            SpoofingType = "track_replay"
	SpoofDestinationDeviation   SpoofingType = "destination_deviation"
)

// SpoofingAnomaly is a typed anomaly produced by a spoofing sub-detector.
type SpoofingAnomaly struct {
	ID            int64
	VesselID      int64
	Type          SpoofingType
	StartUTC      time.Time
	EndUTC        time.Time
	Tier          string // HIGH/MEDIUM/LOW, used by synthetic-track
	Detail        string
	RiskScore     int
	AnalystStatus AnalystStatus
}

// NameChange records a vessel's declared name (or callsign) changing, kept
// to support the identity-swap (handshake) sub-detector: two vessels that
// meet and then swap names within the same hour are a strong spoofing
// signal that position data alone cannot express.
type NameChange struct {
	ID          int64
	VesselID    int64
	OldName     string
	NewName     string
	ObservedUTC time.Time
}

// STSDetectionType classifies whether both legs of an STS pair were
// visible on AIS.
type STSDetectionType string

const (
	STSVisibleVisible STSDetectionType = "visible_visible"
	STSVisibleDark    STSDetectionType = "visible_dark"
	STSDarkDark       STSDetectionType = "dark_dark"
)

// STSTransferEvent is a detected ship-to-ship transfer between two vessels.
type STSTransferEvent struct {
	ID            int64
	Vessel1ID     int64
	Vessel2ID     int64
	StartUTC      time.Time
	EndUTC        time.Time
	MeanLat       float64
	MeanLon       float64
	DetectionType STSDetectionType
	CorridorID    *int64
	RiskScore     int
	AnalystStatus AnalystStatus
}

// LoiteringEvent is a contiguous run of low-SOG hourly buckets for one vessel.
type LoiteringEvent struct {
	ID                  int64
	VesselID            int64
	StartUTC            time.Time
	EndUTC              time.Time
	MedianSOGKnots      float64
	MeanLat             float64
	MeanLon             float64
	CorridorID          *int64
	PrecedingGapID      *int64
	FollowingGapID      *int64
	RiskScore           int
	AnalystStatus       AnalystStatus
}

// ConvoyEvent is a vessel pair moving in formation, and doubles as the
// container for floating-storage and Arctic no-ice-class flags via the
// Kind discriminator (Design Notes: one Flag table with a kind
// discriminator, chosen over per-phenomenon tables).
type ConvoyKind string

const (
	ConvoyKindFormation      ConvoyKind = "formation"
	ConvoyKindFloatingStorage ConvoyKind = "floating_storage"
	ConvoyKindArcticNoIce    ConvoyKind = "arctic_no_ice_class"
)

type ConvoyEvent struct {
	ID         int64
	VesselAID  int64
	VesselBID  int64 // == VesselAID for self-referential flag kinds
	Kind       ConvoyKind
	StartUTC   time.Time
	EndUTC     time.Time
	RiskScore  int
	AnalystStatus AnalystStatus
}

// PairKey returns the stable (min,max) ordering key for a convoy/STS pair.
func PairKey(a, b int64) (int64, int64) {
	if a <= b {
		return a, b
	}
	return b, a
}

// DraughtChangeEvent records a confirmed loaded/ballast transition.
type DraughtChangeEvent struct {
	ID              int64
	VesselID        int64
	TimestampUTC    time.Time
	BeforeMeters    float64
	AfterMeters     float64
	DeltaMeters     float64
	NearPort        bool
	IsOffshore      bool
	NearSTSEvent    bool
	StraddlesGap    bool
	RiskScore       int
	AnalystStatus   AnalystStatus
}

// MMSICloningEvent records an implied-speed jump attributable to two
// different physical vessels broadcasting the same MMSI.
type MMSICloningEvent struct {
	ID              int64
	VesselID        int64
	StartPositionID int64
	EndPositionID   int64
	DistanceNM      float64
	ImpliedSpeedKn  float64
	RiskScore       int
	AnalystStatus   AnalystStatus
}

// FleetAlert is a webhook/dashboard-facing notification for analyst review,
// distinct from the persisted evidence card (see evidence/alerts.go).
type FleetAlert struct {
	ID          string
	TimestampUTC time.Time
	Severity    string // matches confidence bands, lowercased
	AlertType   string
	Title       string
	Description string
	VesselID    int64
	RiskScore   int
}
