// Package models holds the entity types shared across RadianceFleet's
// detection, scoring, identity-resolution, and evidence components.
package models

import "time"

// FlagRisk buckets a flag state's severity for scoring and classification.
type FlagRisk string

const (
	FlagRiskLow     FlagRisk = "low_risk"
	FlagRiskMedium  FlagRisk = "medium_risk"
	FlagRiskHigh    FlagRisk = "high_risk"
	FlagRiskUnknown FlagRisk = "unknown"
)

// AISClass distinguishes Class A (SOLAS-mandated) from Class B transponders.
type AISClass string

const (
	AISClassA       AISClass = "A"
	AISClassB       AISClass = "B"
	AISClassUnknown AISClass = "unknown"
)

// PIStatus captures a vessel's Protection & Indemnity coverage state.
type PIStatus string

const (
	PIStatusCovered    PIStatus = "covered"
	PIStatusLapsed     PIStatus = "lapsed"
	PIStatusFraudulent PIStatus = "fraudulent"
	PIStatusUnknown    PIStatus = "unknown"
)

// Vessel is the canonical identity record for a hull. MMSI is always
// 9 digits, left-padded with zeros (see ingest/normalize).
type Vessel struct {
	ID                 int64
	MMSI               string
	IMO                string
	Name               string
	Callsign           string
	Flag               string // ISO-2 country code
	FlagRisk           FlagRisk
	VesselType         string
	DeadweightTonnes   float64
	YearBuilt          int
	AISClass           AISClass
	MMSIFirstSeenUTC   time.Time
	LaidUp30d          bool
	LaidUp60d          bool
	LaidUpInSTSZone    bool
	PIStatus           PIStatus
	ISMManager         string
	OwnerID            int64
	// MergedIntoVesselID is non-nil when this vessel has been absorbed into
	// a canonical vessel via identity resolution (§4.5). Chains must be
	// acyclic and resolve within <=10 hops (see store.VesselRepo's resolveCanonical).
	MergedIntoVesselID *int64
}

// IsAbsorbed reports whether this vessel has been merged into another.
func (v Vessel) IsAbsorbed() bool {
	return v.MergedIntoVesselID != nil
}

// Position is a single AIS position report, unique per (vessel, timestamp).
type Position struct {
	ID          int64
	VesselID    int64
	TimestampUTC time.Time
	Lat         float64
	Lon         float64
	SOGKnots    float64
	COGDegrees  float64
	// HeadingDegrees is nil when the AIS heading field reported 511
	// (unavailable).
	HeadingDegrees *float64
	NavStatusCode  int
	DraughtMeters  *float64
	Destination    string
	AISClass       AISClass
	Source         string
}

// Observation is a raw per-source position echo kept in short-retention
// storage to support cross-receiver disagreement detection. Distinct from
// Position, which is the canonical per-vessel track.
type Observation struct {
	MMSI        string
	TimestampUTC time.Time
	Source      string
	Lat         float64
	Lon         float64
	ReceivedUTC time.Time
}
