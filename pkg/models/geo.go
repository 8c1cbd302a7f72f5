package models

// CorridorType tags the operational character of a named polygon.
type CorridorType string

const (
	CorridorExportRoute     CorridorType = "export_route"
	CorridorSTSZone         CorridorType = "sts_zone"
	CorridorAnchorageHold   CorridorType = "anchorage_holding"
	CorridorDarkZone        CorridorType = "dark_zone"
)

// BoundingBox is a lat/lon rectangle used for cheap pre-filtering before
// precise polygon containment checks.
type BoundingBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Corridor is a named polygon of operational interest.
type Corridor struct {
	ID             int64
	Name           string
	Type           CorridorType
	BBox           BoundingBox
	RiskMultiplier float64
	IsJammingZone  bool
	IsOffshoreTerminal bool
	IsArctic       bool
	Tags           []string
}

// DarkZone is a named polygon for a known AIS-jamming region.
type DarkZone struct {
	ID   int64
	Name string
	BBox BoundingBox
}

// Port is a named point location used for proximity checks (draught
// detector port suppression, loitering corridor classification).
type Port struct {
	ID               int64
	Name             string
	Lat              float64
	Lon              float64
	IsOffshoreTerminal bool
}
