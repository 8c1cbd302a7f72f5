package config

// Detector names used as keys into ScoringConfig.DetectionEnabled /
// ScoringEnabled, and as the defaults table from §6's feature-flag surface.
const (
	DetectorStaleAIS        = "stale_ais"
	DetectorAtSea           = "at_sea_operations"
	DetectorRenameVelocity  = "rename_velocity"
	DetectorFlagHopping     = "flag_hopping"
	DetectorIMOFraud        = "imo_fraud"
	DetectorStatelessMMSI   = "stateless_mmsi"
	DetectorFeedOutage      = "feed_outage"
	DetectorISMContinuity   = "ism_continuity"
	DetectorPIValidation    = "pi_validation"
	DetectorFraudulentReg   = "fraudulent_registry"
	DetectorTrackNaturalness = "track_naturalness"
	DetectorFingerprint     = "fingerprint"
	DetectorSARCorrelation  = "sar_correlation"
	DetectorWeather         = "weather"
	DetectorDarkSTS         = "dark_sts"
	DetectorCargoInference  = "cargo_inference"
	DetectorDestination     = "destination"
)

// stableDefaultTrue lists detectors that default to enabled (§6: "Both
// default True for stable detectors").
var stableDefaultTrue = map[string]bool{
	DetectorStaleAIS:       true,
	DetectorAtSea:          true,
	DetectorRenameVelocity: true,
	DetectorFlagHopping:    true,
	DetectorIMOFraud:       true,
	DetectorStatelessMMSI:  true,
	DetectorFeedOutage:     true,
	DetectorISMContinuity:  true,
	DetectorPIValidation:   true,
	DetectorFraudulentReg:  true,
}

// experimentalDefaultFalse lists detectors that default to disabled.
var experimentalDefaultFalse = map[string]bool{
	DetectorTrackNaturalness: true,
	DetectorFingerprint:      true,
	DetectorSARCorrelation:   true,
	DetectorWeather:          true,
	DetectorDarkSTS:          true,
	DetectorCargoInference:   true,
	DetectorDestination:      true,
}

// DefaultFlags builds the §6 default detection/scoring enablement maps, used
// to seed a ScoringConfig when risk_scoring.yaml omits explicit overrides.
func DefaultFlags() (detection map[string]bool, scoring map[string]bool) {
	detection = make(map[string]bool, len(stableDefaultTrue)+len(experimentalDefaultFalse))
	scoring = make(map[string]bool, len(detection))
	for k := range stableDefaultTrue {
		detection[k] = true
		scoring[k] = true
	}
	for k := range experimentalDefaultFalse {
		detection[k] = false
		scoring[k] = false
	}
	return detection, scoring
}

// ApplyDefaults fills any unset detection/scoring flags on cfg with the §6
// defaults, without overwriting explicit values already present.
func (c *ScoringConfig) ApplyDefaults() {
	detDefaults, scoreDefaults := DefaultFlags()
	if c.DetectionEnabled == nil {
		c.DetectionEnabled = map[string]bool{}
	}
	if c.ScoringEnabled == nil {
		c.ScoringEnabled = map[string]bool{}
	}
	for k, v := range detDefaults {
		if _, ok := c.DetectionEnabled[k]; !ok {
			c.DetectionEnabled[k] = v
		}
	}
	for k, v := range scoreDefaults {
		if _, ok := c.ScoringEnabled[k]; !ok {
			c.ScoringEnabled[k] = v
		}
	}
}
