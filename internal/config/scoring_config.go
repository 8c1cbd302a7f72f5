package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// expectedSections is the §4.3 enumeration. Load fails fast (§7: "missing
// section" is a fatal configuration error) if any is absent.
var expectedSections = []string{
	"gap_duration", "gap_frequency", "spoofing", "metadata", "legitimacy",
	"dark_zone", "corridor", "sts", "behavioral", "watchlist", "convoy",
	"pi_validation", "fraudulent_registry", "track_naturalness", "stale_ais",
	"at_sea_operations", "ism_continuity", "rename_velocity", "destination",
	"scrapped_registry", "track_replay", "ownership_graph", "vessel_age",
	"pi_insurance",
}

// DurationTier is one tier of the gap_duration section; the largest
// matching tier wins (§4.3 signal kind 1).
type DurationTier struct {
	Key      string  `yaml:"key"`
	MinHours float64 `yaml:"min_hours"`
	Points   int     `yaml:"points"`
}

// FrequencyTier is one tier of a gap_frequency_N_in_D signal; the highest
// matching tier wins, tiers are never summed (§4.3 signal kind 2).
type FrequencyTier struct {
	Key       string `yaml:"key"`
	N         int    `yaml:"n"`
	WindowDays int   `yaml:"window_days"`
	Points    int    `yaml:"points"`
}

// SizeMultiplierTier implements the vessel_size_multiplier ladder.
type SizeMultiplierTier struct {
	MinDWT     float64 `yaml:"min_dwt"`
	Multiplier float64 `yaml:"multiplier"`
}

// ScoringSection holds the flat signal-key -> point-value map for a section
// that isn't one of the specially-structured ones above (spoofing sub-
// scores, STS/loitering/convoy components, watchlist match, legitimacy
// deductions, metadata flags, and so on).
type ScoringSection struct {
	Enabled bool           `yaml:"enabled"`
	Points  map[string]int `yaml:"points"`
}

// ScoringConfig is the parsed, validated risk_scoring.yaml.
type ScoringConfig struct {
	LastUpdated      string                    `yaml:"last_updated"`
	DurationTiers    []DurationTier            `yaml:"gap_duration_tiers"`
	FrequencyTiers   []FrequencyTier           `yaml:"gap_frequency_tiers"`
	SizeMultipliers  []SizeMultiplierTier      `yaml:"vessel_size_multipliers"`
	Sections         map[string]ScoringSection `yaml:"sections"`
	DetectionEnabled map[string]bool           `yaml:"detection_enabled"`
	ScoringEnabled   map[string]bool           `yaml:"scoring_enabled"`
}

// Points looks up a flat signal key within a section, returning 0 if the
// section is disabled or the key is absent so disabled sections silently
// contribute nothing to the breakdown (§4.3 "Feature flags").
func (c *ScoringConfig) Points(section, key string) int {
	if c == nil {
		return 0
	}
	s, ok := c.Sections[section]
	if !ok || !s.Enabled {
		return 0
	}
	return s.Points[key]
}

// SectionEnabled reports whether a section contributes to scoring at all.
func (c *ScoringConfig) SectionEnabled(section string) bool {
	if c == nil {
		return false
	}
	s, ok := c.Sections[section]
	return ok && s.Enabled
}

// DetectionIsEnabled reports whether a detector should run at all,
// independent of whether its scoring contribution is enabled (§4.3:
// "Detection and scoring are separately gated so a detector can run in
// shadow mode").
func (c *ScoringConfig) DetectionIsEnabled(detector string) bool {
	if c == nil {
		return true
	}
	v, ok := c.DetectionEnabled[detector]
	if !ok {
		return true
	}
	return v
}

// ScoringIsEnabled reports whether a detector's output should influence
// score.
func (c *ScoringConfig) ScoringIsEnabled(detector string) bool {
	if c == nil {
		return true
	}
	v, ok := c.ScoringEnabled[detector]
	if !ok {
		return true
	}
	return v
}

// VesselSizeMultiplier returns the size-based multiplier for a DWT, applied
// only to the sum of positive signals (§4.3 "Multipliers").
func (c *ScoringConfig) VesselSizeMultiplier(dwt float64) float64 {
	if c == nil || len(c.SizeMultipliers) == 0 {
		return defaultSizeMultiplier(dwt)
	}
	best := 1.0
	for _, t := range c.SizeMultipliers {
		if dwt >= t.MinDWT && t.Multiplier > best {
			best = t.Multiplier
		}
	}
	return best
}

func defaultSizeMultiplier(dwt float64) float64 {
	switch {
	case dwt >= 200000:
		return 1.3
	case dwt >= 100000:
		return 1.2
	case dwt >= 50000:
		return 1.1
	default:
		return 1.0
	}
}

// LoadScoringConfig reads and validates risk_scoring.yaml from path.
func LoadScoringConfig(path string) (*ScoringConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading scoring config: %w", err)
	}
	var cfg ScoringConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing scoring config: %w", err)
	}
	if err := validateSections(cfg.Sections); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

func validateSections(sections map[string]ScoringSection) error {
	for _, name := range expectedSections {
		if _, ok := sections[name]; !ok {
			return fmt.Errorf("config: missing expected scoring section %q", name)
		}
	}
	return nil
}
