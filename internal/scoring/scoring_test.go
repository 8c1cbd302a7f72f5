package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radiancefleet/core/internal/config"
	"github.com/radiancefleet/core/pkg/models"
)

// testConfig returns a ScoringConfig with every §4.3 section enabled and
// populated with deterministic point values, so tests don't depend on the
// shipped risk_scoring.yaml's actual numbers.
func testConfig() *config.ScoringConfig {
	sections := map[string]config.ScoringSection{}
	for _, name := range []string{
		"gap_duration", "gap_frequency", "spoofing", "metadata", "legitimacy",
		"dark_zone", "corridor", "sts", "behavioral", "watchlist", "convoy",
		"pi_validation", "fraudulent_registry", "track_naturalness", "stale_ais",
		"at_sea_operations", "ism_continuity", "rename_velocity", "destination",
		"scrapped_registry", "track_replay", "ownership_graph", "vessel_age",
		"pi_insurance",
	} {
		sections[name] = config.ScoringSection{Enabled: true, Points: map[string]int{}}
	}
	sections["spoofing"].Points["speed_impossible"] = 40
	sections["spoofing"].Points["speed_spoof"] = 35
	sections["gap_duration"].Points["speed_spike_before_gap"] = 20
	sections["watchlist"].Points["match"] = 100
	sections["dark_zone"].Points["selective_dark_zone_evasion"] = 30
	sections["dark_zone"].Points["dark_zone_deduction"] = -10
	sections["dark_zone"].Points["gap_reactivation_in_jamming_zone"] = 25
	sections["behavioral"].Points["voyage_cycle_pattern"] = 15
	sections["behavioral"].Points["loitering_extended"] = 20
	sections["behavioral"].Points["loitering_brief"] = 10
	sections["sts"].Points["visible_dark"] = 25
	sections["vessel_age"].Points["under_25"] = 5
	sections["vessel_age"].Points["25_plus"] = 10
	sections["legitimacy"].Points["low_risk_flag"] = -5
	sections["metadata"].Points["high_risk_flag"] = 15

	cfg := &config.ScoringConfig{
		Sections: sections,
		DurationTiers: []config.DurationTier{
			{Key: "gap_duration_tier_1", MinHours: 2, Points: 10},
			{Key: "gap_duration_tier_2", MinHours: 6, Points: 25},
			{Key: "gap_duration_tier_3", MinHours: 24, Points: 50},
		},
		FrequencyTiers: []config.FrequencyTier{
			{Key: "gap_frequency_3_in_30", N: 3, WindowDays: 30, Points: 15},
		},
	}
	return cfg
}

func TestCompute_DurationTierPicksHighestMatch(t *testing.T) {
	cfg := testConfig()
	in := Input{Gap: models.GapEvent{DurationHours: 30}, Vessel: models.Vessel{}, ScoringDate: time.Now()}
	result := Compute(cfg, in)
	assert.Equal(t, 50, result.Breakdown["gap_duration_tier_3"])
	assert.NotContains(t, result.Breakdown, "gap_duration_tier_1")
	assert.NotContains(t, result.Breakdown, "gap_duration_tier_2")
}

func TestCompute_ImpossibleSpeedSubsumesSpeedSpoof(t *testing.T) {
	cfg := testConfig()
	in := Input{
		Gap: models.GapEvent{ImpossibleSpeedFlag: true},
		SpoofingAnomalies: []models.SpoofingAnomaly{
			{Type: models.SpoofMMSIReuse},
		},
	}
	result := Compute(cfg, in)
	assert.Equal(t, 40, result.Breakdown["speed_impossible"])
	assert.NotContains(t, result.Breakdown, "speed_spoof")
}

func TestCompute_ScoreClampedToMax(t *testing.T) {
	cfg := testConfig()
	cfg.SizeMultipliers = []config.SizeMultiplierTier{{MinDWT: 0, Multiplier: 3.0}}
	in := Input{
		Gap:               models.GapEvent{DurationHours: 200, ImpossibleSpeedFlag: true},
		WatchlistMatch:    true,
		Vessel:            models.Vessel{FlagRisk: models.FlagRiskHigh, DeadweightTonnes: 300000},
		STSEvents:         []models.STSTransferEvent{{DetectionType: models.STSVisibleDark}},
		LoiteringEvents:   []models.LoiteringEvent{{StartUTC: time.Unix(0, 0), EndUTC: time.Unix(0, 0).Add(20 * time.Hour)}},
	}
	result := Compute(cfg, in)
	assert.Equal(t, maxScore, result.Score)
}

func TestCompute_ScoreNeverNegative(t *testing.T) {
	cfg := testConfig()
	in := Input{
		Vessel: models.Vessel{FlagRisk: models.FlagRiskLow},
		Gap:    models.GapEvent{InDarkZone: true},
	}
	result := Compute(cfg, in)
	assert.GreaterOrEqual(t, result.Score, minScore)
}

func TestCompute_DarkZoneSelectiveEvasionVsDeduction(t *testing.T) {
	cfg := testConfig()
	count := 1
	selective := Input{
		Gap:      models.GapEvent{InDarkZone: true},
		DarkZone: DarkZoneContext{OtherDarkVesselCount: &count, AllSameSource: false},
	}
	result := Compute(cfg, selective)
	assert.Contains(t, result.Breakdown, "selective_dark_zone_evasion")
	assert.NotContains(t, result.Breakdown, "dark_zone_deduction")

	deduction := Input{Gap: models.GapEvent{InDarkZone: true}}
	result2 := Compute(cfg, deduction)
	assert.Contains(t, result2.Breakdown, "dark_zone_deduction")
}

func TestCompute_VoyageCycleGateRequiresAllThreeSignals(t *testing.T) {
	cfg := testConfig()
	in := Input{
		RussianPortSignal: true,
		STSEvents:         []models.STSTransferEvent{{DetectionType: models.STSVisibleDark}},
		FrequencyCounts:   map[int]int{30: 3},
	}
	result := Compute(cfg, in)
	assert.Contains(t, result.Breakdown, "voyage_cycle_pattern")
}

func TestCompute_VoyageCycleGateMissingFrequencyDoesNotFire(t *testing.T) {
	cfg := testConfig()
	in := Input{
		RussianPortSignal: true,
		STSEvents:         []models.STSTransferEvent{{DetectionType: models.STSVisibleDark}},
	}
	result := Compute(cfg, in)
	assert.NotContains(t, result.Breakdown, "voyage_cycle_pattern")
}

func TestCompute_ReactivationGateRequiresJammingZoneAndNonStructuralSignal(t *testing.T) {
	cfg := testConfig()
	jamming := &models.Corridor{IsJammingZone: true}
	in := Input{
		Gap:      models.GapEvent{InDarkZone: true},
		Corridor: jamming,
		STSEvents: []models.STSTransferEvent{
			{DetectionType: models.STSVisibleDark},
		},
	}
	result := Compute(cfg, in)
	assert.Contains(t, result.Breakdown, "gap_reactivation_in_jamming_zone")
}

func TestCompute_ReactivationGateDoesNotFireFromGapDurationAlone(t *testing.T) {
	cfg := testConfig()
	jamming := &models.Corridor{IsJammingZone: true}
	in := Input{
		Gap:      models.GapEvent{InDarkZone: true, DurationHours: 48},
		Corridor: jamming,
	}
	result := Compute(cfg, in)
	assert.NotContains(t, result.Breakdown, "gap_reactivation_in_jamming_zone")
}

func TestCompute_DisabledSectionContributesNothing(t *testing.T) {
	cfg := testConfig()
	s := cfg.Sections["watchlist"]
	s.Enabled = false
	cfg.Sections["watchlist"] = s

	in := Input{WatchlistMatch: true}
	result := Compute(cfg, in)
	assert.NotContains(t, result.Breakdown, "watchlist_match")
}

func TestCompute_VesselAgeUsesScoringDateNotNow(t *testing.T) {
	cfg := testConfig()
	in := Input{
		Vessel:      models.Vessel{YearBuilt: 2000},
		ScoringDate: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	result := Compute(cfg, in)
	assert.Contains(t, result.Breakdown, "vessel_age_under_25")
}
