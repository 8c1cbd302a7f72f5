package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/radiancefleet/core/pkg/models"
)

// randomInput builds a scoring.Input by drawing a handful of independent
// knobs from rapid generators, covering the signal combinations that feed
// §8's determinism, bounds, and mutual-exclusion properties.
func randomInput(t *rapid.T) Input {
	durationHours := rapid.Float64Range(0, 400).Draw(t, "durationHours")
	impossibleSpeed := rapid.Bool().Draw(t, "impossibleSpeed")
	mmsiReuse := rapid.Bool().Draw(t, "mmsiReuse")
	inDarkZone := rapid.Bool().Draw(t, "inDarkZone")
	otherDark := rapid.IntRange(0, 10).Draw(t, "otherDark")
	flagChanges := rapid.IntRange(0, 6).Draw(t, "flagChanges")
	watchlist := rapid.Bool().Draw(t, "watchlist")
	freq30 := rapid.IntRange(0, 10).Draw(t, "freq30")
	dwt := rapid.Float64Range(0, 400000).Draw(t, "dwt")

	var anomalies []models.SpoofingAnomaly
	if mmsiReuse {
		anomalies = append(anomalies, models.SpoofingAnomaly{Type: models.SpoofMMSIReuse})
	}

	return Input{
		Gap: models.GapEvent{
			DurationHours:       durationHours,
			ImpossibleSpeedFlag: impossibleSpeed,
			InDarkZone:          inDarkZone,
		},
		Vessel:             models.Vessel{DeadweightTonnes: dwt},
		SpoofingAnomalies:  anomalies,
		WatchlistMatch:     watchlist,
		FlagChangeCount90d: flagChanges,
		DarkZone:           DarkZoneContext{OtherDarkVesselCount: &otherDark},
		FrequencyCounts:    map[int]int{30: freq30},
		ScoringDate:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCompute_IsDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := testConfig()
		in := randomInput(t)

		first := Compute(cfg, in)
		second := Compute(cfg, in)

		assert.Equal(t, first.Score, second.Score)
		assert.Equal(t, first.Breakdown, second.Breakdown)
	})
}

func TestCompute_ScoreStaysWithinBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := testConfig()
		in := randomInput(t)

		result := Compute(cfg, in)

		assert.GreaterOrEqual(t, result.Score, minScore)
		assert.LessOrEqual(t, result.Score, maxScore)
	})
}

func TestCompute_SpeedSignalsAreMutuallyExclusive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := testConfig()
		in := randomInput(t)

		result := Compute(cfg, in)

		_, hasImpossible := result.Breakdown["speed_impossible"]
		_, hasSpoof := result.Breakdown["speed_spoof"]
		assert.False(t, hasImpossible && hasSpoof)
	})
}

func TestCompute_FlagChangeSignalsAreMutuallyExclusive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := testConfig()
		in := randomInput(t)

		result := Compute(cfg, in)

		_, hasThreePlus := result.Breakdown["flag_changes_3plus_90d"]
		_, hasHopping := result.Breakdown["flag_hopping"]
		assert.False(t, hasThreePlus && hasHopping)
	})
}

func TestCompute_AtMostOneDurationTierKey(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := testConfig()
		in := randomInput(t)

		result := Compute(cfg, in)

		tierKeys := []string{"gap_duration_tier_1", "gap_duration_tier_2", "gap_duration_tier_3"}
		present := 0
		for _, k := range tierKeys {
			if _, ok := result.Breakdown[k]; ok {
				present++
			}
		}
		assert.LessOrEqual(t, present, 1)
	})
}

func TestCompute_AtMostOneDarkZoneKey(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := testConfig()
		in := randomInput(t)

		result := Compute(cfg, in)

		_, hasSelective := result.Breakdown["selective_dark_zone_evasion"]
		_, hasDeduction := result.Breakdown["dark_zone_deduction"]
		assert.False(t, hasSelective && hasDeduction)
	})
}

// TestCompute_VesselAgeBreakdownCrossesYearBoundary exercises §8's scoring
// reproducibility-over-time property: the same vessel, scored on either
// side of its 25-year boundary, gets a different age-tier breakdown key
// even though nothing else about the input changed.
func TestCompute_VesselAgeBreakdownCrossesYearBoundary(t *testing.T) {
	cfg := testConfig()
	in := Input{Vessel: models.Vessel{YearBuilt: 2002}}

	in.ScoringDate = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	before := Compute(cfg, in)
	assert.Contains(t, before.Breakdown, "vessel_age_under_25")
	assert.NotContains(t, before.Breakdown, "vessel_age_25_plus")

	in.ScoringDate = time.Date(2028, 6, 1, 0, 0, 0, 0, time.UTC)
	after := Compute(cfg, in)
	assert.Contains(t, after.Breakdown, "vessel_age_25_plus")
	assert.NotContains(t, after.Breakdown, "vessel_age_under_25")
}
