package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyKey(t *testing.T) {
	cases := map[string]Category{
		"watchlist_match":              CategoryWatchlist,
		"imo_fabricated":               CategorySpoofing,
		"scrapped_imo_reuse":           CategorySpoofing,
		"speed_anomaly":                CategorySpoofing,
		"fraudulent_registry_tier_2":   CategoryIdentityChange,
		"ism_continuity_break":         CategoryIdentityChange,
		"russian_port_call":            CategorySTSTransfer,
		"sts_event_detected":           CategorySTSTransfer,
		"at_sea_no_port_call_30d":      CategoryAISGap,
		"gap_duration_tier_3":          CategoryAISGap,
		"something_entirely_unrelated": CategoryOther,
	}
	for key, want := range cases {
		assert.Equal(t, want, ClassifyKey(key), "key=%s", key)
	}
}

func TestClassify_WatchlistMatchAlwaysConfirmed(t *testing.T) {
	level := Classify(5, map[string]int{}, true, false)
	assert.Equal(t, LevelConfirmed, level)
}

func TestClassify_AnalystVerifiedAlwaysConfirmed(t *testing.T) {
	level := Classify(0, nil, false, true)
	assert.Equal(t, LevelConfirmed, level)
}

func TestClassify_HighRequiresScoreAndCategorySpread(t *testing.T) {
	breakdown := map[string]int{
		"gap_duration_tier_4": 40,
		"russian_port_call":   40,
	}
	assert.Equal(t, LevelHigh, Classify(80, breakdown, false, false))
}

func TestClassify_HighViaSingleDominantCategory(t *testing.T) {
	breakdown := map[string]int{"gap_duration_tier_4": 85}
	assert.Equal(t, LevelHigh, Classify(85, breakdown, false, false))
}

func TestClassify_MediumRequiresSingleCategoryAtLeast30(t *testing.T) {
	breakdown := map[string]int{"gap_duration_tier_3": 35}
	assert.Equal(t, LevelMedium, Classify(55, breakdown, false, false))
}

func TestClassify_MediumFailsWithoutStrongCategory(t *testing.T) {
	breakdown := map[string]int{"gap_duration_tier_1": 10, "russian_port_call": 10}
	assert.Equal(t, LevelNone, Classify(55, breakdown, false, false))
}

func TestClassify_LowBand(t *testing.T) {
	assert.Equal(t, LevelLow, Classify(30, map[string]int{"gap_duration_tier_1": 30}, false, false))
}

func TestClassify_NegativeSignalsExcludedFromCategoryTotals(t *testing.T) {
	breakdown := map[string]int{"fingerprint_similarity": -5}
	assert.Equal(t, LevelNone, Classify(10, breakdown, false, false))
}

func TestClassify_BelowThresholdIsNone(t *testing.T) {
	assert.Equal(t, LevelNone, Classify(10, map[string]int{"gap_duration_tier_1": 10}, false, false))
}
