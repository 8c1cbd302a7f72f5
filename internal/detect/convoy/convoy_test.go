package convoy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radiancefleet/core/pkg/models"
)

func TestQualifiesConvoy_CloseFastAlignedQualifies(t *testing.T) {
	h1, h2 := 10.0, 15.0
	a := models.Position{Lat: 1, Lon: 1, SOGKnots: 5, HeadingDegrees: &h1}
	b := models.Position{Lat: 1.01, Lon: 1.01, SOGKnots: 5, HeadingDegrees: &h2}
	assert.True(t, qualifiesConvoy(a, b))
}

func TestQualifiesConvoy_TooFarDisqualifies(t *testing.T) {
	a := models.Position{Lat: 1, Lon: 1, SOGKnots: 5}
	b := models.Position{Lat: 2, Lon: 2, SOGKnots: 5}
	assert.False(t, qualifiesConvoy(a, b))
}

func TestQualifiesConvoy_TooSlowDisqualifies(t *testing.T) {
	a := models.Position{Lat: 1, Lon: 1, SOGKnots: 1}
	b := models.Position{Lat: 1.01, Lon: 1.01, SOGKnots: 1}
	assert.False(t, qualifiesConvoy(a, b))
}

func TestQualifiesConvoy_HeadingDeltaTooLargeDisqualifies(t *testing.T) {
	h1, h2 := 0.0, 90.0
	a := models.Position{Lat: 1, Lon: 1, SOGKnots: 5, HeadingDegrees: &h1}
	b := models.Position{Lat: 1.01, Lon: 1.01, SOGKnots: 5, HeadingDegrees: &h2}
	assert.False(t, qualifiesConvoy(a, b))
}

func TestQualifiesConvoy_MissingHeadingSkipsHeadingCheck(t *testing.T) {
	a := models.Position{Lat: 1, Lon: 1, SOGKnots: 5}
	b := models.Position{Lat: 1.01, Lon: 1.01, SOGKnots: 5}
	assert.True(t, qualifiesConvoy(a, b))
}

func TestConvoyScore_Tiers(t *testing.T) {
	assert.Equal(t, 15, convoyScore(4))
	assert.Equal(t, 25, convoyScore(8))
	assert.Equal(t, 35, convoyScore(24))
}

func TestConsecutiveRuns_GroupsAdjacentBuckets(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	buckets := []time.Time{
		base.Add(2 * time.Hour),
		base,
		base.Add(15 * time.Minute),
		base.Add(30 * time.Minute),
	}
	runs := consecutiveRuns(buckets)
	assert.Len(t, runs, 2)
	assert.Len(t, runs[0], 3)
	assert.Len(t, runs[1], 1)
}

func TestConsecutiveRuns_DedupsEqualTimestamps(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	buckets := []time.Time{base, base, base.Add(15 * time.Minute)}
	runs := consecutiveRuns(buckets)
	assert.Len(t, runs, 1)
	assert.Len(t, runs[0], 2)
}

func TestConsecutiveRuns_EmptyIsNil(t *testing.T) {
	assert.Nil(t, consecutiveRuns(nil))
}

func TestHasIceClassKeyword_MatchesCaseInsensitive(t *testing.T) {
	assert.True(t, hasIceClassKeyword("Ice Class 1A Tanker"))
	assert.True(t, hasIceClassKeyword("polar class bulk carrier"))
	assert.False(t, hasIceClassKeyword("standard bulk carrier"))
}
