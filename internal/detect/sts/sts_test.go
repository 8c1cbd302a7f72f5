package sts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radiancefleet/core/pkg/models"
)

func TestQualifies_CloseAndSlowQualifies(t *testing.T) {
	a := models.Position{Lat: 1, Lon: 1, SOGKnots: 0.5}
	b := models.Position{Lat: 1.001, Lon: 1.001, SOGKnots: 0.5}
	assert.True(t, qualifies(a, b))
}

func TestQualifies_TooFastDisqualifies(t *testing.T) {
	a := models.Position{Lat: 1, Lon: 1, SOGKnots: 10}
	b := models.Position{Lat: 1.001, Lon: 1.001, SOGKnots: 0.5}
	assert.False(t, qualifies(a, b))
}

func TestQualifies_TooFarDisqualifies(t *testing.T) {
	a := models.Position{Lat: 1, Lon: 1, SOGKnots: 0.5}
	b := models.Position{Lat: 5, Lon: 5, SOGKnots: 0.5}
	assert.False(t, qualifies(a, b))
}

func TestQualifies_HeadingDeltaTooLargeDisqualifies(t *testing.T) {
	h1, h2 := 0.0, 170.0
	a := models.Position{Lat: 1, Lon: 1, SOGKnots: 0.5, HeadingDegrees: &h1}
	b := models.Position{Lat: 1.001, Lon: 1.001, SOGKnots: 0.5, HeadingDegrees: &h2}
	assert.False(t, qualifies(a, b))
}

func TestClassify_BothVisible(t *testing.T) {
	assert.Equal(t, models.STSVisibleVisible, classify(IndexedPosition{Visible: true}, IndexedPosition{Visible: true}))
}

func TestClassify_OneDark(t *testing.T) {
	assert.Equal(t, models.STSVisibleDark, classify(IndexedPosition{Visible: true}, IndexedPosition{Visible: false}))
}

func TestClassify_BothDark(t *testing.T) {
	assert.Equal(t, models.STSDarkDark, classify(IndexedPosition{Visible: false}, IndexedPosition{Visible: false}))
}

func TestConsecutiveRuns_GroupsAdjacentBuckets(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	buckets := []time.Time{
		base, base.Add(15 * time.Minute), base.Add(30 * time.Minute),
		base.Add(2 * time.Hour),
	}
	runs := consecutiveRuns(buckets)
	assert.Len(t, runs, 2)
	assert.Len(t, runs[0], 3)
	assert.Len(t, runs[1], 1)
}

func TestConsecutiveRuns_EmptyIsNil(t *testing.T) {
	assert.Nil(t, consecutiveRuns(nil))
}
