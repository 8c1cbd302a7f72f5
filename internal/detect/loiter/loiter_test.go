package loiter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiancefleet/core/pkg/models"
)

func TestMedianFloat_EmptyIsNaN(t *testing.T) {
	assert.True(t, math.IsNaN(medianFloat(nil)))
}

func TestMedianFloat_OddAndEven(t *testing.T) {
	assert.Equal(t, 2.0, medianFloat([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, medianFloat([]float64{4, 1, 2, 3}))
}

func TestBucketByHour_GroupsByHourAndFlagsLow(t *testing.T) {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	track := []models.Position{
		{TimestampUTC: base, SOGKnots: 0.1, Lat: 1, Lon: 1},
		{TimestampUTC: base.Add(20 * time.Minute), SOGKnots: 0.2, Lat: 1, Lon: 1},
		{TimestampUTC: base.Add(2 * time.Hour), SOGKnots: 15, Lat: 2, Lon: 2},
	}
	buckets := bucketByHour(track)
	require.Len(t, buckets, 2)
	assert.True(t, buckets[0].isLow)
	assert.False(t, buckets[1].isLow)
}

func TestBuildLoiteringEvent_LongRunInCorridorScoresHigher(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var run []hourBucket
	for i := 0; i < 13; i++ {
		run = append(run, hourBucket{start: start.Add(time.Duration(i) * time.Hour), medianSOG: 0.1, meanLat: 1, meanLon: 1, isLow: true})
	}
	corridor := models.Corridor{ID: 9, BBox: models.BoundingBox{MinLat: 0, MaxLat: 2, MinLon: 0, MaxLon: 2}}
	event := buildLoiteringEvent(5, run, []models.Corridor{corridor})
	assert.Equal(t, 20, event.RiskScore)
	require.NotNil(t, event.CorridorID)
	assert.Equal(t, int64(9), *event.CorridorID)
}

func TestBuildLoiteringEvent_ShortRunScoresLower(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := []hourBucket{
		{start: start, medianSOG: 0.1, meanLat: 50, meanLon: 50, isLow: true},
		{start: start.Add(time.Hour), medianSOG: 0.1, meanLat: 50, meanLon: 50, isLow: true},
	}
	event := buildLoiteringEvent(5, run, nil)
	assert.Equal(t, 8, event.RiskScore)
	assert.Nil(t, event.CorridorID)
}

func TestLongestStableRun_FindsAnchoredRun(t *testing.T) {
	days := []dayPosition{
		{day: time.Unix(0, 0), lat: 1, lon: 1},
		{day: time.Unix(0, 0), lat: 1.001, lon: 1.001},
		{day: time.Unix(0, 0), lat: 1.002, lon: 1.001},
		{day: time.Unix(0, 0), lat: 40, lon: 40},
	}
	run := longestStableRun(days)
	assert.Equal(t, 3, run.length)
}

func TestLongestStableRun_NoDaysIsZeroLength(t *testing.T) {
	assert.Zero(t, longestStableRun(nil).length)
}
