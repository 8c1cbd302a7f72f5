package gap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radiancefleet/core/pkg/models"
)

func TestBuildEvent_ImpossibleSpeedFlagged(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := models.Position{ID: 1, Lat: 0, Lon: 0, SOGKnots: 10, TimestampUTC: start}
	cur := models.Position{ID: 2, Lat: 5, Lon: 0, SOGKnots: 10, TimestampUTC: start.Add(1 * time.Hour)}
	event := buildEvent(42, prev, cur, cur.TimestampUTC.Sub(prev.TimestampUTC), nil, nil)
	assert.True(t, event.ImpossibleSpeedFlag)
	assert.Equal(t, int64(42), event.VesselID)
	assert.Equal(t, models.StatusNew, event.AnalystStatus)
}

func TestBuildEvent_PlausibleSpeedNotFlagged(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := models.Position{ID: 1, Lat: 0, Lon: 0, SOGKnots: 12, TimestampUTC: start}
	cur := models.Position{ID: 2, Lat: 0.1, Lon: 0, SOGKnots: 12, TimestampUTC: start.Add(3 * time.Hour)}
	event := buildEvent(1, prev, cur, cur.TimestampUTC.Sub(prev.TimestampUTC), nil, nil)
	assert.False(t, event.ImpossibleSpeedFlag)
}

func TestBuildEvent_AssignsCorridorOnIntersection(t *testing.T) {
	corridor := models.Corridor{ID: 7, BBox: models.BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}}
	prev := models.Position{ID: 1, Lat: 0.5, Lon: 0.5, TimestampUTC: time.Now()}
	cur := models.Position{ID: 2, Lat: 0.6, Lon: 0.6, TimestampUTC: time.Now().Add(time.Hour)}
	event := buildEvent(1, prev, cur, time.Hour, []models.Corridor{corridor}, nil)
	require := assert.New(t)
	require.NotNil(event.CorridorID)
	require.Equal(int64(7), *event.CorridorID)
}

func TestBuildEvent_FlagsDarkZoneMembership(t *testing.T) {
	dz := models.DarkZone{ID: 3, BBox: models.BoundingBox{MinLat: 40, MaxLat: 41, MinLon: 30, MaxLon: 31}}
	prev := models.Position{ID: 1, Lat: 40.5, Lon: 30.5, TimestampUTC: time.Now()}
	cur := models.Position{ID: 2, Lat: 40.6, Lon: 30.6, TimestampUTC: time.Now().Add(time.Hour)}
	event := buildEvent(1, prev, cur, time.Hour, nil, []models.DarkZone{dz})
	assert.True(t, event.InDarkZone)
}

func TestBuildEvent_ZeroPreGapSpeedLeavesRatioZero(t *testing.T) {
	prev := models.Position{ID: 1, Lat: 0, Lon: 0, SOGKnots: 0, TimestampUTC: time.Now()}
	cur := models.Position{ID: 2, Lat: 0, Lon: 0.001, TimestampUTC: time.Now().Add(time.Hour)}
	event := buildEvent(1, prev, cur, time.Hour, nil, nil)
	assert.Zero(t, event.VelocityPlausibilityRatio)
}
