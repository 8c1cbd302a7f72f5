package geo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radiancefleet/core/pkg/models"
)

func TestHaversineNM_SameSameDistanceIsZero(t *testing.T) {
	assert.InDelta(t, 0, HaversineNM(1.0, 103.0, 1.0, 103.0), 1e-9)
}

func TestHaversineNM_KnownDistance(t *testing.T) {
	// roughly 60nm spans one degree of latitude
	d := HaversineNM(0, 0, 1, 0)
	assert.InDelta(t, 60, d, 1.0)
}

func TestBearingDelta_WrapsAroundNorth(t *testing.T) {
	assert.InDelta(t, 20, BearingDelta(350, 10), 1e-9)
}

func TestBearingDelta_WithinHalfCircle(t *testing.T) {
	assert.InDelta(t, 90, BearingDelta(0, 90), 1e-9)
}

func TestImpliedSpeedKn_ZeroElapsedIsZero(t *testing.T) {
	assert.Zero(t, ImpliedSpeedKn(100, 0))
}

func TestImpliedSpeedKn_ComputesRatio(t *testing.T) {
	assert.InDelta(t, 20, ImpliedSpeedKn(40, 2*time.Hour), 1e-9)
}

func TestContains_WithinTolerance(t *testing.T) {
	bbox := models.BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}
	assert.True(t, Contains(bbox, -0.05, 0.5, 0.1))
	assert.False(t, Contains(bbox, -0.5, 0.5, 0.1))
}

func TestSegmentIntersectsBBox_EndpointInside(t *testing.T) {
	bbox := models.BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}
	assert.True(t, SegmentIntersectsBBox(0.5, 0.5, 5, 5, bbox, 0))
}

func TestSegmentIntersectsBBox_PassesThroughMiddle(t *testing.T) {
	bbox := models.BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}
	assert.True(t, SegmentIntersectsBBox(-1, 0.5, 2, 0.5, bbox, 0))
}

func TestSegmentIntersectsBBox_NeverNearBox(t *testing.T) {
	bbox := models.BoundingBox{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}
	assert.False(t, SegmentIntersectsBBox(50, 50, 51, 51, bbox, 0))
}

func TestContains_AntimeridianCrossingBox(t *testing.T) {
	// Bering Strait-style corridor box spanning from 179 to -179.
	bbox := models.BoundingBox{MinLat: 60, MaxLat: 66, MinLon: 179, MaxLon: -179}
	assert.True(t, Contains(bbox, 63, 179.5, 0))
	assert.True(t, Contains(bbox, 63, -179.5, 0))
	assert.True(t, Contains(bbox, 63, 180, 0))
	assert.False(t, Contains(bbox, 63, 0, 0))
}

func TestSegmentIntersectsBBox_CrossesAntimeridian(t *testing.T) {
	bbox := models.BoundingBox{MinLat: 60, MaxLat: 66, MinLon: 179, MaxLon: -179}
	assert.True(t, SegmentIntersectsBBox(63, 179.9, 63, -179.9, bbox, 0))
}

func TestGrid1Deg_SamePointIsDeterministic(t *testing.T) {
	assert.Equal(t, Grid1Deg(-0.5, -0.5), Grid1Deg(-0.5, -0.5))
}

func TestGrid1Deg_DistantPointsDifferentCells(t *testing.T) {
	assert.NotEqual(t, Grid1Deg(-0.5, -0.5), Grid1Deg(50, 50))
}

func TestGrid1Deg_AdjacentAcrossAntimeridianSameCell(t *testing.T) {
	// A plain floor(lat)/floor(lon) grid would put these 359.98° apart in
	// longitude bucket space even though they're 0.02° apart on the globe;
	// the S2-backed cell must keep them together.
	assert.Equal(t, Grid1Deg(10.0, 179.99), Grid1Deg(10.0, -179.99))
}

func TestTimeBucket15Min_RoundsDown(t *testing.T) {
	ts := time.Date(2026, 1, 1, 10, 47, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 45, 0, 0, time.UTC), TimeBucket15Min(ts))
}

func TestTimeBucketHour_TruncatesToHour(t *testing.T) {
	ts := time.Date(2026, 1, 1, 10, 47, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), TimeBucketHour(ts))
}

func TestTimeBucketDay_TruncatesToDay(t *testing.T) {
	ts := time.Date(2026, 1, 1, 10, 47, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), TimeBucketDay(ts))
}

func TestS2CellToken_DeterministicForSamePoint(t *testing.T) {
	assert.Equal(t, S2CellToken(1.0, 103.0, 12), S2CellToken(1.0, 103.0, 12))
}
