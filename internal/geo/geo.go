// Package geo provides the spatial and temporal primitives shared by every
// detector: great-circle distance and bearing, bounding-box containment,
// WKT point parsing, 15-minute time buckets, and the 1-degree spatial grid
// used to index positions for the STS and convoy pairwise scans.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s2"
	"github.com/radiancefleet/core/pkg/models"
)

const earthRadiusNM = 3440.065 // nautical miles

// HaversineNM returns the great-circle distance between two points in
// nautical miles.
func HaversineNM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusNM * c
}

// BearingDegrees returns the initial great-circle bearing from point 1 to
// point 2, in degrees [0, 360).
func BearingDegrees(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	theta := math.Atan2(y, x)
	deg := theta*180/math.Pi + 360
	return math.Mod(deg, 360)
}

// BearingDelta returns the absolute angular difference between two
// headings/courses in degrees, in [0, 180].
func BearingDelta(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// ImpliedSpeedKn returns the speed, in knots, implied by covering distanceNM
// over elapsed. Returns 0 when elapsed is non-positive.
func ImpliedSpeedKn(distanceNM float64, elapsed time.Duration) float64 {
	hours := elapsed.Hours()
	if hours <= 0 {
		return 0
	}
	return distanceNM / hours
}

// Contains reports whether (lat, lon) falls inside bbox, expanded by
// toleranceDeg on every side (the gap detector uses a 0.1° tolerance when
// intersecting a straight-line trajectory against corridor/dark-zone boxes).
// A bbox with MinLon > MaxLon is treated as crossing the antimeridian (e.g.
// the Bering Strait traffic separation scheme straddles ±180°): the
// longitude test becomes an OR of the two wrapped half-ranges instead of a
// single min/max span.
func Contains(bbox models.BoundingBox, lat, lon, toleranceDeg float64) bool {
	if lat < bbox.MinLat-toleranceDeg || lat > bbox.MaxLat+toleranceDeg {
		return false
	}
	if bbox.MinLon > bbox.MaxLon {
		return lon >= bbox.MinLon-toleranceDeg || lon <= bbox.MaxLon+toleranceDeg
	}
	return lon >= bbox.MinLon-toleranceDeg && lon <= bbox.MaxLon+toleranceDeg
}

// SegmentIntersectsBBox reports whether the straight-line segment between
// two endpoints passes through (or touches, within tolerance) bbox. Used by
// the gap detector to assign corridor/dark-zone membership to a gap's
// implied trajectory without a full polygon-clip.
func SegmentIntersectsBBox(lat1, lon1, lat2, lon2 float64, bbox models.BoundingBox, toleranceDeg float64) bool {
	if Contains(bbox, lat1, lon1, toleranceDeg) || Contains(bbox, lat2, lon2, toleranceDeg) {
		return true
	}
	// Unwrap lon2 onto a continuous extension of lon1 before interpolating,
	// so a segment that actually crosses the antimeridian (e.g. 179.9 ->
	// -179.9, a 0.2° hop) doesn't get linearly sampled the long way around
	// through 0°.
	if lon2-lon1 > 180 {
		lon2 -= 360
	} else if lon1-lon2 > 180 {
		lon2 += 360
	}
	// Sample along the segment; cheap and sufficient at corridor scale since
	// corridors span many degrees and gaps rarely cross a box edge-to-edge
	// without passing near an interior sample point.
	const samples = 16
	for i := 1; i < samples; i++ {
		t := float64(i) / float64(samples)
		lat := lat1 + (lat2-lat1)*t
		lon := lon1 + (lon2-lon1)*t
		lon = math.Mod(lon+540, 360) - 180
		if Contains(bbox, lat, lon, toleranceDeg) {
			return true
		}
	}
	return false
}

// S2CellToken returns the S2 cell token at the given level for a point. S2
// cells tile the sphere with no seam at the antimeridian, unlike a plain
// floor(lat)/floor(lon) grid, which is why GridCell below is built on it
// rather than on raw degree buckets.
func S2CellToken(lat, lon float64, level int) string {
	ll := s2.LatLngFromDegrees(lat, lon)
	cellID := s2.CellIDFromLatLng(ll).Parent(level)
	return cellID.ToToken()
}

// s2GridLevel is the S2 cell level backing GridCell: level 7 cells span
// roughly one degree of arc at the equator, matching the coarse-grid
// granularity the STS and convoy pairwise scans expect (§4.2.5/§4.2.6).
const s2GridLevel = 7

// GridCell is a spatial grid cell key used to bucket positions for the STS
// and convoy pairwise scans. Backed by an S2 cell token rather than a
// floor(lat)/floor(lon) pair so two vessels crossing the ±180° meridian
// within a few hundred meters of each other still land in the same bucket
// (a plain degree grid would split them into cells 359° apart).
type GridCell struct {
	token string
}

// Grid1Deg returns the ~1-degree S2 grid cell containing (lat, lon).
func Grid1Deg(lat, lon float64) GridCell {
	return GridCell{token: S2CellToken(lat, lon, s2GridLevel)}
}

// TimeBucket15Min returns the start of the 15-minute bucket containing t,
// in UTC.
func TimeBucket15Min(t time.Time) time.Time {
	t = t.UTC()
	minute := (t.Minute() / 15) * 15
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, time.UTC)
}

// TimeBucketHour returns the start of the hour bucket containing t.
func TimeBucketHour(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
}

// TimeBucketDay returns the start of the UTC day containing t.
func TimeBucketDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WKTOrder records whether a parsed WKT POINT used (lon, lat) or (lat, lon)
// ordering, per spec.md §9's open question: upstream sources disagree and
// implementations must tolerate both.
type WKTOrder int

const (
	WKTOrderLonLat WKTOrder = iota
	WKTOrderLatLon
)

// ParseWKTPoint parses "POINT(x y)" and returns (lat, lon). assumeOrder
// tells the parser which axis order the source uses; callers that don't
// know should default to WKTOrderLonLat (the WKT standard) and fall back to
// WKTOrderLatLon only for sources documented to violate it (see
// internal/config's port-geometry loader).
func ParseWKTPoint(wkt string, assumeOrder WKTOrder) (lat, lon float64, err error) {
	s := strings.TrimSpace(wkt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "POINT") {
		return 0, 0, fmt.Errorf("geo: not a WKT POINT: %q", wkt)
	}
	open := strings.IndexByte(s, '(')
	closeIdx := strings.LastIndexByte(s, ')')
	if open < 0 || closeIdx < 0 || closeIdx <= open {
		return 0, 0, fmt.Errorf("geo: malformed WKT POINT: %q", wkt)
	}
	inner := strings.TrimSpace(s[open+1 : closeIdx])
	parts := strings.Fields(inner)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("geo: expected 2 coordinates, got %d in %q", len(parts), wkt)
	}
	x, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geo: invalid x coordinate in %q: %w", wkt, err)
	}
	y, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("geo: invalid y coordinate in %q: %w", wkt, err)
	}

	switch assumeOrder {
	case WKTOrderLatLon:
		return x, y, nil
	default:
		return y, x, nil
	}
}
