// Package convoy implements the formation-convoy detector plus its two
// self-referential sub-detectors, floating storage and Arctic no-ice-class
// (§4.2.6). Grounded on the same (15-minute bucket, 1-degree grid cell)
// pairwise-scan index as internal/detect/sts.
package convoy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/radiancefleet/core/internal/geo"
	"github.com/radiancefleet/core/internal/obs/metrics"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

const proximityNM = 5.0
const minSOGKnots = 3.0
const maxHeadingDeltaDeg = 15.0
const minConsecutiveBuckets = 16

const floatingStorageMinLoiterHours = 720.0
const floatingStorageMinSTSEvents = 2

const arcticLatitudeThreshold = 66.5

var iceClassKeywords = []string{"ice class", "ice-class", "polar class", "1a", "1as", "1b"}

// Stats summarizes one Detect call.
type Stats struct {
	EventsCreated int
	EventsSkipped int
}

type bucketKey struct {
	bucket time.Time
	cell   geo.GridCell
}

type pairKey struct {
	a, b int64
}

// Detect indexes positions into the shared grid and flags formations: pairs
// within 5nm, both SOG > 3kn, heading delta <= 15deg, sustained for >= 16
// consecutive 15-minute buckets (4h).
func Detect(ctx context.Context, convoy *store.ConvoyRepo, positions []models.Position, vesselOf map[int]int64) (Stats, error) {
	var stats Stats

	index := map[bucketKey][]int{}
	for i, p := range positions {
		key := bucketKey{bucket: geo.TimeBucket15Min(p.TimestampUTC), cell: geo.Grid1Deg(p.Lat, p.Lon)}
		index[key] = append(index[key], i)
	}

	pairBucketHits := map[pairKey][]time.Time{}
	for key, idxs := range index {
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				a, b := positions[idxs[i]], positions[idxs[j]]
				vesselA, vesselB := vesselOf[idxs[i]], vesselOf[idxs[j]]
				if vesselA == vesselB {
					continue
				}
				if !qualifiesConvoy(a, b) {
					continue
				}
				lo, hi := models.PairKey(vesselA, vesselB)
				pk := pairKey{lo, hi}
				pairBucketHits[pk] = append(pairBucketHits[pk], key.bucket)
			}
		}
	}

	for pk, hits := range pairBucketHits {
		for _, run := range consecutiveRuns(hits) {
			if len(run) < minConsecutiveBuckets {
				continue
			}
			durationHours := run[len(run)-1].Sub(run[0]).Hours() + 0.25
			event := models.ConvoyEvent{
				VesselAID: pk.a, VesselBID: pk.b, Kind: models.ConvoyKindFormation,
				StartUTC: run[0], EndUTC: run[len(run)-1].Add(15 * time.Minute),
				AnalystStatus: models.StatusNew,
				RiskScore:     convoyScore(durationHours),
			}
			if _, created, err := convoy.Insert(ctx, event); err != nil {
				return stats, fmt.Errorf("convoy: inserting formation event for pair (%d,%d): %w", pk.a, pk.b, err)
			} else if created {
				stats.EventsCreated++
				metrics.DetectorEventsTotal.WithLabelValues("convoy").Inc()
			} else {
				stats.EventsSkipped++
			}
		}
	}
	return stats, nil
}

func qualifiesConvoy(a, b models.Position) bool {
	if geo.HaversineNM(a.Lat, a.Lon, b.Lat, b.Lon) >= proximityNM {
		return false
	}
	if a.SOGKnots <= minSOGKnots || b.SOGKnots <= minSOGKnots {
		return false
	}
	if a.HeadingDegrees != nil && b.HeadingDegrees != nil {
		if geo.BearingDelta(*a.HeadingDegrees, *b.HeadingDegrees) > maxHeadingDeltaDeg {
			return false
		}
	}
	return true
}

func convoyScore(hours float64) int {
	switch {
	case hours >= 24:
		return 35
	case hours >= 8:
		return 25
	default:
		return 15
	}
}

func consecutiveRuns(buckets []time.Time) [][]time.Time {
	if len(buckets) == 0 {
		return nil
	}
	sorted := append([]time.Time(nil), buckets...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].After(sorted[j]); j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	var runs [][]time.Time
	current := []time.Time{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Equal(sorted[i-1]) {
			continue
		}
		if sorted[i].Sub(sorted[i-1]) == 15*time.Minute {
			current = append(current, sorted[i])
			continue
		}
		runs = append(runs, current)
		current = []time.Time{sorted[i]}
	}
	return append(runs, current)
}

// DetectFloatingStorage flags a vessel with a single loitering run >= 720h
// AND >= 2 STS events as floating storage, persisted as a self-referential
// ConvoyEvent (vessel_a_id == vessel_b_id).
func DetectFloatingStorage(ctx context.Context, convoy *store.ConvoyRepo, vesselID int64, longestLoiterHours float64, stsEventCount int, windowStart, windowEnd time.Time) (bool, error) {
	if longestLoiterHours < floatingStorageMinLoiterHours || stsEventCount < floatingStorageMinSTSEvents {
		return false, nil
	}
	event := models.ConvoyEvent{
		VesselAID: vesselID, VesselBID: vesselID, Kind: models.ConvoyKindFloatingStorage,
		StartUTC: windowStart, EndUTC: windowEnd,
		AnalystStatus: models.StatusNew, RiskScore: 25,
	}
	_, created, err := convoy.Insert(ctx, event)
	if err != nil {
		return false, fmt.Errorf("convoy: inserting floating-storage flag for vessel %d: %w", vesselID, err)
	}
	return created, nil
}

// DetectArcticNoIceClass flags a tanker whose recent positions intersect an
// Arctic-tagged corridor or extend above 66.5N, and whose declared vessel
// type carries no recognized ice-class keyword.
func DetectArcticNoIceClass(ctx context.Context, convoy *store.ConvoyRepo, vesselID int64, vesselType string, track []models.Position, arcticCorridors []models.Corridor) (bool, error) {
	if hasIceClassKeyword(vesselType) {
		return false, nil
	}
	var inArctic bool
	var windowStart, windowEnd time.Time
	for _, p := range track {
		intersectsArctic := p.Lat >= arcticLatitudeThreshold
		if !intersectsArctic {
			for _, c := range arcticCorridors {
				if c.IsArctic && geo.Contains(c.BBox, p.Lat, p.Lon, 0) {
					intersectsArctic = true
					break
				}
			}
		}
		if intersectsArctic {
			if !inArctic {
				windowStart = p.TimestampUTC
			}
			windowEnd = p.TimestampUTC
			inArctic = true
		}
	}
	if !inArctic {
		return false, nil
	}

	event := models.ConvoyEvent{
		VesselAID: vesselID, VesselBID: vesselID, Kind: models.ConvoyKindArcticNoIce,
		StartUTC: windowStart, EndUTC: windowEnd,
		AnalystStatus: models.StatusNew, RiskScore: 25,
	}
	_, created, err := convoy.Insert(ctx, event)
	if err != nil {
		return false, fmt.Errorf("convoy: inserting arctic-no-ice flag for vessel %d: %w", vesselID, err)
	}
	return created, nil
}

func hasIceClassKeyword(vesselType string) bool {
	lower := strings.ToLower(vesselType)
	for _, kw := range iceClassKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
