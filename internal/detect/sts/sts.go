// Package sts implements the ship-to-ship transfer detector (§4.2.5).
// Grounded on the teacher's internal/heuristics/cluster_engine.go grid
// indexing approach, here a (15-minute bucket, 1-degree grid cell) index
// over positions feeding a pairwise proximity scan instead of an address
// cluster scan.
package sts

import (
	"context"
	"fmt"
	"time"

	"github.com/radiancefleet/core/internal/geo"
	"github.com/radiancefleet/core/internal/obs/metrics"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

const proximityNM = 1.0
const maxSOGKnots = 3.0
const maxHeadingDeltaDeg = 30.0
const minConsecutiveBuckets = 3

// IndexedPosition is a position tagged with the vessel it belongs to and
// whether that vessel is AIS-visible (vs. a dark-detection/SAR reference).
type IndexedPosition struct {
	VesselID int64
	Visible  bool
	Position models.Position
}

// Stats summarizes one Detect call.
type Stats struct {
	BucketsScanned int
	EventsCreated  int
	EventsSkipped  int
}

type bucketKey struct {
	bucket time.Time
	cell   geo.GridCell
}

type pairKey struct {
	a, b int64
}

// Detect indexes all positions into (15-minute bucket, 1-degree grid
// cell) buckets, evaluates every same-bucket pair for STS qualification,
// and promotes a run of >= 3 consecutive qualifying buckets (45 minutes)
// to an STSTransferEvent.
func Detect(ctx context.Context, sts *store.STSTransferRepo, positions []IndexedPosition, corridors []models.Corridor) (Stats, error) {
	var stats Stats

	index := map[bucketKey][]IndexedPosition{}
	var bucketOrder []time.Time
	seenBucket := map[time.Time]bool{}
	for _, ip := range positions {
		bucket := geo.TimeBucket15Min(ip.Position.TimestampUTC)
		cell := geo.Grid1Deg(ip.Position.Lat, ip.Position.Lon)
		key := bucketKey{bucket: bucket, cell: cell}
		index[key] = append(index[key], ip)
		if !seenBucket[bucket] {
			seenBucket[bucket] = true
			bucketOrder = append(bucketOrder, bucket)
		}
	}
	for i := 1; i < len(bucketOrder); i++ {
		if bucketOrder[i].Before(bucketOrder[i-1]) {
			bucketOrder[i], bucketOrder[i-1] = bucketOrder[i-1], bucketOrder[i]
		}
	}
	stats.BucketsScanned = len(bucketOrder)

	// pairBucketHits[pairKey] accumulates the sorted list of buckets where
	// the pair qualified, then runs are found by scanning for >= 3
	// consecutive 15-minute buckets.
	pairBucketHits := map[pairKey][]time.Time{}
	pairMeta := map[pairKey]struct {
		detectionType models.STSDetectionType
	}{}

	for key, bucketPositions := range index {
		for i := 0; i < len(bucketPositions); i++ {
			for j := i + 1; j < len(bucketPositions); j++ {
				a, b := bucketPositions[i], bucketPositions[j]
				if a.VesselID == b.VesselID {
					continue
				}
				if !qualifies(a.Position, b.Position) {
					continue
				}
				lo, hi := models.PairKey(a.VesselID, b.VesselID)
				pk := pairKey{lo, hi}
				pairBucketHits[pk] = append(pairBucketHits[pk], key.bucket)
				pairMeta[pk] = struct{ detectionType models.STSDetectionType }{detectionType: classify(a, b)}
			}
		}
	}

	for pk, hits := range pairBucketHits {
		runs := consecutiveRuns(hits)
		for _, run := range runs {
			if len(run) < minConsecutiveBuckets {
				continue
			}
			event := models.STSTransferEvent{
				Vessel1ID:     pk.a,
				Vessel2ID:     pk.b,
				StartUTC:      run[0],
				EndUTC:        run[len(run)-1].Add(15 * time.Minute),
				DetectionType: pairMeta[pk].detectionType,
				AnalystStatus: models.StatusNew,
				RiskScore:     15,
			}
			for _, ip := range positions {
				if ip.VesselID == pk.a {
					event.MeanLat, event.MeanLon = ip.Position.Lat, ip.Position.Lon
					break
				}
			}
			for _, c := range corridors {
				if geo.Contains(c.BBox, event.MeanLat, event.MeanLon, 0) {
					id := c.ID
					event.CorridorID = &id
					break
				}
			}

			_, created, err := sts.Insert(ctx, event)
			if err != nil {
				return stats, fmt.Errorf("sts: inserting event for pair (%d,%d): %w", pk.a, pk.b, err)
			}
			if created {
				stats.EventsCreated++
				metrics.DetectorEventsTotal.WithLabelValues("sts").Inc()
			} else {
				stats.EventsSkipped++
			}
		}
	}

	return stats, nil
}

func qualifies(a, b models.Position) bool {
	if geo.HaversineNM(a.Lat, a.Lon, b.Lat, b.Lon) >= proximityNM {
		return false
	}
	if a.SOGKnots >= maxSOGKnots || b.SOGKnots >= maxSOGKnots {
		return false
	}
	if a.HeadingDegrees != nil && b.HeadingDegrees != nil {
		if geo.BearingDelta(*a.HeadingDegrees, *b.HeadingDegrees) > maxHeadingDeltaDeg {
			return false
		}
	}
	return true
}

func classify(a, b IndexedPosition) models.STSDetectionType {
	switch {
	case a.Visible && b.Visible:
		return models.STSVisibleVisible
	case a.Visible || b.Visible:
		return models.STSVisibleDark
	default:
		return models.STSDarkDark
	}
}

// consecutiveRuns groups a set of 15-minute bucket timestamps into runs of
// directly adjacent buckets.
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
	runs = append(runs, current)
	return runs
}
