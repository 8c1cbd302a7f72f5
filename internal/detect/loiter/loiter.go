// Package loiter implements the loitering detector and the laid-up
// classifier (§4.2.4). Grounded on the teacher's
// internal/heuristics/cluster_engine.go bucket-and-threshold style: bucket
// positions into fixed windows, compute one statistic per bucket, then scan
// the bucket sequence for a qualifying run.
package loiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/radiancefleet/core/internal/geo"
	"github.com/radiancefleet/core/internal/obs/metrics"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

const lowSOGThreshold = 0.5
const minContiguousBuckets = 4
const longLoiterHours = 12.0
const laidUp30Days = 30
const laidUp60Days = 60
const laidUpRadiusNM = 2.0

// Stats summarizes one Detect call.
type Stats struct {
	BucketsScanned int
	EventsCreated  int
	EventsSkipped  int
}

type hourBucket struct {
	start     time.Time
	medianSOG float64
	meanLat   float64
	meanLon   float64
	isLow     bool
}

// Detect buckets vesselID's track into 1h windows, computes median SOG per
// bucket, and emits a LoiteringEvent for every run of >= 4 consecutive
// low-SOG buckets (median < 0.5kn). Only hours holding at least one
// position form a bucket, so an hour with no reports neither counts toward
// a run nor breaks one.
func Detect(ctx context.Context, loitering *store.LoiteringRepo, vesselID int64, track []models.Position, corridors []models.Corridor) (Stats, error) {
	var stats Stats
	buckets := bucketByHour(track)
	stats.BucketsScanned = len(buckets)

	runStart := -1
	for i := 0; i <= len(buckets); i++ {
		low := i < len(buckets) && buckets[i].isLow
		if low {
			if runStart == -1 {
				runStart = i
			}
			continue
		}
		if runStart != -1 {
			runLen := i - runStart
			if runLen >= minContiguousBuckets {
				event := buildLoiteringEvent(vesselID, buckets[runStart:i], corridors)
				id, created, err := loitering.Insert(ctx, event)
				if err != nil {
					return stats, fmt.Errorf("loiter: inserting event for vessel %d: %w", vesselID, err)
				}
				if created {
					stats.EventsCreated++
					metrics.DetectorEventsTotal.WithLabelValues("loitering").Inc()
					_ = id
				} else {
					stats.EventsSkipped++
				}
			}
			runStart = -1
		}
	}
	return stats, nil
}

func buildLoiteringEvent(vesselID int64, run []hourBucket, corridors []models.Corridor) models.LoiteringEvent {
	start, end := run[0].start, run[len(run)-1].start.Add(time.Hour)
	var sumLat, sumLon, sumSOG float64
	for _, b := range run {
		sumLat += b.meanLat
		sumLon += b.meanLon
		sumSOG += b.medianSOG
	}
	n := float64(len(run))
	meanLat, meanLon := sumLat/n, sumLon/n

	event := models.LoiteringEvent{
		VesselID:       vesselID,
		StartUTC:       start,
		EndUTC:         end,
		MedianSOGKnots: sumSOG / n,
		MeanLat:        meanLat,
		MeanLon:        meanLon,
		AnalystStatus:  models.StatusNew,
	}

	var inCorridor bool
	for _, c := range corridors {
		if geo.Contains(c.BBox, meanLat, meanLon, 0) {
			id := c.ID
			event.CorridorID = &id
			inCorridor = true
			break
		}
	}

	durationHours := end.Sub(start).Hours()
	if durationHours >= longLoiterHours && inCorridor {
		event.RiskScore = 20
	} else {
		event.RiskScore = 8
	}
	return event
}

func bucketByHour(track []models.Position) []hourBucket {
	if len(track) == 0 {
		return nil
	}
	grouped := map[time.Time][]models.Position{}
	var order []time.Time
	for _, p := range track {
		key := geo.TimeBucketHour(p.TimestampUTC)
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], p)
	}

	buckets := make([]hourBucket, len(order))
	for i, key := range order {
		positions := grouped[key]
		sogs := make([]float64, len(positions))
		var sumLat, sumLon float64
		for j, p := range positions {
			sogs[j] = p.SOGKnots
			sumLat += p.Lat
			sumLon += p.Lon
		}
		median := medianFloat(sogs)
		buckets[i] = hourBucket{
			start:     key,
			medianSOG: median,
			meanLat:   sumLat / float64(len(positions)),
			meanLon:   sumLon / float64(len(positions)),
			isLow:     math.IsNaN(median) || median < lowSOGThreshold,
		}
	}
	return buckets
}

func medianFloat(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// DetectLaidUp examines daily median positions over a vessel's full
// history and sets laid_up_30d / laid_up_60d / laid_up_in_sts_zone when a
// contiguous run stays within laidUpRadiusNM of a run-anchor for 30/60+
// consecutive days.
func DetectLaidUp(ctx context.Context, vessels *store.VesselRepo, vesselID int64, dailyTrack []models.Position, stsZones []models.Corridor) error {
	days := bucketByDay(dailyTrack)
	if len(days) == 0 {
		return nil
	}

	longestRun := longestStableRun(days)
	if longestRun.length == 0 {
		return vessels.UpdateLaidUpFlags(ctx, vesselID, false, false, false)
	}

	laidUp30d := longestRun.length >= laidUp30Days
	laidUp60d := longestRun.length >= laidUp60Days
	inSTSZone := false
	for _, zone := range stsZones {
		if geo.Contains(zone.BBox, longestRun.anchorLat, longestRun.anchorLon, 0) {
			inSTSZone = true
			break
		}
	}
	return vessels.UpdateLaidUpFlags(ctx, vesselID, laidUp30d, laidUp60d, inSTSZone)
}

type dayPosition struct {
	day      time.Time
	lat, lon float64
}

func bucketByDay(track []models.Position) []dayPosition {
	grouped := map[time.Time][]models.Position{}
	var order []time.Time
	for _, p := range track {
		key := geo.TimeBucketDay(p.TimestampUTC)
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], p)
	}
	out := make([]dayPosition, len(order))
	for i, key := range order {
		positions := grouped[key]
		lats := make([]float64, len(positions))
		lons := make([]float64, len(positions))
		for j, p := range positions {
			lats[j] = p.Lat
			lons[j] = p.Lon
		}
		out[i] = dayPosition{day: key, lat: medianFloat(lats), lon: medianFloat(lons)}
	}
	return out
}

type stableRun struct {
	length             int
	anchorLat, anchorLon float64
}

func longestStableRun(days []dayPosition) stableRun {
	var best stableRun
	anchorIdx := 0
	for i := 1; i <= len(days); i++ {
		withinRadius := i < len(days) &&
			geo.HaversineNM(days[anchorIdx].lat, days[anchorIdx].lon, days[i].lat, days[i].lon) <= laidUpRadiusNM
		if withinRadius {
			continue
		}
		runLen := i - anchorIdx
		if runLen > best.length {
			best = stableRun{length: runLen, anchorLat: days[anchorIdx].lat, anchorLon: days[anchorIdx].lon}
		}
		anchorIdx = i
	}
	return best
}
