// Package gap implements the AIS-silence detector (§4.2.1). Grounded on
// the teacher's internal/heuristics/timing_analysis.go sweep-over-sorted-
// events style: a single linear pass over a vessel's positions in time
// order, no lookback beyond the immediately preceding point.
package gap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radiancefleet/core/internal/geo"
	"github.com/radiancefleet/core/internal/obs"
	"github.com/radiancefleet/core/internal/obs/metrics"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

// DateRange bounds a detection pass.
type DateRange struct {
	From, To time.Time
}

// Stats summarizes one Detect call, the common detector return shape
// named in §4.2.
type Stats struct {
	Scanned int
	Created int
	Skipped int
}

const impossibleSpeedKn = 30.0
const plausibilityMargin = 1.25
const boundaryToleranceDeg = 0.1

// Detect scans vesselIDs' positions for silences exceeding minGapHours
// (default 2h) and persists GapEvent rows.
func Detect(ctx context.Context, positions *store.PositionRepo, gapRepo *store.GapEventRepo, vesselIDs []int64, window DateRange, corridors []models.Corridor, darkZones []models.DarkZone, minGapHours float64) (Stats, error) {
	if minGapHours <= 0 {
		minGapHours = 2
	}
	log := obs.From(ctx)
	var stats Stats

	for _, vesselID := range vesselIDs {
		track, err := positions.Track(ctx, vesselID, window.From, window.To)
		if err != nil {
			return stats, fmt.Errorf("gap: fetching track for vessel %d: %w", vesselID, err)
		}
		stats.Scanned += len(track)

		for i := 1; i < len(track); i++ {
			prev, cur := track[i-1], track[i]
			duration := cur.TimestampUTC.Sub(prev.TimestampUTC)
			if duration.Hours() <= minGapHours {
				continue
			}

			event := buildEvent(vesselID, prev, cur, duration, corridors, darkZones)
			id, created, err := gapRepo.Insert(ctx, event)
			if err != nil {
				return stats, fmt.Errorf("gap: inserting event for vessel %d: %w", vesselID, err)
			}
			if created {
				stats.Created++
				metrics.DetectorEventsTotal.WithLabelValues("gap").Inc()
				log.Debug("gap detected", zap.Int64("vessel_id", vesselID), zap.Int64("gap_event_id", id),
					zap.Float64("duration_hours", event.DurationHours))
			} else {
				stats.Skipped++
			}
		}
	}
	return stats, nil
}

func buildEvent(vesselID int64, prev, cur models.Position, duration time.Duration, corridors []models.Corridor, darkZones []models.DarkZone) models.GapEvent {
	actualDistance := geo.HaversineNM(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
	maxPlausible := prev.SOGKnots * duration.Hours() * plausibilityMargin
	impliedSpeed := geo.ImpliedSpeedKn(actualDistance, duration)

	var ratio float64
	if maxPlausible > 0 {
		ratio = actualDistance / maxPlausible
	}

	event := models.GapEvent{
		VesselID:                  vesselID,
		StartUTC:                  prev.TimestampUTC,
		EndUTC:                    cur.TimestampUTC,
		DurationHours:             duration.Hours(),
		StartPointID:              prev.ID,
		EndPointID:                cur.ID,
		PreGapSOGKnots:            prev.SOGKnots,
		ActualGapDistanceNM:       actualDistance,
		MaxPlausibleDistanceNM:    maxPlausible,
		VelocityPlausibilityRatio: ratio,
		ImpossibleSpeedFlag:       impliedSpeed > impossibleSpeedKn,
		CoverageQuality:           models.CoverageUnknown,
		AnalystStatus:             models.StatusNew,
	}

	for _, c := range corridors {
		if geo.SegmentIntersectsBBox(prev.Lat, prev.Lon, cur.Lat, cur.Lon, c.BBox, boundaryToleranceDeg) {
			id := c.ID
			event.CorridorID = &id
			break
		}
	}
	for _, dz := range darkZones {
		if geo.SegmentIntersectsBBox(prev.Lat, prev.Lon, cur.Lat, cur.Lon, dz.BBox, boundaryToleranceDeg) {
			event.InDarkZone = true
			break
		}
	}
	return event
}
