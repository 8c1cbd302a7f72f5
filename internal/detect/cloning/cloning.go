// Package cloning implements the MMSI-cloning detector (§4.2.8): two
// distinct physical hulls sharing one broadcast MMSI produce consecutive
// position pairs with an implausible implied speed. Grounded on the same
// linear-sweep style as internal/detect/gap.
package cloning

import (
	"context"
	"fmt"

	"github.com/radiancefleet/core/internal/geo"
	"github.com/radiancefleet/core/internal/obs/metrics"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

const cloningSpeedThresholdKn = 50.0
const cloningExtremeSpeedKn = 100.0

// Stats summarizes one Detect call.
type Stats struct {
	Scanned int
	Created int
	Skipped int
}

// Detect walks vesselID's positions and flags consecutive pairs implying
// > 50kn transit as MMSI-cloning candidates.
func Detect(ctx context.Context, cloning *store.MMSICloningRepo, vesselID int64, track []models.Position) (Stats, error) {
	var stats Stats
	stats.Scanned = len(track)

	for i := 1; i < len(track); i++ {
		prev, cur := track[i-1], track[i]
		distance := geo.HaversineNM(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
		speed := geo.ImpliedSpeedKn(distance, cur.TimestampUTC.Sub(prev.TimestampUTC))
		if speed <= cloningSpeedThresholdKn {
			continue
		}

		event := models.MMSICloningEvent{
			VesselID: vesselID, StartPositionID: prev.ID, EndPositionID: cur.ID,
			DistanceNM: distance, ImpliedSpeedKn: speed,
			RiskScore:     cloningScore(speed),
			AnalystStatus: models.StatusNew,
		}
		id, created, err := cloning.Insert(ctx, event)
		if err != nil {
			return stats, fmt.Errorf("cloning: inserting event for vessel %d: %w", vesselID, err)
		}
		if created {
			stats.Created++
			metrics.DetectorEventsTotal.WithLabelValues("mmsi_cloning").Inc()
			_ = id
		} else {
			stats.Skipped++
		}
	}
	return stats, nil
}

func cloningScore(speed float64) int {
	switch {
	case speed > cloningExtremeSpeedKn:
		return 55
	case speed > cloningSpeedThresholdKn:
		return 40
	default:
		return 25
	}
}
