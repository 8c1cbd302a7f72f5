// Package draught implements the loaded/ballast transition detector
// (§4.2.7). Grounded on the teacher's internal/heuristics/timing_analysis.go
// sliding-window scan, here over draught readings instead of timestamps.
package draught

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

const slidingWindow = 24 * time.Hour

const portSuppressionNM = 10.0
const offshoreTerminalSuppressionNM = 25.0
const stsProximityWindow = 12 * time.Hour

var classThresholds = map[string]float64{
	"VLCC":    3.0,
	"Suezmax": 2.0,
	"Aframax": 1.5,
	"Panamax": 1.0,
}

const defaultThreshold = 1.0

// STSWindowChecker reports whether vesselID has an STS event within window
// of t.
type STSWindowChecker func(ctx context.Context, vesselID int64, t time.Time, window time.Duration) (bool, error)

// GapStraddleChecker reports whether t falls inside an open gap window for
// vesselID.
type GapStraddleChecker func(ctx context.Context, vesselID int64, t time.Time) (bool, error)

// Stats summarizes one Detect call.
type Stats struct {
	ReadingsScanned int
	EventsCreated   int
	EventsSkipped   int
}

// Detect scans vesselID's draught-populated positions within a 24h sliding
// window, confirming a change of at least the vessel's class threshold if a
// subsequent reading stays within threshold/2 of the new value.
func Detect(ctx context.Context, draughts *store.DraughtChangeRepo, vesselID int64, vesselClass string, track []models.Position, ports []models.Port, stsCheck STSWindowChecker, gapCheck GapStraddleChecker) (Stats, error) {
	var stats Stats
	threshold := classThresholds[vesselClass]
	if threshold == 0 {
		threshold = defaultThreshold
	}

	readings := filterDraughtReadings(track)
	stats.ReadingsScanned = len(readings)

	for i := 0; i < len(readings); i++ {
		for j := i + 1; j < len(readings); j++ {
			if readings[j].TimestampUTC.Sub(readings[i].TimestampUTC) > slidingWindow {
				break
			}
			before, after := *readings[i].DraughtMeters, *readings[j].DraughtMeters
			delta := after - before
			if abs(delta) < threshold {
				continue
			}
			if !confirmedBySubsequent(readings, j, after, threshold) {
				continue
			}

			nearPort := portProximity(readings[j], ports)

			event := models.DraughtChangeEvent{
				VesselID: vesselID, TimestampUTC: readings[j].TimestampUTC,
				BeforeMeters: before, AfterMeters: after, DeltaMeters: delta,
				NearPort: nearPort, IsOffshore: !nearPort,
				AnalystStatus: models.StatusNew,
			}

			if nearPort {
				stats.EventsSkipped++
				continue
			}

			if stsCheck != nil {
				nearSTS, err := stsCheck(ctx, vesselID, readings[j].TimestampUTC, stsProximityWindow)
				if err != nil {
					return stats, fmt.Errorf("draught: checking sts proximity: %w", err)
				}
				event.NearSTSEvent = nearSTS
			}
			if gapCheck != nil {
				straddles, err := gapCheck(ctx, vesselID, readings[j].TimestampUTC)
				if err != nil {
					return stats, fmt.Errorf("draught: checking gap straddle: %w", err)
				}
				event.StraddlesGap = straddles
			}
			event.RiskScore = scoreDraughtChange(delta, threshold, event.IsOffshore, event.NearSTSEvent, event.StraddlesGap)

			_, created, err := draughts.Insert(ctx, event)
			if err != nil {
				return stats, fmt.Errorf("draught: inserting event for vessel %d: %w", vesselID, err)
			}
			if created {
				stats.EventsCreated++
				metrics.DetectorEventsTotal.WithLabelValues("draught").Inc()
			} else {
				stats.EventsSkipped++
			}
			break
		}
	}
	return stats, nil
}

func filterDraughtReadings(track []models.Position) []models.Position {
	var out []models.Position
	for _, p := range track {
		if p.DraughtMeters != nil {
			out = append(out, p)
		}
	}
	return out
}

func confirmedBySubsequent(readings []models.Position, fromIdx int, newValue, threshold float64) bool {
	for k := fromIdx + 1; k < len(readings); k++ {
		if abs(*readings[k].DraughtMeters-newValue) <= threshold/2 {
			return true
		}
	}
	return fromIdx == len(readings)-1
}

// portProximity reports whether p falls within the port-suppression radius
// of any port: 10nm of an ordinary port, or 25nm of one flagged an
// offshore terminal. A change inside that radius is treated as a normal
// loading/discharge operation and suppressed rather than scored.
func portProximity(p models.Position, ports []models.Port) bool {
	for _, port := range ports {
		distance := geo.HaversineNM(p.Lat, p.Lon, port.Lat, port.Lon)
		if port.IsOffshoreTerminal && distance <= offshoreTerminalSuppressionNM {
			return true
		}
		if distance <= portSuppressionNM {
			return true
		}
	}
	return false
}

func scoreDraughtChange(delta, threshold float64, isOffshore, nearSTS, straddlesGap bool) int {
	score := 0
	if abs(delta) >= 2*threshold {
		score += 25
	}
	if isOffshore {
		score += 20
	}
	if nearSTS {
		score += 15
	}
	if straddlesGap {
		score += 20
	}
	return score
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// NormalizeClass maps a free-text vessel-type/class string onto one of the
// four named threshold classes, defaulting to "unknown" (1.0m threshold).
func NormalizeClass(vesselType string) string {
	upper := strings.ToUpper(vesselType)
	for class := range classThresholds {
		if strings.Contains(upper, strings.ToUpper(class)) {
			return class
		}
	}
	return "unknown"
}
