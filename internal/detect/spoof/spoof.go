// Package spoof implements the unified spoofing sub-detector module
// (§4.2.3): twelve independent signal extractors sharing one anomaly
// table. Grounded on the teacher's internal/heuristics package layout,
// where many independent small heuristics (entropy_analysis.go,
// dust_analysis.go, timing_analysis.go, ...) each scan the same
// transaction stream and emit typed findings into one flag bitmask; here
// each sub-detector emits typed SpoofingAnomaly rows into one table
// instead of OR-ing bit flags, since each anomaly carries distinct detail.
package spoof

import (
	"context"
	"fmt"

	"github.com/radiancefleet/core/internal/config"
	"github.com/radiancefleet/core/internal/obs/metrics"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

// Stats summarizes one Detect call across all sub-detectors.
type Stats struct {
	Created map[models.SpoofingType]int
	Skipped int
}

func newStats() Stats { return Stats{Created: map[models.SpoofingType]int{}} }

// Config carries the reference data sub-detectors need beyond raw
// positions: anchorage corridors, scrapped-IMO registry, known STS zones.
type Config struct {
	AnchorageCorridors []models.Corridor
	STSZones           []models.Corridor
	// EUPortNames holds the uppercased names of EU ports recognized in the
	// declared-destination field, for the destination-deviation
	// EU-port/STS-bearing clause (§4.2.3).
	EUPortNames     map[string]bool
	IsScrappedIMO   func(imo string) bool
	NearbyVesselIDs func(ctx context.Context, vesselID int64) ([]int64, error)
}

// PositionalContext carries the cross-vessel and historical data the
// position-only sub-detectors above cannot see on their own: this
// vessel's MMSI and IMO (for cross-receiver and scrapped-IMO checks), and
// its track from 30-90 days prior (for track-replay correlation).
type PositionalContext struct {
	MMSI      string
	IMO       string
	PriorTrack []models.Position
}

// Detect runs every enabled sub-detector over vesselID's track and
// persists findings. The stale-AIS, destination-deviation, scrapped-IMO and
// synthetic-track sub-detectors are gated by flags' detection switches; the
// others always run. Sub-detectors run in sequence, and the first error
// (from a sub-detector or from persisting its findings) ends the call and
// is returned with the stats gathered so far.
func Detect(ctx context.Context, positions *store.PositionRepo, observations *store.ObservationRepo, nameChanges *store.NameChangeRepo, anomalies *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position, pctx PositionalContext, cfg Config, flags *config.ScoringConfig) (Stats, error) {
	stats := newStats()

	detectors := []func(context.Context, *store.SpoofingAnomalyRepo, int64, []models.Position, Config) ([]models.SpoofingAnomaly, error){
		detectCircleSpoof,
		detectAnchorSpoof,
		detectNavStatusMismatch,
		detectErraticNavStatus,
		detectMMSIReuse,
	}
	if flags.DetectionIsEnabled(config.DetectorStaleAIS) {
		detectors = append(detectors, detectStaleAISData)
	}
	if flags.DetectionIsEnabled(config.DetectorDestination) {
		detectors = append(detectors, detectDestinationDeviation)
	}

	for _, detector := range detectors {
		found, err := detector(ctx, anomalies, vesselID, track, cfg)
		if err != nil {
			return stats, fmt.Errorf("spoof: sub-detector failed for vessel %d: %w", vesselID, err)
		}
		for _, a := range found {
			_, created, err := anomalies.Insert(ctx, a)
			if err != nil {
				return stats, fmt.Errorf("spoof: persisting %s for vessel %d: %w", a.Type, vesselID, err)
			}
			if created {
				stats.Created[a.Type]++
				metrics.DetectorEventsTotal.WithLabelValues(string(a.Type)).Inc()
			} else {
				stats.Skipped++
			}
		}
	}

	mergeStats := func(s Stats) {
		for t, n := range s.Created {
			stats.Created[t] += n
			metrics.DetectorEventsTotal.WithLabelValues(string(t)).Add(float64(n))
		}
		stats.Skipped += s.Skipped
	}

	if observations != nil && pctx.MMSI != "" && len(track) > 0 {
		crossStats, err := DetectCrossReceiverDisagreement(ctx, observations, anomalies, vesselID, pctx.MMSI, track[len(track)-1].TimestampUTC)
		if err != nil {
			return stats, fmt.Errorf("spoof: cross-receiver check failed for vessel %d: %w", vesselID, err)
		}
		mergeStats(crossStats)
	}

	if cfg.IsScrappedIMO != nil && pctx.IMO != "" && len(track) > 0 && flags.DetectionIsEnabled(config.DetectorIMOFraud) {
		imoStats, err := DetectScrappedIMOReuse(ctx, anomalies, vesselID, pctx.IMO, track[len(track)-1].TimestampUTC, cfg.IsScrappedIMO)
		if err != nil {
			return stats, fmt.Errorf("spoof: scrapped-IMO check failed for vessel %d: %w", vesselID, err)
		}
		mergeStats(imoStats)
	}

	if len(pctx.PriorTrack) > 0 {
		replayStats, err := DetectTrackReplay(ctx, anomalies, vesselID, track, pctx.PriorTrack)
		if err != nil {
			return stats, fmt.Errorf("spoof: track-replay check failed for vessel %d: %w", vesselID, err)
		}
		mergeStats(replayStats)
	}

	if flags.DetectionIsEnabled(config.DetectorTrackNaturalness) {
		syntheticStats, err := DetectSyntheticTrack(ctx, anomalies, vesselID, track)
		if err != nil {
			return stats, fmt.Errorf("spoof: synthetic-track check failed for vessel %d: %w", vesselID, err)
		}
		mergeStats(syntheticStats)
	}

	if nameChanges != nil && cfg.NearbyVesselIDs != nil {
		swapStats, err := DetectIdentitySwap(ctx, nameChanges, anomalies, vesselID, track, cfg)
		if err != nil {
			return stats, fmt.Errorf("spoof: identity-swap check failed for vessel %d: %w", vesselID, err)
		}
		mergeStats(swapStats)
	}

	return stats, nil
}
