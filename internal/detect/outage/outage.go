// Package outage implements the feed-outage detector (§4.2.2), which runs
// after gap detection and before scoring to separate receiver dropouts
// from genuine vessel dark activity. Grounded on the teacher's
// internal/heuristics/cluster_engine.go approach of bucketing events by a
// coarse key before a threshold test, generalized from address clusters to
// (corridor, time-window) clusters.
package outage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radiancefleet/core/internal/obs"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

const clusterWindow = 2 * time.Hour
const defaultThreshold = 5
const minThreshold = 3
const maxOutageRatio = 0.3
const evasionExclusionWindow = 6 * time.Hour

// Stats summarizes one Detect call.
type Stats struct {
	ClustersEvaluated int
	ClustersRejected  int
	GapsMarked        int
}

// HighRiskChecker reports whether a vessel is already known high-risk,
// used by the anti-decoy guard.
type HighRiskChecker func(ctx context.Context, vesselID int64) (bool, error)

// CorroborationChecker reports whether vesselID has a SpoofingAnomaly or
// STS event within the evasion-exclusion window of t, used to exempt
// individual gaps from an otherwise-valid outage cluster.
type CorroborationChecker func(ctx context.Context, vesselID int64, t time.Time, window time.Duration) (bool, error)

// HistoricalBaseline supplies the P95 historical per-corridor-per-2h
// vessel count used to compute the adaptive threshold. The window and
// source of this baseline are an implementation choice (spec.md §9 open
// question). Detect calls it once per cluster and falls back to its static
// default threshold when it reports no baseline; the baseline that
// cmd/radiancefleet wires in reports no baseline on every call.
type HistoricalBaseline func(ctx context.Context, corridorID *int64) (p95 float64, hasBaseline bool, err error)

// Detect clusters gap events by (corridor, 2h window) and marks clusters
// meeting the adaptive vessel-count threshold as feed outages, subject to
// the anti-decoy guard and the per-gap evasion exclusion.
func Detect(ctx context.Context, gapRepo *store.GapEventRepo, events []models.GapEvent, highRisk HighRiskChecker, corroborated CorroborationChecker, baseline HistoricalBaseline) (Stats, error) {
	log := obs.From(ctx)
	var stats Stats

	clusters := map[clusterAddr][]models.GapEvent{}
	for _, e := range events {
		bucketStart := e.StartUTC.Truncate(clusterWindow)
		key := clusterAddr{corridor: corridorKey(e.CorridorID), window: bucketStart}
		clusters[key] = append(clusters[key], e)
	}

	for key, clusterEvents := range clusters {
		stats.ClustersEvaluated++

		distinctVessels := map[int64]bool{}
		for _, e := range clusterEvents {
			distinctVessels[e.VesselID] = true
		}

		threshold := defaultThreshold
		if p95, ok, err := baseline(ctx, clusterEvents[0].CorridorID); err == nil && ok {
			adaptive := int(3 * p95)
			if adaptive > minThreshold {
				threshold = adaptive
			} else {
				threshold = minThreshold
			}
		}
		if len(distinctVessels) < threshold {
			continue
		}

		highRiskCount := 0
		for vesselID := range distinctVessels {
			isHighRisk, err := highRisk(ctx, vesselID)
			if err != nil {
				return stats, fmt.Errorf("outage: checking high-risk status: %w", err)
			}
			if isHighRisk {
				highRiskCount++
			}
		}
		if float64(highRiskCount)/float64(len(distinctVessels)) > maxOutageRatio {
			stats.ClustersRejected++
			log.Debug("outage: rejecting cluster, too many already-high-risk vessels", zap.Time("window", key.window))
			continue
		}

		var toMark []int64
		for _, e := range clusterEvents {
			isCorroborated, err := corroborated(ctx, e.VesselID, e.StartUTC, evasionExclusionWindow)
			if err != nil {
				return stats, fmt.Errorf("outage: checking corroboration: %w", err)
			}
			if isCorroborated {
				continue
			}
			toMark = append(toMark, e.ID)
		}

		if err := gapRepo.MarkFeedOutage(ctx, toMark); err != nil {
			return stats, fmt.Errorf("outage: marking cluster: %w", err)
		}
		stats.GapsMarked += len(toMark)
	}

	return stats, nil
}

type clusterAddr struct {
	corridor string
	window   time.Time
}

func corridorKey(id *int64) string {
	if id == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *id)
}
