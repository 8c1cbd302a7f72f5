package spoof

import (
	"context"
	"math"
	"strings"

	"github.com/radiancefleet/core/internal/geo"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

const (
	circleSpoofStdDegThreshold = 0.05
	circleSpoofMinMedianSOG    = 3.0
	anchorSpoofMinHours        = 72.0
	anchorSpoofMaxSOG          = 0.1
	navStatusAtAnchor          = 1
	navMismatchMinSOG          = 2.0
	navMismatchScore           = 15
	erraticWindowMinutes       = 60
	erraticMinTransitions      = 3
	impossibleJumpKn           = 30.0
	extremeJumpKn              = 100.0
	impossibleJumpScoreLow     = 40
	impossibleJumpScoreHigh    = 55
	staleMinConsecutive        = 10
	staleMinSpanHours          = 2.0
	staleMinMedianSOG          = 0.5
)

func detectCircleSpoof(ctx context.Context, _ *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position, _ Config) ([]models.SpoofingAnomaly, error) {
	if len(track) < 5 {
		return nil, nil
	}
	var out []models.SpoofingAnomaly

	const windowSize = 10
	for start := 0; start+windowSize <= len(track); start += windowSize {
		window := track[start : start+windowSize]
		meanLat, meanLon := meanLatLon(window)
		stdLat := stdDev(window, func(p models.Position) float64 { return p.Lat }, meanLat)
		cosLat := math.Cos(meanLat * math.Pi / 180)
		stdLonCorrected := stdDev(window, func(p models.Position) float64 { return p.Lon * cosLat }, meanLon*cosLat)
		medianSOG := medianOf(window, func(p models.Position) float64 { return p.SOGKnots })

		if stdLat < circleSpoofStdDegThreshold && stdLonCorrected < circleSpoofStdDegThreshold && medianSOG > circleSpoofMinMedianSOG {
			out = append(out, models.SpoofingAnomaly{
				VesselID: vesselID, Type: models.SpoofCircle,
				StartUTC: window[0].TimestampUTC, EndUTC: window[len(window)-1].TimestampUTC,
				Detail:    "position cluster with low dispersion and non-trivial speed",
				RiskScore: 20,
			})
		}
	}
	return out, nil
}

func detectAnchorSpoof(ctx context.Context, _ *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position, cfg Config) ([]models.SpoofingAnomaly, error) {
	var out []models.SpoofingAnomaly
	runStart := -1
	for i, p := range track {
		atAnchorLike := p.NavStatusCode == navStatusAtAnchor && p.SOGKnots < anchorSpoofMaxSOG
		if atAnchorLike {
			if runStart == -1 {
				runStart = i
			}
			continue
		}
		if runStart != -1 {
			out = appendAnchorRun(out, vesselID, track, runStart, i-1, cfg)
			runStart = -1
		}
	}
	if runStart != -1 {
		out = appendAnchorRun(out, vesselID, track, runStart, len(track)-1, cfg)
	}
	return out, nil
}

func appendAnchorRun(out []models.SpoofingAnomaly, vesselID int64, track []models.Position, from, to int, cfg Config) []models.SpoofingAnomaly {
	start, end := track[from], track[to]
	if end.TimestampUTC.Sub(start.TimestampUTC).Hours() < anchorSpoofMinHours {
		return out
	}
	for _, corridor := range cfg.AnchorageCorridors {
		if geo.Contains(corridor.BBox, start.Lat, start.Lon, 0) {
			return out
		}
	}
	return append(out, models.SpoofingAnomaly{
		VesselID: vesselID, Type: models.SpoofAnchor,
		StartUTC: start.TimestampUTC, EndUTC: end.TimestampUTC,
		Detail:    "extended anchor status outside an anchorage-holding corridor",
		RiskScore: 25,
	})
}

func detectNavStatusMismatch(ctx context.Context, _ *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position, _ Config) ([]models.SpoofingAnomaly, error) {
	var out []models.SpoofingAnomaly
	for _, p := range track {
		if p.NavStatusCode == navStatusAtAnchor && p.SOGKnots > navMismatchMinSOG {
			out = append(out, models.SpoofingAnomaly{
				VesselID: vesselID, Type: models.SpoofNavStatusMismatch,
				StartUTC: p.TimestampUTC, EndUTC: p.TimestampUTC,
				Detail:    "declared at-anchor while moving",
				RiskScore: navMismatchScore,
			})
		}
	}
	return out, nil
}

func detectErraticNavStatus(ctx context.Context, _ *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position, _ Config) ([]models.SpoofingAnomaly, error) {
	var out []models.SpoofingAnomaly
	i := 0
	for i < len(track) {
		windowEnd := i
		transitions := 0
		lastStatus := track[i].NavStatusCode
		for windowEnd+1 < len(track) &&
			track[windowEnd+1].TimestampUTC.Sub(track[i].TimestampUTC).Minutes() <= erraticWindowMinutes {
			windowEnd++
			if track[windowEnd].NavStatusCode != lastStatus {
				transitions++
				lastStatus = track[windowEnd].NavStatusCode
			}
		}
		if transitions >= erraticMinTransitions {
			// Extend greedily over consecutive matching windows so one
			// episode of flapping produces a single anomaly (§4.2.3).
			episodeEnd := windowEnd
			for episodeEnd+1 < len(track) {
				nextEnd := episodeEnd
				nextTransitions := 0
				nextLast := track[episodeEnd].NavStatusCode
				for nextEnd+1 < len(track) &&
					track[nextEnd+1].TimestampUTC.Sub(track[episodeEnd].TimestampUTC).Minutes() <= erraticWindowMinutes {
					nextEnd++
					if track[nextEnd].NavStatusCode != nextLast {
						nextTransitions++
						nextLast = track[nextEnd].NavStatusCode
					}
				}
				if nextTransitions < erraticMinTransitions {
					break
				}
				episodeEnd = nextEnd
			}
			out = append(out, models.SpoofingAnomaly{
				VesselID: vesselID, Type: models.SpoofErraticNavStatus,
				StartUTC: track[i].TimestampUTC, EndUTC: track[episodeEnd].TimestampUTC,
				Detail:    "repeated navigational-status transitions in a short window",
				RiskScore: 20,
			})
			i = episodeEnd + 1
			continue
		}
		i++
	}
	return out, nil
}

func detectMMSIReuse(ctx context.Context, _ *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position, _ Config) ([]models.SpoofingAnomaly, error) {
	var out []models.SpoofingAnomaly
	for i := 1; i < len(track); i++ {
		prev, cur := track[i-1], track[i]
		elapsed := cur.TimestampUTC.Sub(prev.TimestampUTC)
		distance := geo.HaversineNM(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
		speed := geo.ImpliedSpeedKn(distance, elapsed)
		if speed <= impossibleJumpKn {
			continue
		}
		// Anti-jitter guard folded in here (the "fake position" filter from
		// §4.2.3): a sub-36s gap or sub-1nm jump is a data race or GPS
		// jitter, not a genuine impossible transit.
		if elapsed.Seconds() < 36 || distance < 1.0 {
			continue
		}
		score := impossibleJumpScoreLow
		if speed > extremeJumpKn {
			score = impossibleJumpScoreHigh
		}
		out = append(out, models.SpoofingAnomaly{
			VesselID: vesselID, Type: models.SpoofMMSIReuse,
			StartUTC: prev.TimestampUTC, EndUTC: cur.TimestampUTC,
			Detail:    "implausible implied speed between consecutive reports",
			RiskScore: score,
		})
	}
	return out, nil
}

func detectStaleAISData(ctx context.Context, _ *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position, _ Config) ([]models.SpoofingAnomaly, error) {
	var out []models.SpoofingAnomaly
	runStart := 0
	for i := 1; i <= len(track); i++ {
		sameAsRunStart := i < len(track) && headingEqual(track[i].HeadingDegrees, track[runStart].HeadingDegrees) &&
			track[i].SOGKnots == track[runStart].SOGKnots && track[i].COGDegrees == track[runStart].COGDegrees
		if sameAsRunStart {
			continue
		}
		runLen := i - runStart
		if runLen >= staleMinConsecutive {
			span := track[i-1].TimestampUTC.Sub(track[runStart].TimestampUTC).Hours()
			medianSOG := medianOf(track[runStart:i], func(p models.Position) float64 { return p.SOGKnots })
			if span >= staleMinSpanHours && medianSOG >= staleMinMedianSOG {
				out = append(out, models.SpoofingAnomaly{
					VesselID: vesselID, Type: models.SpoofStaleAISData,
					StartUTC: track[runStart].TimestampUTC, EndUTC: track[i-1].TimestampUTC,
					Detail:    "heading/SOG/COG frozen across many consecutive reports while underway",
					RiskScore: 20,
				})
			}
		}
		runStart = i
	}
	return out, nil
}

var genericDestinations = map[string]bool{
	"TBA": true, "FOR ORDERS": true, "AT SEA": true, "N/A": true,
	"UNKNOWN": true, "": true, ".": true, "---": true,
}

const euPortSTSBearingToleranceDeg = 30.0

func detectDestinationDeviation(ctx context.Context, _ *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position, cfg Config) ([]models.SpoofingAnomaly, error) {
	var out []models.SpoofingAnomaly
	distinct := map[string]bool{}

	for i := range track {
		p := &track[i]
		dest := strings.ToUpper(strings.TrimSpace(p.Destination))
		if genericDestinations[dest] {
			out = append(out, models.SpoofingAnomaly{
				VesselID: vesselID, Type: models.SpoofDestinationDeviation,
				StartUTC: p.TimestampUTC, EndUTC: p.TimestampUTC,
				Detail:    "blank or generic declared destination",
				RiskScore: 10,
			})
		}
		if dest != "" {
			distinct[dest] = true
		}
		if cfg.EUPortNames[dest] && declaredEUPortButHeadingToSTSZone(*p, cfg.STSZones) {
			out = append(out, models.SpoofingAnomaly{
				VesselID: vesselID, Type: models.SpoofDestinationDeviation,
				StartUTC: p.TimestampUTC, EndUTC: p.TimestampUTC,
				Detail:    "declared EU port while heading toward a known STS zone",
				RiskScore: 20,
			})
		}
	}
	if len(distinct) > 3 {
		out = append(out, models.SpoofingAnomaly{
			VesselID: vesselID, Type: models.SpoofDestinationDeviation,
			StartUTC: track[0].TimestampUTC, EndUTC: track[len(track)-1].TimestampUTC,
			Detail:    "more than three distinct declared destinations in window",
			RiskScore: 15,
		})
	}
	return out, nil
}

// declaredEUPortButHeadingToSTSZone reports whether p's course is within
// euPortSTSBearingToleranceDeg of the great-circle bearing to the nearest
// STS zone's center, contradicting its declared EU-port destination.
func declaredEUPortButHeadingToSTSZone(p models.Position, stsZones []models.Corridor) bool {
	for _, zone := range stsZones {
		centerLat := (zone.BBox.MinLat + zone.BBox.MaxLat) / 2
		centerLon := (zone.BBox.MinLon + zone.BBox.MaxLon) / 2
		bearing := geo.BearingDegrees(p.Lat, p.Lon, centerLat, centerLon)
		if geo.BearingDelta(p.COGDegrees, bearing) <= euPortSTSBearingToleranceDeg {
			return true
		}
	}
	return false
}

func headingEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func meanLatLon(window []models.Position) (float64, float64) {
	var sumLat, sumLon float64
	for _, p := range window {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(window))
	return sumLat / n, sumLon / n
}

func stdDev(window []models.Position, field func(models.Position) float64, mean float64) float64 {
	var sumSq float64
	for _, p := range window {
		d := field(p) - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(window)))
}

func medianOf(window []models.Position, field func(models.Position) float64) float64 {
	vals := make([]float64, len(window))
	for i, p := range window {
		vals[i] = field(p)
	}
	sortFloats(vals)
	n := len(vals)
	if n == 0 {
		return math.NaN()
	}
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

func sortFloats(vals []float64) {
	for i := 1; i < len(vals); i++ {
		for j := i; j > 0 && vals[j-1] > vals[j]; j-- {
			vals[j-1], vals[j] = vals[j], vals[j-1]
		}
	}
}
