package spoof

import (
	"context"
	"math"
	"time"

	"github.com/radiancefleet/core/internal/geo"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

const crossReceiverToleranceSeconds = 600
const crossReceiverMinDistanceNM = 5.0
const identitySwapProximityNM = 1.0
const identitySwapWindow = time.Hour

// DetectIdentitySwap looks, at each of vesselID's positions, for a nearby
// vessel (per cfg.NearbyVesselIDs, which is expected to have already
// filtered by identitySwapProximityNM) whose name-change history swaps
// names with vesselID's own within identitySwapWindow of the meeting.
func DetectIdentitySwap(ctx context.Context, nameChanges *store.NameChangeRepo, anomalies *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position, cfg Config) (Stats, error) {
	stats := newStats()
	if cfg.NearbyVesselIDs == nil {
		return stats, nil
	}

	seen := map[[2]int64]bool{}
	for _, p := range track {
		mine, err := nameChanges.Around(ctx, vesselID, p.TimestampUTC, identitySwapWindow)
		if err != nil {
			return stats, err
		}
		if len(mine) == 0 {
			continue
		}

		nearby, err := cfg.NearbyVesselIDs(ctx, vesselID)
		if err != nil {
			return stats, err
		}
		for _, otherID := range nearby {
			if otherID == vesselID {
				continue
			}
			pairKey := [2]int64{vesselID, otherID}
			if pairKey[0] > pairKey[1] {
				pairKey[0], pairKey[1] = pairKey[1], pairKey[0]
			}
			if seen[pairKey] {
				continue
			}

			theirs, err := nameChanges.Around(ctx, otherID, p.TimestampUTC, identitySwapWindow)
			if err != nil {
				return stats, err
			}
			if !namesSwapped(mine, theirs) {
				continue
			}
			seen[pairKey] = true

			anomaly := models.SpoofingAnomaly{
				VesselID: vesselID, Type: models.SpoofIdentitySwap,
				StartUTC: p.TimestampUTC.Add(-identitySwapWindow), EndUTC: p.TimestampUTC.Add(identitySwapWindow),
				Detail:    "name-change history swaps names with a vessel met within 1nm",
				RiskScore: 35,
			}
			_, created, err := anomalies.Insert(ctx, anomaly)
			if err != nil {
				return stats, err
			}
			if created {
				stats.Created[anomaly.Type]++
			} else {
				stats.Skipped++
			}
		}
	}
	return stats, nil
}

// namesSwapped reports whether some change in a renamed to what some change
// in b had as its old name, and vice versa -- the handshake pattern.
func namesSwapped(a, b []models.NameChange) bool {
	for _, ca := range a {
		for _, cb := range b {
			if ca.NewName != "" && ca.NewName == cb.OldName && cb.NewName != "" && cb.NewName == ca.OldName {
				return true
			}
		}
	}
	return false
}

// DetectCrossReceiverDisagreement compares every pair of same-MMSI
// observations from different sources within the tolerance window,
// flagging disagreements beyond crossReceiverMinDistanceNM.
func DetectCrossReceiverDisagreement(ctx context.Context, observations *store.ObservationRepo, anomalies *store.SpoofingAnomalyRepo, vesselID int64, mmsi string, around time.Time) (Stats, error) {
	stats := newStats()
	echoes, err := observations.ForMMSIAt(ctx, mmsi, around, crossReceiverToleranceSeconds)
	if err != nil {
		return stats, err
	}

	for i := 0; i < len(echoes); i++ {
		for j := i + 1; j < len(echoes); j++ {
			a, b := echoes[i], echoes[j]
			if a.Source == b.Source {
				continue
			}
			if math.Abs(a.TimestampUTC.Sub(b.TimestampUTC).Seconds()) > crossReceiverToleranceSeconds {
				continue
			}
			distance := geo.HaversineNM(a.Lat, a.Lon, b.Lat, b.Lon)
			if distance <= crossReceiverMinDistanceNM {
				continue
			}
			anomaly := models.SpoofingAnomaly{
				VesselID: vesselID, Type: models.SpoofCrossReceiverDisagree,
				StartUTC: a.TimestampUTC, EndUTC: b.TimestampUTC,
				Detail:    "same MMSI reported at disagreeing positions by different sources",
				RiskScore: 25,
			}
			_, created, err := anomalies.Insert(ctx, anomaly)
			if err != nil {
				return stats, err
			}
			if created {
				stats.Created[anomaly.Type]++
			} else {
				stats.Skipped++
			}
		}
	}
	return stats, nil
}

// DetectScrappedIMOReuse flags a vessel broadcasting an IMO present in the
// scrapped-vessels registry.
func DetectScrappedIMOReuse(ctx context.Context, anomalies *store.SpoofingAnomalyRepo, vesselID int64, imo string, asOf time.Time, isScrapped func(string) bool) (Stats, error) {
	stats := newStats()
	if imo == "" || !isScrapped(imo) {
		return stats, nil
	}
	anomaly := models.SpoofingAnomaly{
		VesselID: vesselID, Type: models.SpoofIMOFraud,
		StartUTC: asOf, EndUTC: asOf,
		Detail:    "broadcasting an IMO number belonging to a scrapped vessel",
		RiskScore: 45,
	}
	_, created, err := anomalies.Insert(ctx, anomaly)
	if err != nil {
		return stats, err
	}
	if created {
		stats.Created[anomaly.Type]++
	}
	return stats, nil
}

const trackReplayMinPositions = 200
const trackReplayWindowDays = 7
const trackReplayLagMinDays = 30
const trackReplayLagMaxDays = 90
const trackReplayCorrelationThreshold = 0.9

// DetectTrackReplay correlates an hour-of-day-binned track against the
// same vessel's track 30-90 days prior, flagging near-identical repeats.
// Anchored vessels (median SOG below the loitering threshold) are skipped
// since a stationary vessel trivially "replays" its own position.
func DetectTrackReplay(ctx context.Context, anomalies *store.SpoofingAnomalyRepo, vesselID int64, recent, prior []models.Position) (Stats, error) {
	stats := newStats()
	if len(recent) < trackReplayMinPositions || len(prior) < trackReplayMinPositions {
		return stats, nil
	}
	recentMedianSOG := medianOf(recent, func(p models.Position) float64 { return p.SOGKnots })
	if recentMedianSOG < 0.5 {
		return stats, nil
	}

	recentBins := hourOfDayBins(recent)
	priorBins := hourOfDayBins(prior)
	correlation := pearsonCorrelation(recentBins, priorBins)
	if correlation < trackReplayCorrelationThreshold {
		return stats, nil
	}

	anomaly := models.SpoofingAnomaly{
		VesselID: vesselID, Type: models.SpoofTrackReplay,
		StartUTC: recent[0].TimestampUTC, EndUTC: recent[len(recent)-1].TimestampUTC,
		Detail:    "hour-of-day track strongly correlated with track 30-90 days prior",
		RiskScore: 30,
	}
	_, created, err := anomalies.Insert(ctx, anomaly)
	if err != nil {
		return stats, err
	}
	if created {
		stats.Created[anomaly.Type]++
	}
	return stats, nil
}

func hourOfDayBins(track []models.Position) [24]float64 {
	var sums [24]float64
	var counts [24]int
	for _, p := range track {
		h := p.TimestampUTC.UTC().Hour()
		sums[h] += p.Lat + p.Lon
		counts[h]++
	}
	var bins [24]float64
	for i := 0; i < 24; i++ {
		if counts[i] > 0 {
			bins[i] = sums[i] / float64(counts[i])
		}
	}
	return bins
}

func pearsonCorrelation(a, b [24]float64) float64 {
	var meanA, meanB float64
	for i := 0; i < 24; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= 24
	meanB /= 24

	var num, denomA, denomB float64
	for i := 0; i < 24; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		num += da * db
		denomA += da * da
		denomB += db * db
	}
	if denomA == 0 || denomB == 0 {
		return 0
	}
	return num / math.Sqrt(denomA*denomB)
}

// SyntheticTrackResult carries the five statistical features evaluated
// against a lightweight constant-velocity Kalman filter's innovation
// residuals (§4.2.3 "synthetic track (track-naturalness)").
type SyntheticTrackResult struct {
	MeanAbsResidual       float64
	ResidualStdDev        float64
	SpeedChangeAutocorr   float64
	HeadingChangeEntropy  float64
	CourseChangeKurtosis  float64
	OutOfBoundsCount      int
}

// naturalBounds are the plausible ranges for each feature observed over
// genuine AIS tracks; values outside these bounds are treated as evidence
// of synthetic generation.
var naturalBounds = struct {
	maxMeanAbsResidual     float64
	maxResidualStdDev      float64
	maxSpeedChangeAutocorr float64
	minHeadingEntropy      float64
	maxCourseKurtosis      float64
}{
	maxMeanAbsResidual:     2.5,
	maxResidualStdDev:      3.0,
	maxSpeedChangeAutocorr: 0.95,
	minHeadingEntropy:      0.5,
	maxCourseKurtosis:      8.0,
}

// DetectSyntheticTrack runs a constant-velocity Kalman filter over a 48h
// window of track and flags SYNTHETIC_TRACK when 3+ of 5 features fall
// outside natural bounds.
func DetectSyntheticTrack(ctx context.Context, anomalies *store.SpoofingAnomalyRepo, vesselID int64, track []models.Position) (Stats, error) {
	stats := newStats()
	window := last48Hours(track)
	if len(window) < 10 {
		return stats, nil
	}

	residuals := kalmanInnovationResiduals(window)
	result := SyntheticTrackResult{
		MeanAbsResidual:      meanAbs(residuals),
		ResidualStdDev:       stdDevSlice(residuals),
		SpeedChangeAutocorr:  lag1Autocorrelation(speedChanges(window)),
		HeadingChangeEntropy: headingChangeEntropy(window),
		CourseChangeKurtosis: kurtosis(courseChanges(window)),
	}

	outOfBounds := 0
	if result.MeanAbsResidual > naturalBounds.maxMeanAbsResidual {
		outOfBounds++
	}
	if result.ResidualStdDev > naturalBounds.maxResidualStdDev {
		outOfBounds++
	}
	if math.Abs(result.SpeedChangeAutocorr) > naturalBounds.maxSpeedChangeAutocorr {
		outOfBounds++
	}
	if result.HeadingChangeEntropy < naturalBounds.minHeadingEntropy {
		outOfBounds++
	}
	if result.CourseChangeKurtosis > naturalBounds.maxCourseKurtosis {
		outOfBounds++
	}
	result.OutOfBoundsCount = outOfBounds

	if outOfBounds < 3 {
		return stats, nil
	}

	tier, score := "LOW", 25
	switch outOfBounds {
	case 5:
		tier, score = "HIGH", 45
	case 4:
		tier, score = "MEDIUM", 35
	}

	anomaly := models.SpoofingAnomaly{
		VesselID: vesselID, Type: models.SpoofSyntheticTrack,
		StartUTC: window[0].TimestampUTC, EndUTC: window[len(window)-1].TimestampUTC,
		Tier:      tier,
		Detail:    "track statistics inconsistent with natural vessel motion",
		RiskScore: score,
	}
	_, created, err := anomalies.Insert(ctx, anomaly)
	if err != nil {
		return stats, err
	}
	if created {
		stats.Created[anomaly.Type]++
	}
	return stats, nil
}

func last48Hours(track []models.Position) []models.Position {
	if len(track) == 0 {
		return nil
	}
	cutoff := track[len(track)-1].TimestampUTC.Add(-48 * time.Hour)
	for i, p := range track {
		if !p.TimestampUTC.Before(cutoff) {
			return track[i:]
		}
	}
	return track
}

// kalmanInnovationResiduals runs a minimal constant-velocity filter and
// returns the per-step position innovation (distance between predicted
// and observed position, in NM).
func kalmanInnovationResiduals(track []models.Position) []float64 {
	if len(track) < 3 {
		return nil
	}
	residuals := make([]float64, 0, len(track)-2)
	for i := 2; i < len(track); i++ {
		prev, cur, next := track[i-2], track[i-1], track[i]
		dt1 := cur.TimestampUTC.Sub(prev.TimestampUTC).Hours()
		dt2 := next.TimestampUTC.Sub(cur.TimestampUTC).Hours()
		if dt1 <= 0 || dt2 <= 0 {
			continue
		}
		bearing := geo.BearingDegrees(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
		predictedDistance := cur.SOGKnots * dt2
		predictedLat := cur.Lat + (predictedDistance/60.0)*math.Cos(bearing*math.Pi/180)
		predictedLon := cur.Lon + (predictedDistance/60.0)*math.Sin(bearing*math.Pi/180)
		residual := geo.HaversineNM(predictedLat, predictedLon, next.Lat, next.Lon)
		residuals = append(residuals, residual)
	}
	return residuals
}

func speedChanges(track []models.Position) []float64 {
	out := make([]float64, 0, len(track)-1)
	for i := 1; i < len(track); i++ {
		out = append(out, track[i].SOGKnots-track[i-1].SOGKnots)
	}
	return out
}

func courseChanges(track []models.Position) []float64 {
	out := make([]float64, 0, len(track)-1)
	for i := 1; i < len(track); i++ {
		out = append(out, geo.BearingDelta(track[i].COGDegrees, track[i-1].COGDegrees))
	}
	return out
}

func headingChangeEntropy(track []models.Position) float64 {
	const bins = 36
	var counts [bins]int
	total := 0
	for i := 1; i < len(track); i++ {
		a, b := track[i].HeadingDegrees, track[i-1].HeadingDegrees
		if a == nil || b == nil {
			continue
		}
		delta := geo.BearingDelta(*a, *b)
		bin := int(delta / 10)
		if bin >= bins {
			bin = bins - 1
		}
		counts[bin]++
		total++
	}
	if total == 0 {
		return 0
	}
	var entropy float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func meanAbs(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += math.Abs(v)
	}
	return sum / float64(len(vals))
}

func stdDevSlice(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	var sumSq float64
	for _, v := range vals {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(vals)))
}

func lag1Autocorrelation(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var num, denom float64
	for i := 0; i < len(vals); i++ {
		d := vals[i] - mean
		denom += d * d
	}
	for i := 1; i < len(vals); i++ {
		num += (vals[i] - mean) * (vals[i-1] - mean)
	}
	if denom == 0 {
		return 0
	}
	return num / denom
}

func kurtosis(vals []float64) float64 {
	n := float64(len(vals))
	if n < 2 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= n

	var m2, m4 float64
	for _, v := range vals {
		d := v - mean
		m2 += d * d
		m4 += d * d * d * d
	}
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 0
	}
	return m4 / (m2 * m2)
}
