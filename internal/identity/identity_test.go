package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiancefleet/core/pkg/models"
)

func TestScore_VesselTypeMismatchEliminates(t *testing.T) {
	in := CandidateInput{
		Dark: models.Vessel{VesselType: "tanker"},
		New:  models.Vessel{VesselType: "bulk_carrier"},
	}
	result := Score(in)
	assert.True(t, result.Eliminated)
	assert.Zero(t, result.Score)
}

func TestScore_DWTDeltaBeyond30PercentEliminates(t *testing.T) {
	in := CandidateInput{
		Dark: models.Vessel{DeadweightTonnes: 100000},
		New:  models.Vessel{DeadweightTonnes: 60000},
	}
	result := Score(in)
	assert.True(t, result.Eliminated)
}

func TestScore_IMOExactMatchDominatesBreakdown(t *testing.T) {
	in := CandidateInput{
		Dark: models.Vessel{IMO: "9123456", VesselType: "tanker", AISClass: models.AISClassA},
		New:  models.Vessel{IMO: "9123456", VesselType: "tanker", AISClass: models.AISClassA},
	}
	result := Score(in)
	require.False(t, result.Eliminated)
	assert.Equal(t, 50.0, result.Breakdown["imo_exact_match"])
	assert.GreaterOrEqual(t, result.Score, autoMergeThreshold)
}

func TestScore_NoSignalsYieldsZero(t *testing.T) {
	result := Score(CandidateInput{})
	assert.False(t, result.Eliminated)
	assert.Zero(t, result.Score)
}

func TestScore_FingerprintTiers(t *testing.T) {
	base := CandidateInput{HasFingerprints: true}

	close := base
	close.FingerprintPercentile = 0.1
	assert.Equal(t, 15.0, Score(close).Breakdown["fingerprint_similarity"])

	mid := base
	mid.FingerprintPercentile = 0.4
	assert.Equal(t, 10.0, Score(mid).Breakdown["fingerprint_similarity"])

	far := base
	far.FingerprintPercentile = 0.9
	assert.Equal(t, -5.0, Score(far).Breakdown["fingerprint_similarity"])

	middling := base
	middling.FingerprintPercentile = 0.6
	_, ok := Score(middling).Breakdown["fingerprint_similarity"]
	assert.False(t, ok, "between 0.5 and 0.75 should contribute no signal")
}

func TestScore_ProximityFullCreditWithin10NM(t *testing.T) {
	in := CandidateInput{
		HasPositions:     true,
		DarkLastPosition: models.Position{Lat: 1.0, Lon: 103.0},
		NewFirstPosition: models.Position{Lat: 1.01, Lon: 103.0},
	}
	result := Score(in)
	assert.Equal(t, 15.0, result.Breakdown["proximity"])
}

func TestScore_ProximityNoCreditBeyond100NM(t *testing.T) {
	in := CandidateInput{
		HasPositions:     true,
		DarkLastPosition: models.Position{Lat: 1.0, Lon: 103.0},
		NewFirstPosition: models.Position{Lat: 10.0, Lon: 103.0},
	}
	result := Score(in)
	assert.Zero(t, result.Breakdown["proximity"])
}

func TestEuclideanDistance_MismatchedLengthIsInfinite(t *testing.T) {
	d := EuclideanDistance([]float64{1, 2}, []float64{1, 2, 3})
	assert.True(t, d > 1e300)
}

func TestEuclideanDistance_Identical(t *testing.T) {
	d := EuclideanDistance([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.Zero(t, d)
}

func TestPercentile_RanksAgainstPopulation(t *testing.T) {
	population := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 0.2, Percentile(population, 1))
	assert.Equal(t, 1.0, Percentile(population, 5))
}

func TestPercentile_EmptyPopulationIsZero(t *testing.T) {
	assert.Zero(t, Percentile(nil, 5))
}

func TestDedupInts(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3}, dedupInts([]int64{1, 1, 2, 3, 2}))
}
