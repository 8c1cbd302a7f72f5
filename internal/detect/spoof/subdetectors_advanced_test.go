package spoof

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/radiancefleet/core/pkg/models"
)

func TestNamesSwapped_DetectsHandshake(t *testing.T) {
	a := []models.NameChange{{OldName: "ALPHA", NewName: "BETA"}}
	b := []models.NameChange{{OldName: "BETA", NewName: "ALPHA"}}
	assert.True(t, namesSwapped(a, b))
}

func TestNamesSwapped_NoMatchReturnsFalse(t *testing.T) {
	a := []models.NameChange{{OldName: "ALPHA", NewName: "GAMMA"}}
	b := []models.NameChange{{OldName: "BETA", NewName: "DELTA"}}
	assert.False(t, namesSwapped(a, b))
}

func TestMeanAbs(t *testing.T) {
	assert.Equal(t, 2.0, meanAbs([]float64{-2, 2}))
	assert.Zero(t, meanAbs(nil))
}

func TestStdDevSlice_ConstantValuesHaveZeroVariance(t *testing.T) {
	assert.Zero(t, stdDevSlice([]float64{5, 5, 5}))
}

func TestLag1Autocorrelation_ConstantSeriesIsZero(t *testing.T) {
	assert.Zero(t, lag1Autocorrelation([]float64{1, 1, 1, 1}))
}

func TestLag1Autocorrelation_LinearSeriesIsPositive(t *testing.T) {
	corr := lag1Autocorrelation([]float64{1, 2, 3, 4, 5})
	assert.InDelta(t, 0.4, corr, 0.01)
}

func TestKurtosis_TooFewPointsIsZero(t *testing.T) {
	assert.Zero(t, kurtosis([]float64{1}))
}

func TestPearsonCorrelation_IdenticalSeriesIsOne(t *testing.T) {
	a := [24]float64{}
	for i := range a {
		a[i] = float64(i)
	}
	assert.InDelta(t, 1.0, pearsonCorrelation(a, a), 1e-9)
}

func TestPearsonCorrelation_ZeroVarianceIsZero(t *testing.T) {
	var a, b [24]float64
	for i := range a {
		a[i] = 1
		b[i] = float64(i)
	}
	assert.Zero(t, pearsonCorrelation(a, b))
}

func TestLast48Hours_TrimsOlderPositions(t *testing.T) {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	track := []models.Position{
		{TimestampUTC: base.Add(-72 * time.Hour)},
		{TimestampUTC: base.Add(-10 * time.Hour)},
		{TimestampUTC: base},
	}
	window := last48Hours(track)
	assert.Len(t, window, 2)
}

func TestLast48Hours_EmptyTrackReturnsNil(t *testing.T) {
	assert.Nil(t, last48Hours(nil))
}
