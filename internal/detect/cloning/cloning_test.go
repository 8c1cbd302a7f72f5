package cloning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloningScore_AtOrBelowThresholdIsBaseline(t *testing.T) {
	assert.Equal(t, 25, cloningScore(10))
}

func TestCloningScore_AboveThresholdBelowExtreme(t *testing.T) {
	assert.Equal(t, 40, cloningScore(60))
}

func TestCloningScore_AboveExtremeThreshold(t *testing.T) {
	assert.Equal(t, 55, cloningScore(150))
}

func TestCloningScore_BoundaryAtExtremeThresholdIsNotExtreme(t *testing.T) {
	assert.Equal(t, 40, cloningScore(cloningExtremeSpeedKn))
}

func TestCloningScore_BoundaryAtStandardThresholdIsBaseline(t *testing.T) {
	assert.Equal(t, 25, cloningScore(cloningSpeedThresholdKn))
}
