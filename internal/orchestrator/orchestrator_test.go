package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDriftDisabled_MatchesExactStepName(t *testing.T) {
	disabled := []string{StepBehaviorDetectors, StepIdentityResolution}
	assert.True(t, driftDisabled(disabled, StepBehaviorDetectors))
	assert.False(t, driftDisabled(disabled, StepScoring))
}

func TestDriftDisabled_EmptyListDisablesNothing(t *testing.T) {
	assert.False(t, driftDisabled(nil, StepGapDetection))
}

func TestOrderedSteps_HardStepsAreGapAndScoring(t *testing.T) {
	assert.True(t, hardSteps[StepGapDetection])
	assert.True(t, hardSteps[StepScoring])
	assert.False(t, hardSteps[StepBehaviorDetectors])
}

func TestOrderedSteps_ContainsEveryStepExactlyOnce(t *testing.T) {
	seen := map[string]int{}
	for _, s := range orderedSteps {
		seen[s]++
	}
	for step, count := range seen {
		assert.Equal(t, 1, count, "step %s should appear exactly once", step)
	}
	assert.Len(t, orderedSteps, 10)
}
