package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyBreakdown_IsAnIndependentCopy(t *testing.T) {
	original := map[string]int{"gap_duration_tier_2": 25}
	copied := copyBreakdown(original)
	copied["gap_duration_tier_2"] = 999
	assert.Equal(t, 25, original["gap_duration_tier_2"])
}

func TestCopyBreakdown_NilInputYieldsEmptyMap(t *testing.T) {
	copied := copyBreakdown(nil)
	assert.NotNil(t, copied)
	assert.Empty(t, copied)
}

func TestDisclaimer_IsNonEmptyAndStable(t *testing.T) {
	assert.Contains(t, Disclaimer, "not a legal determination")
}

func TestErrNotReviewed_HasStableMessage(t *testing.T) {
	assert.Contains(t, ErrNotReviewed.Error(), "not been analyst-reviewed")
}
