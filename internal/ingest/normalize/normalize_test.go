package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/radiancefleet/core/pkg/models"
)

func TestMMSI_PadsShortNumericInput(t *testing.T) {
	got, err := MMSI("21100000")
	require.NoError(t, err)
	assert.Equal(t, "021100000", got)
}

func TestMMSI_TrimsSurroundingWhitespace(t *testing.T) {
	got, err := MMSI("  209010000  ")
	require.NoError(t, err)
	assert.Equal(t, "209010000", got)
}

func TestMMSI_RejectsCoastStationRangeAfterPadding(t *testing.T) {
	_, err := MMSI("1234") // pads to "000001234", two leading zeros, coast-station range
	assert.Error(t, err)
}

func TestMMSI_SingleLeadingZeroFromPaddingIsNotCoastStation(t *testing.T) {
	got, err := MMSI("21100000") // 8 digits -> padded "021100000", one leading zero
	require.NoError(t, err)
	assert.Equal(t, "021100000", got)
}

func TestMMSI_RejectsNonNumeric(t *testing.T) {
	_, err := MMSI("21A100000")
	assert.Error(t, err)
}

func TestMMSI_RejectsTooLong(t *testing.T) {
	_, err := MMSI("1234567890")
	assert.Error(t, err)
}

func TestMMSI_RejectsEmpty(t *testing.T) {
	_, err := MMSI("   ")
	assert.Error(t, err)
}

// TestMMSI_NormalizationIsIdempotentAndWellFormed exercises §8's MMSI
// normalization property across generated numeric strings: whenever
// normalization succeeds, the result is always nine digits, never begins
// with a coast-station/SAR/AtoN zero, and re-normalizing the already-padded
// result is a no-op.
func TestMMSI_NormalizationIsIdempotentAndWellFormed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		digits := rapid.StringMatching(`^[0-9]{1,9}$`).Draw(t, "digits")
		candidate := strings.Repeat("0", 9-len(digits)) + digits
		padded, err := MMSI(digits)
		if err != nil {
			// Only possible rejection for pure-digit input of length <= 9
			// is a coast-station/SAR/AtoN prefix (00) after padding.
			assert.True(t, strings.HasPrefix(candidate, "00"))
			return
		}
		assert.Len(t, padded, 9)
		assert.False(t, strings.HasPrefix(padded, "00"))

		again, err := MMSI(padded)
		require.NoError(t, err)
		assert.Equal(t, padded, again)
	})
}

func TestLatLon_AcceptsBoundaryValues(t *testing.T) {
	assert.NoError(t, LatLon(90, 180))
	assert.NoError(t, LatLon(-90, -180))
}

func TestLatLon_RejectsOutOfRange(t *testing.T) {
	assert.Error(t, LatLon(91, 0))
	assert.Error(t, LatLon(0, 181))
}

func TestHeading_MapsUnavailableSentinelToNil(t *testing.T) {
	assert.Nil(t, Heading(511))
}

func TestHeading_PassesThroughOrdinaryValue(t *testing.T) {
	h := Heading(42)
	require.NotNil(t, h)
	assert.Equal(t, 42.0, *h)
}

func TestTimestamp_AcceptsWithinSkewTolerance(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	raw := now.Add(4 * time.Minute).Format(time.RFC3339)
	got, err := Timestamp(raw, now, false)
	require.NoError(t, err)
	assert.True(t, got.Equal(now.Add(4*time.Minute)))
}

func TestTimestamp_RejectsBeyondSkewTolerance(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	raw := now.Add(10 * time.Minute).Format(time.RFC3339)
	_, err := Timestamp(raw, now, false)
	assert.Error(t, err)
}

func TestTimestamp_StreamingFallsBackToNowOnParseFailure(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	got, err := Timestamp("not-a-timestamp", now, true)
	require.NoError(t, err)
	assert.True(t, got.Equal(now))
}

func TestTimestamp_BatchRejectsUnparseableInput(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err := Timestamp("not-a-timestamp", now, false)
	assert.Error(t, err)
}

func TestDeriveFlag_KnownPrefixResolves(t *testing.T) {
	flag, risk := DeriveFlag("273100000")
	assert.Equal(t, "RU", flag)
	assert.Equal(t, models.FlagRiskHigh, risk)
}

func TestDeriveFlag_UnknownPrefixIsUnknownRisk(t *testing.T) {
	flag, risk := DeriveFlag("999999999")
	assert.Empty(t, flag)
	assert.Equal(t, models.FlagRiskUnknown, risk)
}

func TestDeriveFlag_TooShortIsUnknown(t *testing.T) {
	flag, risk := DeriveFlag("12")
	assert.Empty(t, flag)
	assert.Equal(t, models.FlagRiskUnknown, risk)
}

func TestParseFloat_TrimsAndParses(t *testing.T) {
	v, err := ParseFloat("  3.14  ")
	require.NoError(t, err)
	assert.Equal(t, 3.14, v)
}
