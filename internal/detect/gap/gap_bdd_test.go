package gap

import (
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiancefleet/core/internal/config"
	"github.com/radiancefleet/core/internal/scoring"
	"github.com/radiancefleet/core/pkg/models"
)

type gapFeatureState struct {
	prev, cur models.Position
	event     models.GapEvent
	result    scoring.Result
}

func (s *gapFeatureState) givenVesselDeadweight(dwt int, flag string) error {
	return nil
}

func (s *gapFeatureState) givenPreGapPosition(ts string, sog float64) error {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return err
	}
	s.prev = models.Position{TimestampUTC: t, SOGKnots: sog, Lat: 10, Lon: 50}
	return nil
}

func (s *gapFeatureState) givenResumedPosition(ts string, distanceNM float64) error {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return err
	}
	// Move purely along the meridian so the great-circle distance is
	// (degrees/360) * earth circumference, independent of the haversine
	// longitude-correction term.
	degrees := distanceNM / 60.0
	s.cur = models.Position{TimestampUTC: t, Lat: s.prev.Lat + degrees, Lon: s.prev.Lon}
	return nil
}

func (s *gapFeatureState) whenTheGapEventIsBuilt() error {
	s.event = buildEvent(1, s.prev, s.cur, s.cur.TimestampUTC.Sub(s.prev.TimestampUTC), nil, nil)

	cfg := &config.ScoringConfig{
		Sections: map[string]config.ScoringSection{
			"gap_duration": {Enabled: true, Points: map[string]int{}},
			"spoofing":     {Enabled: true, Points: map[string]int{"speed_impossible": 40, "speed_spoof": 35}},
		},
		DurationTiers: []config.DurationTier{
			{Key: "gap_duration_24h_plus", MinHours: 24, Points: 50},
		},
	}
	s.result = scoring.Compute(cfg, scoring.Input{Gap: s.event})
	return nil
}

func (s *gapFeatureState) thenBreakdownIncludes(key string) error {
	if _, ok := s.result.Breakdown[key]; !ok {
		return assertionFailure("expected breakdown to contain " + key)
	}
	return nil
}

func (s *gapFeatureState) thenBreakdownExcludes(key string) error {
	if _, ok := s.result.Breakdown[key]; ok {
		return assertionFailure("expected breakdown not to contain " + key)
	}
	return nil
}

func (s *gapFeatureState) thenScoreClampedAtMost(max int) error {
	if s.result.Score > max {
		return assertionFailure("expected score clamped to at most the configured maximum")
	}
	return nil
}

type assertionFailure string

func (a assertionFailure) Error() string { return string(a) }

func TestGapSpeedSpikeFeature(t *testing.T) {
	state := &gapFeatureState{}
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Step(`^a vessel with deadweight (\d+) tonnes and flag "([^"]*)"$`, state.givenVesselDeadweight)
			ctx.Step(`^a pre-gap position at "([^"]*)" with SOG (\d+) knots$`, func(ts string, sog int) error {
				return state.givenPreGapPosition(ts, float64(sog))
			})
			ctx.Step(`^a resumed position at "([^"]*)" (\d+) nautical miles away$`, func(ts string, nm int) error {
				return state.givenResumedPosition(ts, float64(nm))
			})
			ctx.Step(`^the gap event is built$`, state.whenTheGapEventIsBuilt)
			ctx.Step(`^the breakdown includes "([^"]*)"$`, state.thenBreakdownIncludes)
			ctx.Step(`^the breakdown does not include "([^"]*)"$`, state.thenBreakdownExcludes)
			ctx.Step(`^the score is clamped to at most (\d+)$`, func(max int) error {
				return state.thenScoreClampedAtMost(max)
			})
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../../features/01_gap_speed_spike.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned from gap speed-spike feature suite")
	}
}

func TestBuildEvent_MatchesFeatureFixtureDirectly(t *testing.T) {
	prev := models.Position{TimestampUTC: time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC), SOGKnots: 25, Lat: 10, Lon: 50}
	cur := models.Position{TimestampUTC: time.Date(2026, 1, 16, 8, 0, 0, 0, time.UTC), Lat: 25, Lon: 50}
	event := buildEvent(1, prev, cur, cur.TimestampUTC.Sub(prev.TimestampUTC), nil, nil)
	require.True(t, event.ImpossibleSpeedFlag)
	assert.InDelta(t, 26.0, event.DurationHours, 0.01)
}
