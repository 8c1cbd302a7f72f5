package scoring

import (
	"testing"

	"github.com/cucumber/godog"

	"github.com/radiancefleet/core/internal/config"
	"github.com/radiancefleet/core/pkg/models"
)

// darkZoneFeatureState exercises applyDarkZoneSignal through the exported
// Compute entry point; no unexported helpers need direct access here.
type darkZoneFeatureState struct {
	cfg    *config.ScoringConfig
	in     Input
	result Result
}

func (s *darkZoneFeatureState) givenGapInDarkZone() error {
	s.cfg = testConfig()
	s.in = Input{Gap: models.GapEvent{InDarkZone: true}}
	return nil
}

func (s *darkZoneFeatureState) givenOtherDarkVesselCount(count int) error {
	s.in.DarkZone.OtherDarkVesselCount = &count
	return nil
}

func (s *darkZoneFeatureState) givenNoCorroboratingCount() error {
	s.in.DarkZone.OtherDarkVesselCount = nil
	return nil
}

func (s *darkZoneFeatureState) whenTheGapIsScored() error {
	s.result = Compute(s.cfg, s.in)
	return nil
}

func (s *darkZoneFeatureState) thenBreakdownIncludes(key string) error {
	if _, ok := s.result.Breakdown[key]; !ok {
		return assertionFailure("expected breakdown to include " + key)
	}
	return nil
}

func (s *darkZoneFeatureState) thenBreakdownExcludes(key string) error {
	if _, ok := s.result.Breakdown[key]; ok {
		return assertionFailure("expected breakdown to exclude " + key)
	}
	return nil
}

type assertionFailure string

func (a assertionFailure) Error() string { return string(a) }

func TestDarkZoneEvasionFeature(t *testing.T) {
	state := &darkZoneFeatureState{}
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Step(`^a gap inside a dark zone$`, state.givenGapInDarkZone)
			ctx.Step(`^(\d+) other vessels? also went dark in that zone from a different source$`,
				func(count int) error { return state.givenOtherDarkVesselCount(count) })
			ctx.Step(`^no corroborating dark-vessel count is available$`, state.givenNoCorroboratingCount)
			ctx.Step(`^the gap is scored$`, state.whenTheGapIsScored)
			ctx.Step(`^the breakdown includes "([^"]*)"$`, state.thenBreakdownIncludes)
			ctx.Step(`^the breakdown does not include "([^"]*)"$`, state.thenBreakdownExcludes)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/05_dark_zone_evasion.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned from dark zone evasion feature suite")
	}
}
