package sts

import (
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/radiancefleet/core/pkg/models"
)

type stsFeatureState struct {
	a, b          IndexedPosition
	bucketCount   int
	buckets       []time.Time
	detectionType models.STSDetectionType
	start, end    time.Time
}

func (s *stsFeatureState) givenTenBucketsWithinProximity(count int) error {
	s.bucketCount = count
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.buckets = nil
	for i := 0; i < count; i++ {
		s.buckets = append(s.buckets, base.Add(time.Duration(i)*15*time.Minute))
	}
	s.a = IndexedPosition{VesselID: 1, Visible: true, Position: models.Position{Lat: 1, Lon: 1, SOGKnots: 1}}
	s.b = IndexedPosition{VesselID: 2, Visible: true, Position: models.Position{Lat: 1.0005, Lon: 1.0005, SOGKnots: 1}}
	return nil
}

func (s *stsFeatureState) givenSlowAligned() error {
	return nil
}

func (s *stsFeatureState) givenBothVisible() error {
	s.a.Visible, s.b.Visible = true, true
	return nil
}

func (s *stsFeatureState) whenTheRunIsClassified() error {
	if !qualifies(s.a.Position, s.b.Position) {
		return assertionFailure("fixture positions should qualify for STS proximity")
	}
	s.detectionType = classify(s.a, s.b)

	runs := consecutiveRuns(s.buckets)
	if len(runs) != 1 || len(runs[0]) != s.bucketCount {
		return assertionFailure("expected one unbroken run spanning every bucket")
	}
	run := runs[0]
	s.start = run[0]
	s.end = run[len(run)-1].Add(15 * time.Minute)
	return nil
}

func (s *stsFeatureState) thenDetectionTypeIs(expected string) error {
	if string(s.detectionType) != expected {
		return assertionFailure("unexpected detection type")
	}
	return nil
}

func (s *stsFeatureState) thenRunSpansFirstToLastPlus15Min() error {
	if !s.start.Equal(s.buckets[0]) {
		return assertionFailure("run should start at the first bucket")
	}
	if !s.end.Equal(s.buckets[len(s.buckets)-1].Add(15 * time.Minute)) {
		return assertionFailure("run should end 15 minutes after the last bucket")
	}
	return nil
}

type assertionFailure string

func (a assertionFailure) Error() string { return string(a) }

func TestSTSEventFeature(t *testing.T) {
	state := &stsFeatureState{}
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Step(`^two vessels within ([0-9.]+) degrees of each other for (\d+) consecutive 15-minute buckets$`,
				func(_ float64, count int) error { return state.givenTenBucketsWithinProximity(count) })
			ctx.Step(`^both vessels report SOG under (\d+) knots and a heading delta under (\d+) degrees$`,
				func(_, _ int) error { return state.givenSlowAligned() })
			ctx.Step(`^both vessels are visible on AIS throughout$`, state.givenBothVisible)
			ctx.Step(`^the STS run is classified$`, state.whenTheRunIsClassified)
			ctx.Step(`^the detection type is "([^"]*)"$`, state.thenDetectionTypeIs)
			ctx.Step(`^the run starts at the first bucket and ends 15 minutes after the last bucket$`,
				state.thenRunSpansFirstToLastPlus15Min)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../../features/03_sts_event.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned from sts event feature suite")
	}
}
