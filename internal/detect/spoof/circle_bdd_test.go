package spoof

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/radiancefleet/core/pkg/models"
)

type circleFeatureState struct {
	track []models.Position
	found []models.SpoofingAnomaly
}

func (s *circleFeatureState) givenClusteredPositions(count int, centerLat, centerLon, spread float64) error {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.track = nil
	for i := 0; i < count; i++ {
		offset := spread * math.Sin(float64(i))
		s.track = append(s.track, models.Position{
			TimestampUTC: base.Add(time.Duration(i) * 10 * time.Minute),
			Lat:          centerLat + offset, Lon: centerLon + offset,
		})
	}
	return nil
}

func (s *circleFeatureState) givenSOGRange(min, max float64) error {
	for i := range s.track {
		s.track[i].SOGKnots = min + (max-min)*0.5
	}
	return nil
}

func (s *circleFeatureState) whenCircleSpoofDetectionRuns() error {
	found, err := detectCircleSpoof(context.Background(), nil, 1, s.track, Config{})
	s.found = found
	return err
}

func (s *circleFeatureState) thenExactlyNAnomalies(n int) error {
	if len(s.found) != n {
		return assertionFailure("unexpected anomaly count")
	}
	return nil
}

type assertionFailure string

func (a assertionFailure) Error() string { return string(a) }

func TestCircleSpoofFeature(t *testing.T) {
	state := &circleFeatureState{}
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			ctx.Step(`^(\d+) positions clustered around \(([0-9.]+), ([0-9.]+)\) within ([0-9.]+) degrees$`,
				func(count int, lat, lon, spread float64) error {
					return state.givenClusteredPositions(count, lat, lon, spread)
				})
			ctx.Step(`^each position has SOG between (\d+) and (\d+) knots$`, func(min, max int) error {
				return state.givenSOGRange(float64(min), float64(max))
			})
			ctx.Step(`^circle-spoof detection runs over the track$`, state.whenCircleSpoofDetectionRuns)
			ctx.Step(`^exactly (\d+) circle-spoof anomaly is produced$`, state.thenExactlyNAnomalies)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../../features/02_circle_spoof.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned from circle-spoof feature suite")
	}
}
