package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiancefleet/core/internal/ingest/batch"
	"github.com/radiancefleet/core/internal/ingest/stream"
)

func newStreamCmd() *cobra.Command {
	var durationStr, batchIntervalStr string

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Subscribe to the AIS push feed for a fixed duration, flushing batches into storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if a.env.AISStreamAPIKey == "" {
				return fmt.Errorf("radiancefleet: RADIANCEFLEET_AIS_STREAM_API_KEY is required")
			}

			duration, err := time.ParseDuration(durationStr)
			if err != nil {
				return fmt.Errorf("radiancefleet: invalid --duration: %w", err)
			}
			batchInterval, err := time.ParseDuration(batchIntervalStr)
			if err != nil {
				return fmt.Errorf("radiancefleet: invalid --batch-interval: %w", err)
			}

			boxes, err := streamBoundingBoxes(ctx, a)
			if err != nil {
				return fmt.Errorf("radiancefleet: deriving stream subscription boxes: %w", err)
			}

			proc := batch.NewProcessor(a.store.Pool(), true)
			stats, err := stream.StreamFeed(ctx, a.env.AISStreamAPIKey, boxes, duration, batchInterval, proc)
			if err != nil {
				return err
			}
			a.logger.Info("stream session finished",
				zap.Int("positions_received", stats.PositionsReceived),
				zap.Int("static_updates", stats.StaticUpdates),
				zap.Int("batches_flushed", stats.BatchesFlushed),
				zap.Int("errors", stats.Errors),
				zap.String("disconnect_reason", stats.DisconnectReason))
			return nil
		},
	}
	cmd.Flags().StringVar(&durationStr, "duration", "1h", "total session duration, e.g. 1h30m")
	cmd.Flags().StringVar(&batchIntervalStr, "batch-interval", "30s", "flush interval for buffered records")
	return cmd
}

// streamBoundingBoxes subscribes to every configured corridor's bounding
// box, so the push feed only pays for traffic in corridors the scoring
// config actually watches rather than the whole globe.
func streamBoundingBoxes(ctx context.Context, a *app) ([]stream.BoundingBox, error) {
	corridors, err := a.corridorModels(ctx)
	if err != nil {
		return nil, err
	}
	boxes := make([]stream.BoundingBox, 0, len(corridors))
	for _, c := range corridors {
		boxes = append(boxes, stream.BoundingBox{
			MinLat: c.BBox.MinLat, MinLon: c.BBox.MinLon,
			MaxLat: c.BBox.MaxLat, MaxLon: c.BBox.MaxLon,
		})
	}
	return boxes, nil
}
