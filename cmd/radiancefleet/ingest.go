package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiancefleet/core/internal/ingest/batch"
)

// feedFile is the on-disk shape of a batch ingest file: a pull-feed or
// archival dump of raw AIS records, decoded straight into batch.Processor's
// input types.
type feedFile struct {
	Positions []batch.RawPosition     `json:"positions"`
	Statics   []batch.RawStaticUpdate `json:"statics"`
}

func newIngestCmd() *cobra.Command {
	var filePath string
	var workers int
	var streaming bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a batch of AIS position and static-data records from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			raw, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("radiancefleet: reading ingest file: %w", err)
			}
			var feed feedFile
			if err := json.Unmarshal(raw, &feed); err != nil {
				return fmt.Errorf("radiancefleet: parsing ingest file: %w", err)
			}

			proc := batch.NewProcessor(a.store.Pool(), streaming)
			result := runIngest(ctx, proc, feed, workers)

			a.logger.Info("ingest batch finished",
				zap.Int("stored", result.Stored), zap.Int("vessels_updated", result.VesselsUpdated),
				zap.Int("duplicates_skipped", result.DuplicatesSkipped), zap.Int("errors", result.Errors))
			return nil
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to a JSON file of {positions, statics}")
	cmd.Flags().IntVar(&workers, "workers", 1, "concurrent ingest workers (>1 uses IngestBatchConcurrent)")
	cmd.Flags().BoolVar(&streaming, "streaming", false, "treat unparseable timestamps as now() instead of rejecting the row")
	cmd.MarkFlagRequired("file")
	return cmd
}

func runIngest(ctx context.Context, proc *batch.Processor, feed feedFile, workers int) batch.Result {
	if workers > 1 {
		return proc.IngestBatchConcurrent(ctx, feed.Positions, feed.Statics, workers)
	}
	return proc.IngestBatch(ctx, feed.Positions, feed.Statics)
}
