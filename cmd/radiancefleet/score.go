package main

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/radiancefleet/core/internal/config"
	"github.com/radiancefleet/core/internal/evidence"
	"github.com/radiancefleet/core/internal/scoring"
	"github.com/radiancefleet/core/internal/store"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a single gap event or export its evidence card",
	}
	cmd.AddCommand(newScoreRescoreCmd())
	cmd.AddCommand(newScoreExportCmd())
	return cmd
}

func newScoreRescoreCmd() *cobra.Command {
	var gapEventID int64

	cmd := &cobra.Command{
		Use:   "rescore",
		Short: "Recompute one gap event's risk score against the current config bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := withTx(ctx, a, func(tx pgx.Tx) (scoring.Result, error) {
				gapRepo := store.NewGapEventRepo(tx)
				e, ok, err := gapRepo.ByID(ctx, gapEventID)
				if err != nil {
					return scoring.Result{}, err
				}
				if !ok {
					return scoring.Result{}, fmt.Errorf("radiancefleet: gap event %d not found", gapEventID)
				}
				v, ok, err := store.NewVesselRepo(tx).ByID(ctx, e.VesselID)
				if err != nil {
					return scoring.Result{}, err
				}
				if !ok {
					return scoring.Result{}, fmt.Errorf("radiancefleet: vessel %d not found", e.VesselID)
				}
				res := scoring.Compute(a.handle.Load().Scoring, scoring.Input{
					Gap: e, Vessel: v, PIStatus: v.PIStatus, ScoringDate: time.Now().UTC(),
				})
				if err := gapRepo.UpdateScore(ctx, e.ID, res.Score, res.Breakdown); err != nil {
					return scoring.Result{}, err
				}
				return res, nil
			})
			if err != nil {
				return err
			}

			a.logger.Sugar().Infow("gap event rescored", "gap_event_id", gapEventID, "score", result.Score, "breakdown", result.Breakdown)
			return nil
		},
	}
	cmd.Flags().Int64Var(&gapEventID, "gap-event-id", 0, "gap event primary key to rescore")
	cmd.MarkFlagRequired("gap-event-id")
	return cmd
}

func newScoreExportCmd() *cobra.Command {
	var gapEventID int64
	var notes string

	cmd := &cobra.Command{
		Use:   "export-evidence",
		Short: "Build and persist an evidence card for a reviewed gap event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			bundle := a.handle.Load()
			_, err = withTx(ctx, a, func(tx pgx.Tx) (int, error) {
				deps := evidence.Dependencies{
					Gaps:      store.NewGapEventRepo(tx),
					Positions: store.NewPositionRepo(tx),
					Vessels:   store.NewVesselRepo(tx),
					Corridors: &config.Bundle{Corridors: bundle.Corridors},
				}
				built, err := evidence.Build(ctx, deps, store.NewEvidenceRepo(tx), gapEventID, notes, time.Now().UTC())
				if err != nil {
					return 0, err
				}
				a.logger.Sugar().Infow("evidence card exported", "evidence_card_id", built.ID, "gap_event_id", gapEventID)
				return 1, nil
			})
			return err
		},
	}
	cmd.Flags().Int64Var(&gapEventID, "gap-event-id", 0, "gap event primary key to export")
	cmd.Flags().StringVar(&notes, "notes", "", "analyst notes to attach to the evidence card")
	cmd.MarkFlagRequired("gap-event-id")
	return cmd
}
