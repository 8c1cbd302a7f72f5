package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiancefleet/core/internal/confidence"
	"github.com/radiancefleet/core/internal/detect/cloning"
	"github.com/radiancefleet/core/internal/detect/convoy"
	"github.com/radiancefleet/core/internal/detect/draught"
	"github.com/radiancefleet/core/internal/detect/gap"
	"github.com/radiancefleet/core/internal/detect/loiter"
	"github.com/radiancefleet/core/internal/detect/outage"
	"github.com/radiancefleet/core/internal/detect/spoof"
	"github.com/radiancefleet/core/internal/detect/sts"
	"github.com/radiancefleet/core/internal/fetch"
	"github.com/radiancefleet/core/internal/identity"
	"github.com/radiancefleet/core/internal/ingest/batch"
	"github.com/radiancefleet/core/internal/ingest/httpfeed"
	"github.com/radiancefleet/core/internal/obs"
	"github.com/radiancefleet/core/internal/orchestrator"
	"github.com/radiancefleet/core/internal/ownership"
	"github.com/radiancefleet/core/internal/scoring"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

func newRunCmd() *cobra.Command {
	var fromStr, toStr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one full detection cycle over [--from, --to]",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, cleanup, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fmt.Errorf("radiancefleet: invalid --from: %w", err)
			}
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fmt.Errorf("radiancefleet: invalid --to: %w", err)
			}

			result, err := runPipeline(ctx, a, orchestrator.Window{DateFrom: from, DateTo: to, ScoringDate: to})
			if err != nil {
				return err
			}
			a.logger.Info("pipeline run finished",
				zap.Int64("run_id", result.RunID), zap.String("status", result.RunStatus),
				zap.Int("top_alerts", len(result.TopAlerts)))
			return nil
		},
	}
	cmd.Flags().StringVar(&fromStr, "from", "", "window start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&toStr, "to", "", "window end date, YYYY-MM-DD")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

const minGapHoursForDetection = 2.0
const darkGoneSilenceHours = 72.0

// runPipeline wires every detector/scoring/identity/ownership package into
// an orchestrator.Runner and executes one cycle. Each step opens and
// commits its own transaction, matching internal/store's "caller owns
// commit" contract (§5).
func runPipeline(ctx context.Context, a *app, window orchestrator.Window) (orchestrator.Result, error) {
	runsTx, err := a.store.Pool().Begin(ctx)
	if err != nil {
		return orchestrator.Result{}, fmt.Errorf("radiancefleet: opening run-bookkeeping transaction: %w", err)
	}
	runs := store.NewRunRepo(runsTx)

	runner := &orchestrator.Runner{
		Runs:  runs,
		Flags: a.handle.Load().Scoring,
		Steps: buildSteps(a, window),
	}

	topAlerts := func(ctx context.Context) ([]orchestrator.TopAlert, error) {
		return withTx(ctx, a, func(tx pgx.Tx) ([]orchestrator.TopAlert, error) {
			return assembleTopAlerts(ctx, store.NewGapEventRepo(tx), window)
		})
	}

	result, runErr := runner.Run(ctx, window, topAlerts)
	if runErr != nil {
		_ = runsTx.Rollback(ctx)
		return orchestrator.Result{}, runErr
	}
	if err := runsTx.Commit(ctx); err != nil {
		return orchestrator.Result{}, fmt.Errorf("radiancefleet: committing run-bookkeeping transaction: %w", err)
	}
	return result, nil
}

// withTx runs fn in its own transaction, committing on success and rolling
// back on error.
func withTx[T any](ctx context.Context, a *app, fn func(tx pgx.Tx) (T, error)) (T, error) {
	var zero T
	tx, err := a.store.Pool().Begin(ctx)
	if err != nil {
		return zero, fmt.Errorf("radiancefleet: opening transaction: %w", err)
	}
	result, err := fn(tx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("radiancefleet: committing transaction: %w", err)
	}
	return result, nil
}

func buildSteps(a *app, window orchestrator.Window) map[string]orchestrator.StepFunc {
	steps := map[string]orchestrator.StepFunc{}

	steps[orchestrator.StepExternalFetchers] = func(ctx context.Context) (int, error) {
		return runExternalFetchers(ctx, a)
	}

	steps[orchestrator.StepGapDetection] = func(ctx context.Context) (int, error) {
		return withTx(ctx, a, func(tx pgx.Tx) (int, error) {
			corridors, err := a.corridorModels(ctx)
			if err != nil {
				return 0, err
			}
			darkZones, err := a.darkZoneModels(ctx)
			if err != nil {
				return 0, err
			}
			ids, err := store.NewVesselRepo(tx).AllActive(ctx)
			if err != nil {
				return 0, err
			}
			stats, err := gap.Detect(ctx, store.NewPositionRepo(tx), store.NewGapEventRepo(tx), ids,
				gap.DateRange{From: window.DateFrom, To: window.DateTo},
				corridors, darkZones, minGapHoursForDetection)
			return stats.Created, err
		})
	}

	steps[orchestrator.StepFeedOutage] = func(ctx context.Context) (int, error) {
		return withTx(ctx, a, func(tx pgx.Tx) (int, error) {
			return runFeedOutage(ctx, a, tx, window)
		})
	}

	steps[orchestrator.StepBehaviorDetectors] = func(ctx context.Context) (int, error) {
		return withTx(ctx, a, func(tx pgx.Tx) (int, error) {
			return runBehaviorDetectors(ctx, a, tx, window)
		})
	}

	steps[orchestrator.StepScoring] = func(ctx context.Context) (int, error) {
		return withTx(ctx, a, func(tx pgx.Tx) (int, error) {
			return runScoring(ctx, a, tx, window)
		})
	}

	steps[orchestrator.StepConfidence] = func(ctx context.Context) (int, error) {
		return withTx(ctx, a, func(tx pgx.Tx) (int, error) {
			return runConfidenceAndAlerts(ctx, a, tx, window)
		})
	}

	steps[orchestrator.StepIdentityResolution] = func(ctx context.Context) (int, error) {
		return withTx(ctx, a, func(tx pgx.Tx) (int, error) {
			return runIdentityResolution(ctx, tx, window)
		})
	}

	steps[orchestrator.StepOwnershipGraph] = func(ctx context.Context) (int, error) {
		return withTx(ctx, a, func(tx pgx.Tx) (int, error) {
			return runOwnershipGraph(ctx, tx)
		})
	}

	return steps
}

// runExternalFetchers is §4.6 step 1: refresh the watchlist files the
// sanctions/scrapped-IMO checks read and pull one batch from the
// HTTP pull-feed, if either is configured. Neither configured is a no-op,
// not a failure, since the push-feed (stream subcommand) can be a vessel's
// only source of positions.
func runExternalFetchers(ctx context.Context, a *app) (int, error) {
	count := 0

	if a.env.WatchlistURL != "" {
		if err := os.MkdirAll(a.env.WatchlistDir, 0o755); err != nil {
			return count, fmt.Errorf("radiancefleet: preparing watchlist directory: %w", err)
		}
		dest := filepath.Join(a.env.WatchlistDir, "ofac_sdn.csv")
		if err := fetch.NewDownloader().Fetch(a.env.WatchlistURL, dest, fetch.FormatOFACSDNCSV); err != nil {
			return count, fmt.Errorf("radiancefleet: fetching watchlist: %w", err)
		}
		count++
	}

	if a.env.PullFeedURL != "" {
		client := httpfeed.NewClient("pull-feed", nil, httpfeed.DecodeGeoJSON)
		positions, statics, err := client.Fetch(ctx, a.env.PullFeedURL)
		if err != nil {
			return count, fmt.Errorf("radiancefleet: pulling feed batch: %w", err)
		}
		proc := batch.NewProcessor(a.store.Pool(), false)
		result := proc.IngestBatchConcurrent(ctx, positions, statics, 8)
		count += result.Stored
	}

	return count, nil
}

func runFeedOutage(ctx context.Context, a *app, tx pgx.Tx, window orchestrator.Window) (int, error) {
	gapRepo := store.NewGapEventRepo(tx)
	events, err := gapRepo.InWindow(ctx, window.DateFrom, window.DateTo)
	if err != nil {
		return 0, err
	}

	anomalies := store.NewSpoofingAnomalyRepo(tx)
	stsRepo := store.NewSTSTransferRepo(tx)
	runs := store.NewRunRepo(tx)

	highRisk := func(ctx context.Context, vesselID int64) (bool, error) {
		v, ok, err := store.NewVesselRepo(tx).ByID(ctx, vesselID)
		if err != nil || !ok {
			return false, err
		}
		return v.FlagRisk == models.FlagRiskHigh, nil
	}
	corroborated := func(ctx context.Context, vesselID int64, t time.Time, window time.Duration) (bool, error) {
		hit, err := anomalies.ForVesselAround(ctx, vesselID, t, window)
		if err != nil || hit {
			return hit, err
		}
		return stsRepo.ForVesselAround(ctx, vesselID, t, window)
	}
	baseline := func(ctx context.Context, corridorID *int64) (float64, bool, error) {
		recent, err := runs.RecentCompleted(ctx, 90)
		if err != nil || len(recent) == 0 {
			return 0, false, err
		}
		// A rolling P95 over cluster sizes is computed offline from
		// completed runs; with no such dataset wired yet, every call
		// reports no baseline so the detector falls back to its static
		// default threshold (§9 open question, resolved conservatively).
		return 0, false, nil
	}

	stats, err := outage.Detect(ctx, gapRepo, events, highRisk, corroborated, baseline)
	return stats.GapsMarked, err
}

func runBehaviorDetectors(ctx context.Context, a *app, tx pgx.Tx, window orchestrator.Window) (int, error) {
	log := obs.From(ctx)
	bundle := a.handle.Load()
	corridors, err := a.corridorModels(ctx)
	if err != nil {
		return 0, err
	}
	ports, err := a.portModels(ctx)
	if err != nil {
		return 0, err
	}

	var stsZones, arcticCorridors []models.Corridor
	for _, c := range corridors {
		if c.Type == models.CorridorSTSZone {
			stsZones = append(stsZones, c)
		}
		if c.IsArctic {
			arcticCorridors = append(arcticCorridors, c)
		}
	}

	vessels := store.NewVesselRepo(tx)
	positions := store.NewPositionRepo(tx)
	ids, err := vessels.AllActive(ctx)
	if err != nil {
		return 0, err
	}

	spoofCfg := spoof.Config{
		AnchorageCorridors: corridors,
		STSZones:           stsZones,
		EUPortNames:        map[string]bool{},
		IsScrappedIMO: func(imo string) bool {
			_, ok := bundle.Scrapped.IsScrapped(imo)
			return ok
		},
		NearbyVesselIDs: func(ctx context.Context, vesselID int64) ([]int64, error) { return nil, nil },
	}
	observations := store.NewObservationRepo(tx)
	nameChanges := store.NewNameChangeRepo(tx)
	anomalies := store.NewSpoofingAnomalyRepo(tx)
	loitering := store.NewLoiteringRepo(tx)
	draughts := store.NewDraughtChangeRepo(tx)
	cloningRepo := store.NewMMSICloningRepo(tx)
	gapRepo := store.NewGapEventRepo(tx)
	stsRepo := store.NewSTSTransferRepo(tx)

	stsCheck := func(ctx context.Context, vesselID int64, t time.Time, w time.Duration) (bool, error) {
		return stsRepo.ForVesselAround(ctx, vesselID, t, w)
	}
	gapCheck := func(ctx context.Context, vesselID int64, t time.Time) (bool, error) {
		return gapRepo.Straddles(ctx, vesselID, t)
	}

	count := 0
	for _, vesselID := range ids {
		v, ok, err := vessels.ByID(ctx, vesselID)
		if err != nil {
			return count, err
		}
		if !ok {
			continue
		}
		track, err := positions.Track(ctx, vesselID, window.DateFrom, window.DateTo)
		if err != nil {
			return count, err
		}
		if len(track) == 0 {
			continue
		}

		if bundle.Scoring.DetectionIsEnabled("spoofing") {
			pctx := spoof.PositionalContext{MMSI: v.MMSI, IMO: v.IMO}
			stats, err := spoof.Detect(ctx, positions, observations, nameChanges, anomalies, vesselID, track, pctx, spoofCfg, bundle.Scoring)
			if err != nil {
				log.Warn("spoof detect failed", zap.Int64("vessel_id", vesselID), zap.Error(err))
			} else {
				for _, n := range stats.Created {
					count += n
				}
			}
		}

		if bundle.Scoring.DetectionIsEnabled("loitering") {
			stats, err := loiter.Detect(ctx, loitering, vesselID, track, corridors)
			if err != nil {
				log.Warn("loiter detect failed", zap.Int64("vessel_id", vesselID), zap.Error(err))
			} else {
				count += stats.EventsCreated
			}
			history, err := positions.Track(ctx, vesselID, time.Time{}, window.DateTo)
			if err != nil {
				log.Warn("laid-up history load failed", zap.Int64("vessel_id", vesselID), zap.Error(err))
			} else if err := loiter.DetectLaidUp(ctx, vessels, vesselID, history, stsZones); err != nil {
				log.Warn("laid-up classification failed", zap.Int64("vessel_id", vesselID), zap.Error(err))
			}
		}

		if bundle.Scoring.DetectionIsEnabled("draught") {
			stats, err := draught.Detect(ctx, draughts, vesselID, v.VesselType, track, ports, stsCheck, gapCheck)
			if err != nil {
				log.Warn("draught detect failed", zap.Int64("vessel_id", vesselID), zap.Error(err))
			} else {
				count += stats.EventsCreated
			}
		}

		if bundle.Scoring.DetectionIsEnabled("mmsi_cloning") {
			stats, err := cloning.Detect(ctx, cloningRepo, vesselID, track)
			if err != nil {
				log.Warn("cloning detect failed", zap.Int64("vessel_id", vesselID), zap.Error(err))
			} else {
				count += stats.Created
			}
		}

		if bundle.Scoring.DetectionIsEnabled("convoy") {
			if ok, err := convoy.DetectArcticNoIceClass(ctx, store.NewConvoyRepo(tx), vesselID, v.VesselType, track, arcticCorridors); err != nil {
				log.Warn("arctic no-ice-class check failed", zap.Int64("vessel_id", vesselID), zap.Error(err))
			} else if ok {
				count++
			}
		}
	}

	if bundle.Scoring.DetectionIsEnabled("sts") {
		fleetPositions, err := positions.InWindow(ctx, window.DateFrom, window.DateTo)
		if err != nil {
			return count, err
		}
		indexed := make([]sts.IndexedPosition, 0, len(fleetPositions))
		for _, p := range fleetPositions {
			indexed = append(indexed, sts.IndexedPosition{VesselID: p.VesselID, Visible: true, Position: p})
		}
		stats, err := sts.Detect(ctx, stsRepo, indexed, stsZones)
		if err != nil {
			log.Warn("sts detect failed", zap.Error(err))
		} else {
			count += stats.EventsCreated
		}
	}

	if bundle.Scoring.DetectionIsEnabled("convoy") {
		fleetPositions, err := positions.InWindow(ctx, window.DateFrom, window.DateTo)
		if err != nil {
			return count, err
		}
		vesselOf := make(map[int]int64, len(fleetPositions))
		for i, p := range fleetPositions {
			vesselOf[i] = p.VesselID
		}
		stats, err := convoy.Detect(ctx, store.NewConvoyRepo(tx), fleetPositions, vesselOf)
		if err != nil {
			log.Warn("convoy detect failed", zap.Error(err))
		} else {
			count += stats.EventsCreated
		}
	}

	return count, nil
}

func runScoring(ctx context.Context, a *app, tx pgx.Tx, window orchestrator.Window) (int, error) {
	bundle := a.handle.Load()
	gapRepo := store.NewGapEventRepo(tx)
	vessels := store.NewVesselRepo(tx)

	events, err := gapRepo.InWindow(ctx, window.DateFrom, window.DateTo)
	if err != nil {
		return 0, err
	}

	scored := 0
	for _, e := range events {
		if e.IsFeedOutage {
			continue
		}
		v, ok, err := vessels.ByID(ctx, e.VesselID)
		if err != nil {
			return scored, err
		}
		if !ok {
			continue
		}
		result := scoring.Compute(bundle.Scoring, scoring.Input{
			Gap:         e,
			Vessel:      v,
			PIStatus:    v.PIStatus,
			ScoringDate: window.ScoringDate,
		})
		if err := gapRepo.UpdateScore(ctx, e.ID, result.Score, result.Breakdown); err != nil {
			return scored, err
		}
		scored++
	}
	return scored, nil
}

func runConfidenceAndAlerts(ctx context.Context, a *app, tx pgx.Tx, window orchestrator.Window) (int, error) {
	gapRepo := store.NewGapEventRepo(tx)
	vessels := store.NewVesselRepo(tx)
	events, err := gapRepo.InWindow(ctx, window.DateFrom, window.DateTo)
	if err != nil {
		return 0, err
	}

	classified := 0
	for _, e := range events {
		_, watchlist := e.Breakdown["watchlist_match"]
		level := confidence.Classify(e.RiskScore, e.Breakdown, watchlist, e.AnalystStatus == models.StatusConfirmed)
		v, ok, err := vessels.ByID(ctx, e.VesselID)
		if err != nil {
			return classified, err
		}
		if !ok {
			continue
		}
		a.alertManager().EmitFromClassification(ctx, v.ID, v.MMSI, level, e.RiskScore,
			fmt.Sprintf("Gap event risk %d (%s)", e.RiskScore, level),
			fmt.Sprintf("Vessel %s flagged with %s confidence over a %.1fh AIS gap", v.MMSI, level, e.DurationHours),
			window.ScoringDate)
		classified++
	}
	return classified, nil
}

// runIdentityResolution pairs vessels that recently went dark against
// vessels newly appeared in the same window and scores each pair (§4.5).
// Fingerprint distances are ranked against the full cross-population
// computed in this call, per CandidateInput.FingerprintPercentile's
// contract that the caller holds the full population.
func runIdentityResolution(ctx context.Context, tx pgx.Tx, window orchestrator.Window) (int, error) {
	fingerprints := store.NewVesselFingerprintRepo(tx)
	vessels := store.NewVesselRepo(tx)
	resolver := &identity.Resolver{
		Candidates: store.NewMergeCandidateRepo(tx),
		Operations: store.NewMergeOperationRepo(tx),
		Chains:     store.NewMergeChainRepo(tx),
		Vessels:    vessels,
	}

	darkIDs, err := fingerprints.RecentlyDark(ctx, window.DateTo, darkGoneSilenceHours)
	if err != nil {
		return 0, err
	}
	newIDs, err := fingerprints.NewlyAppeared(ctx, window.DateFrom)
	if err != nil {
		return 0, err
	}
	if len(darkIDs) == 0 || len(newIDs) == 0 {
		return 0, nil
	}

	type pair struct {
		dark, new int64
		distance  float64
		hasFP     bool
	}
	var pairs []pair
	var population []float64
	for _, d := range darkIDs {
		for _, n := range newIDs {
			p := pair{dark: d, new: n}
			dfp, ok1, err := fingerprints.ByVesselID(ctx, d)
			if err != nil {
				return 0, err
			}
			nfp, ok2, err := fingerprints.ByVesselID(ctx, n)
			if err != nil {
				return 0, err
			}
			if ok1 && ok2 {
				p.hasFP = true
				p.distance = identity.EuclideanDistance(dfp.Features, nfp.Features)
				population = append(population, p.distance)
			}
			pairs = append(pairs, p)
		}
	}

	evaluated := 0
	for _, p := range pairs {
		darkV, ok, err := vessels.ByID(ctx, p.dark)
		if err != nil || !ok {
			continue
		}
		newV, ok, err := vessels.ByID(ctx, p.new)
		if err != nil || !ok {
			continue
		}
		in := identity.CandidateInput{
			Dark:            darkV,
			New:             newV,
			HasFingerprints: p.hasFP,
		}
		if p.hasFP {
			in.FingerprintPercentile = identity.Percentile(population, p.distance)
		}
		if _, err := resolver.Evaluate(ctx, in, window.ScoringDate); err != nil {
			return evaluated, err
		}
		evaluated++
	}
	return evaluated, nil
}

func runOwnershipGraph(ctx context.Context, tx pgx.Tx) (int, error) {
	graph, err := ownership.BuildGraph(ctx, store.NewOwnerRepo(tx))
	if err != nil {
		return 0, err
	}
	findings := len(graph.DetectShellChains()) + len(graph.DetectCircularOwnership()) + len(graph.DetectSharedAddressWithSanctioned())
	if err := ownership.Persist(ctx, store.NewOwnerClusterRepo(tx), graph.Clusters()); err != nil {
		return 0, err
	}
	return findings, nil
}

func assembleTopAlerts(ctx context.Context, gaps *store.GapEventRepo, window orchestrator.Window) ([]orchestrator.TopAlert, error) {
	events, err := gaps.InWindow(ctx, window.DateFrom, window.DateTo)
	if err != nil {
		return nil, err
	}
	out := make([]orchestrator.TopAlert, 0, len(events))
	for _, e := range events {
		out = append(out, orchestrator.TopAlert{
			GapEventID: e.ID,
			RiskScore:  e.RiskScore,
			DurationH:  e.DurationHours,
			CorridorID: e.CorridorID,
		})
	}
	return out, nil
}
