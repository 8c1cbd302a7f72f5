// Package scoring implements the declarative risk-scoring engine (§4.3): a
// configuration-driven composition of positive signals and legitimacy
// deductions, with multipliers, subsumption rules, and mutual-exclusion
// rules. Grounded on the teacher's internal/heuristics package in spirit
// (many small named signal checks contributing to one aggregate score) but
// collapsed into one declarative engine since the signal catalog here is
// config-driven rather than one-function-per-heuristic.
package scoring

import (
	"time"

	"github.com/radiancefleet/core/internal/config"
	"github.com/radiancefleet/core/internal/obs/metrics"
	"github.com/radiancefleet/core/pkg/models"
)

const minScore = 0
const maxScore = 200
const youngVesselAgeYears = 25

// DarkZoneContext carries the cohort facts needed to decide between
// selective_dark_zone_evasion and dark_zone_deduction (§4.3 "Dark zone").
// OtherDarkVesselCount == nil means no corroborating DB query was
// available, which defaults to the deduction per §8 scenario 5.
type DarkZoneContext struct {
	OtherDarkVesselCount *int
	AllSameSource        bool
}

// Input carries every fact the engine needs to score one gap event. Callers
// (the orchestrator) assemble this from the detectors' persisted output;
// the engine itself never queries the database.
type Input struct {
	Gap      models.GapEvent
	Vessel   models.Vessel
	Corridor *models.Corridor

	// FrequencyCounts maps window-days (7, 14, 30) to the number of gap
	// events in that trailing window, used to evaluate all applicable
	// gap_frequency_N_in_D tiers and keep only the highest.
	FrequencyCounts map[int]int

	SpoofingAnomalies []models.SpoofingAnomaly
	STSEvents         []models.STSTransferEvent
	LoiteringEvents   []models.LoiteringEvent
	ConvoyEvents      []models.ConvoyEvent

	WatchlistMatch      bool
	FlagChangeCount90d  int
	DarkZone            DarkZoneContext
	RussianPortSignal   bool
	PIStatus            models.PIStatus
	PSCCleanRecord      bool
	IGPIClubMember      bool
	TradingHistoryYears int
	ISMContinuityBreak  bool
	RenameCount90d      int
	RegistryFraudTier   string // "" | "tier_1" | "tier_2" | "tier_3"
	ScrappedIMOReuse    bool
	TrackReplayDetected bool
	TrackNaturalnessTier string // "" | "LOW" | "MEDIUM" | "HIGH"
	AtSeaNoPortCallDays int
	OwnershipGraphFlags []string // e.g. "shell_chain", "circular_ownership"

	// ScoringDate is the reproducibility anchor (§8 "scoring
	// reproducibility over time"): age-tier classification must use this,
	// never time.Now(), so re-scoring the same gap on a later date with an
	// unchanged config is guaranteed to reproduce the same breakdown.
	ScoringDate time.Time
}

// Result is the engine's output: the final clamped score and the full
// breakdown of contributing keys (unique by construction).
type Result struct {
	Score     int
	Breakdown map[string]int
}

// Compute runs the full declarative scoring pipeline over one gap event.
func Compute(cfg *config.ScoringConfig, in Input) Result {
	b := &breakdown{keys: map[string]int{}}

	applyDurationTier(cfg, in, b)
	applyFrequencyTiers(cfg, in, b)
	applySpeedSignals(cfg, in, b)
	applySpoofingSignals(cfg, in, b)
	applySTSSignals(cfg, in, b)
	applyLoiteringSignals(cfg, in, b)
	applyConvoySignals(cfg, in, b)
	applyMetadataSignals(cfg, in, b)
	applyWatchlistSignal(cfg, in, b)
	applyDarkZoneSignal(cfg, in, b)
	applyBehavioralSignals(cfg, in, b)
	applyRegistrySignals(cfg, in, b)
	applyOwnershipGraphSignals(cfg, in, b)
	applyVesselAgeSignal(cfg, in, b)
	applyLegitimacyDeductions(cfg, in, b)

	applyVoyageCycleGate(cfg, in, b)
	applyReactivationGate(cfg, in, b)

	positiveSum, deductionSum := b.split()
	multiplier := cfg.VesselSizeMultiplier(in.Vessel.DeadweightTonnes) * corridorMultiplier(in.Corridor)
	raw := positiveSum*multiplier + deductionSum

	score := int(raw)
	if score < minScore {
		score = minScore
		metrics.ScoringClampedTotal.Inc()
	}
	if score > maxScore {
		score = maxScore
		metrics.ScoringClampedTotal.Inc()
	}
	return Result{Score: score, Breakdown: b.keys}
}

// breakdown accumulates unique signal keys. Every signal is set exactly
// once per scoring pass (§3 "breakdown keys are unique").
type breakdown struct {
	keys map[string]int
}

func (b *breakdown) set(key string, points int) {
	if points == 0 {
		return
	}
	b.keys[key] = points
}

func (b *breakdown) has(key string) bool {
	_, ok := b.keys[key]
	return ok
}

func (b *breakdown) hasPrefix(prefix string) bool {
	for k := range b.keys {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// split separates accumulated keys into the positive-signal sum (subject
// to multipliers) and the deduction sum (added unmultiplied), using sign
// as the discriminator: every section's config values can be positive
// (feature signal) or negative (legitimacy deduction) without the engine
// needing section-level plumbing to tell them apart.
func (b *breakdown) split() (positive float64, deduction float64) {
	for _, v := range b.keys {
		if v >= 0 {
			positive += float64(v)
		} else {
			deduction += float64(v)
		}
	}
	return positive, deduction
}

func corridorMultiplier(c *models.Corridor) float64 {
	if c == nil || c.RiskMultiplier == 0 {
		return 1.0
	}
	return c.RiskMultiplier
}

func applyDurationTier(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("gap_duration") {
		return
	}
	var winner config.DurationTier
	found := false
	for _, t := range cfg.DurationTiers {
		if in.Gap.DurationHours >= t.MinHours && (!found || t.MinHours > winner.MinHours) {
			winner = t
			found = true
		}
	}
	if found {
		b.set(winner.Key, winner.Points)
	}
}

func applyFrequencyTiers(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("gap_frequency") {
		return
	}
	var winner config.FrequencyTier
	found := false
	for _, t := range cfg.FrequencyTiers {
		count, ok := in.FrequencyCounts[t.WindowDays]
		if !ok || count < t.N {
			continue
		}
		if !found || t.Points > winner.Points {
			winner = t
			found = true
		}
	}
	if found {
		b.set(winner.Key, winner.Points)
	}
}

func applySpeedSignals(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("spoofing") && !cfg.SectionEnabled("gap_duration") {
		return
	}
	// Subsumption: speed_impossible supersedes speed_spoof and
	// speed_spike_before_gap; at most one fires, and speed_impossible does
	// not add the 1.4x gap-duration bonus that speed_spike_before_gap does
	// (§4.3 "Subsumption and mutual exclusion").
	if in.Gap.ImpossibleSpeedFlag {
		b.set("speed_impossible", cfg.Points("spoofing", "speed_impossible"))
		return
	}
	if hasMMSIReuseAnomaly(in.SpoofingAnomalies) {
		b.set("speed_spoof", cfg.Points("spoofing", "speed_spoof"))
		return
	}
	if in.Gap.VelocityPlausibilityRatio > 1.0 {
		points := cfg.Points("gap_duration", "speed_spike_before_gap")
		bonus := int(float64(points) * 0.4)
		b.set("speed_spike_before_gap", points+bonus)
	}
}

func hasMMSIReuseAnomaly(anomalies []models.SpoofingAnomaly) bool {
	for _, a := range anomalies {
		if a.Type == models.SpoofMMSIReuse {
			return true
		}
	}
	return false
}

func applySpoofingSignals(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("spoofing") {
		return
	}
	for _, a := range in.SpoofingAnomalies {
		if a.Type == models.SpoofMMSIReuse {
			continue // handled by applySpeedSignals' subsumption rule
		}
		key := string(a.Type)
		if points := cfg.Points("spoofing", key); points != 0 {
			b.set(key, points)
		}
	}
	if in.ScrappedIMOReuse {
		b.set("scrapped_imo_reuse", cfg.Points("spoofing", "scrapped_imo_reuse"))
	}
	if in.TrackReplayDetected {
		b.set("track_replay_match", cfg.Points("track_replay", "match"))
	}
	if in.TrackNaturalnessTier != "" {
		key := "track_naturalness_" + in.TrackNaturalnessTier
		b.set(key, cfg.Points("track_naturalness", in.TrackNaturalnessTier))
	}
}

func applySTSSignals(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("sts") || len(in.STSEvents) == 0 {
		return
	}
	for _, e := range in.STSEvents {
		key := "sts_event_" + string(e.DetectionType)
		b.set(key, cfg.Points("sts", string(e.DetectionType)))
	}
}

func applyLoiteringSignals(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("behavioral") || len(in.LoiteringEvents) == 0 {
		return
	}
	var longest float64
	for _, e := range in.LoiteringEvents {
		hours := e.EndUTC.Sub(e.StartUTC).Hours()
		if hours > longest {
			longest = hours
		}
	}
	if longest >= 12 {
		b.set("loitering_extended", cfg.Points("behavioral", "loitering_extended"))
	} else {
		b.set("loitering_brief", cfg.Points("behavioral", "loitering_brief"))
	}
}

func applyConvoySignals(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("convoy") || len(in.ConvoyEvents) == 0 {
		return
	}
	for _, e := range in.ConvoyEvents {
		key := "convoy_" + string(e.Kind)
		b.set(key, cfg.Points("convoy", string(e.Kind)))
	}
}

func applyMetadataSignals(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("metadata") {
		return
	}
	if in.Vessel.FlagRisk == models.FlagRiskHigh {
		b.set("high_risk_flag", cfg.Points("metadata", "high_risk_flag"))
	}
	if in.FlagChangeCount90d >= 3 {
		b.set("flag_changes_3plus_90d", cfg.Points("metadata", "flag_changes_3plus_90d"))
	} else if in.FlagChangeCount90d >= 1 {
		b.set("flag_hopping", cfg.Points("metadata", "flag_hopping"))
	}
}

func applyWatchlistSignal(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("watchlist") || !in.WatchlistMatch {
		return
	}
	b.set("watchlist_match", cfg.Points("watchlist", "match"))
}

func applyDarkZoneSignal(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("dark_zone") || !in.Gap.InDarkZone {
		return
	}
	if in.DarkZone.OtherDarkVesselCount != nil && *in.DarkZone.OtherDarkVesselCount <= 2 && !in.DarkZone.AllSameSource {
		b.set("selective_dark_zone_evasion", cfg.Points("dark_zone", "selective_dark_zone_evasion"))
		return
	}
	b.set("dark_zone_deduction", cfg.Points("dark_zone", "dark_zone_deduction"))
}

func applyBehavioralSignals(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if cfg.SectionEnabled("at_sea_operations") && in.AtSeaNoPortCallDays > 0 {
		key := "at_sea_no_port_call"
		b.set(key, cfg.Points("at_sea_operations", key))
	}
	if cfg.SectionEnabled("ism_continuity") && in.ISMContinuityBreak {
		b.set("ism_continuity_break", cfg.Points("ism_continuity", "ism_continuity_break"))
	}
	if cfg.SectionEnabled("rename_velocity") && in.RenameCount90d >= 2 {
		b.set("rename_velocity_high", cfg.Points("rename_velocity", "high"))
	}
	if cfg.SectionEnabled("destination") {
		for _, a := range in.SpoofingAnomalies {
			if a.Type == models.SpoofDestinationDeviation {
				b.set("destination_deviation", cfg.Points("destination", "deviation"))
				break
			}
		}
	}
}

func applyRegistrySignals(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if cfg.SectionEnabled("fraudulent_registry") && in.RegistryFraudTier != "" {
		key := "fraudulent_registry_" + in.RegistryFraudTier
		b.set(key, cfg.Points("fraudulent_registry", in.RegistryFraudTier))
	}
	if cfg.SectionEnabled("scrapped_registry") && in.ScrappedIMOReuse {
		b.set("scrapped_registry_reuse", cfg.Points("scrapped_registry", "reuse"))
	}
	if cfg.SectionEnabled("pi_validation") && in.PIStatus == models.PIStatusFraudulent {
		b.set("pi_fraudulent", cfg.Points("pi_validation", "fraudulent"))
	}
}

func applyOwnershipGraphSignals(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("ownership_graph") {
		return
	}
	for _, flag := range in.OwnershipGraphFlags {
		if points := cfg.Points("ownership_graph", flag); points != 0 {
			b.set("ownership_graph_"+flag, points)
		}
	}
}

func applyVesselAgeSignal(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("vessel_age") || in.Vessel.YearBuilt == 0 {
		return
	}
	scoringYear := in.ScoringDate
	if scoringYear.IsZero() {
		scoringYear = time.Unix(0, 0).UTC()
	}
	age := scoringYear.Year() - in.Vessel.YearBuilt
	if age < youngVesselAgeYears {
		b.set("vessel_age_under_25", cfg.Points("vessel_age", "under_25"))
	} else {
		b.set("vessel_age_25_plus", cfg.Points("vessel_age", "25_plus"))
	}
}

func applyLegitimacyDeductions(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("legitimacy") {
		return
	}
	if in.Vessel.FlagRisk == models.FlagRiskLow {
		b.set("low_risk_flag", cfg.Points("legitimacy", "low_risk_flag"))
	}
	if in.PSCCleanRecord {
		b.set("psc_clean_record", cfg.Points("legitimacy", "psc_clean_record"))
	}
	if cfg.SectionEnabled("pi_insurance") && in.PIStatus == models.PIStatusCovered {
		b.set("pi_insurance_covered", cfg.Points("pi_insurance", "covered"))
	}
	if in.IGPIClubMember {
		b.set("ig_pi_club_member", cfg.Points("legitimacy", "ig_pi_club_member"))
	}
	if in.TradingHistoryYears >= 10 {
		b.set("long_trading_history", cfg.Points("legitimacy", "long_trading_history"))
	}
}

// applyVoyageCycleGate fires voyage_cycle_pattern only when the breakdown
// already contains at least one Russian-port signal AND an STS signal AND
// a gap-frequency signal (§4.3 "Voyage-cycle").
func applyVoyageCycleGate(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("behavioral") || !in.RussianPortSignal {
		return
	}
	if !b.hasPrefix("sts_event_") || !b.hasPrefix("gap_frequency_") {
		return
	}
	b.set("voyage_cycle_pattern", cfg.Points("behavioral", "voyage_cycle_pattern"))
}

// applyReactivationGate fires gap_reactivation_in_jamming_zone only if
// another non-structural signal (STS, spoofing, metadata) is already
// present, never from gap_duration alone (§4.3 "Reactivation", prevents
// self-amplification).
func applyReactivationGate(cfg *config.ScoringConfig, in Input, b *breakdown) {
	if !cfg.SectionEnabled("dark_zone") || in.Corridor == nil || !in.Corridor.IsJammingZone {
		return
	}
	if !in.Gap.InDarkZone {
		return
	}
	hasNonStructural := b.hasPrefix("sts_event_") || len(in.SpoofingAnomalies) > 0 ||
		b.has("high_risk_flag") || b.has("flag_changes_3plus_90d") || b.has("flag_hopping")
	if !hasNonStructural {
		return
	}
	b.set("gap_reactivation_in_jamming_zone", cfg.Points("dark_zone", "gap_reactivation_in_jamming_zone"))
}
