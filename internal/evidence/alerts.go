package evidence

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radiancefleet/core/internal/confidence"
	"github.com/radiancefleet/core/internal/obs"
	"github.com/radiancefleet/core/pkg/models"
)

// WebhookEndpoint is a registered alert receiver, Slack/PagerDuty/SIEM
// compatible. Grounded directly on the teacher's
// internal/heuristics/alert_system.go WebhookEndpoint.
type WebhookEndpoint struct {
	Name        string
	URL         string
	Enabled     bool
	Headers     map[string]string
	MinSeverity string // matches confidence.Level, lowercased
}

var severityRank = map[string]int{
	"none": 0, "low": 1, "medium": 2, "high": 3, "confirmed": 4,
}

func meetsThreshold(severity, minimum string) bool {
	return severityRank[severity] >= severityRank[minimum]
}

// AlertManager fans a MEDIUM-or-higher classification out to registered
// webhooks and keeps a bounded in-memory history for a live feed, the same
// shape as the teacher's AlertManager generalized from CoinJoin threat
// assessments to vessel risk classifications.
type AlertManager struct {
	mu         sync.RWMutex
	webhooks   []WebhookEndpoint
	history    []models.FleetAlert
	maxHistory int
	httpClient *http.Client
}

// NewAlertManager constructs an AlertManager with a bounded history,
// matching the teacher's maxHistory=1000 default.
func NewAlertManager() *AlertManager {
	return &AlertManager{
		maxHistory: 1000,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// RegisterWebhook adds a receiver; only alerts at or above minSeverity are
// delivered to it.
func (am *AlertManager) RegisterWebhook(name, url, minSeverity string, headers map[string]string) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.webhooks = append(am.webhooks, WebhookEndpoint{
		Name: name, URL: url, Enabled: true, Headers: headers, MinSeverity: minSeverity,
	})
}

// EmitFromClassification builds and distributes a FleetAlert from a
// confidence classification, skipping NONE and LOW entirely: only
// MEDIUM and above warrant pushing to a live feed, mirroring the
// teacher's "don't alert on info-level" cutoff.
func (am *AlertManager) EmitFromClassification(ctx context.Context, vesselID int64, mmsi string, level confidence.Level, riskScore int, title, description string, now time.Time) {
	if level == confidence.LevelNone || level == confidence.LevelLow {
		return
	}

	alert := models.FleetAlert{
		ID:           uuid.NewString(),
		TimestampUTC: now,
		Severity:     severityFromLevel(level),
		AlertType:    "risk_classification",
		Title:        title,
		Description:  description,
		VesselID:     vesselID,
		RiskScore:    riskScore,
	}
	am.emit(ctx, alert)
}

func severityFromLevel(level confidence.Level) string {
	switch level {
	case confidence.LevelConfirmed:
		return "confirmed"
	case confidence.LevelHigh:
		return "high"
	case confidence.LevelMedium:
		return "medium"
	case confidence.LevelLow:
		return "low"
	default:
		return "none"
	}
}

func (am *AlertManager) emit(ctx context.Context, alert models.FleetAlert) {
	am.mu.Lock()
	am.history = append(am.history, alert)
	if len(am.history) > am.maxHistory {
		am.history = am.history[len(am.history)-am.maxHistory:]
	}
	webhooks := append([]WebhookEndpoint(nil), am.webhooks...)
	am.mu.Unlock()

	for _, wh := range webhooks {
		if !wh.Enabled || !meetsThreshold(alert.Severity, wh.MinSeverity) {
			continue
		}
		go am.sendWebhook(ctx, wh, alert)
	}

	obs.From(ctx).Info("fleet alert emitted",
		zap.String("severity", alert.Severity), zap.String("alert_type", alert.AlertType),
		zap.Int64("vessel_id", alert.VesselID), zap.Int("risk_score", alert.RiskScore))
}

func (am *AlertManager) sendWebhook(ctx context.Context, wh WebhookEndpoint, alert models.FleetAlert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		obs.From(ctx).Warn("failed to marshal alert", zap.String("webhook", wh.Name), zap.Error(err))
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(payload))
	if err != nil {
		obs.From(ctx).Warn("failed to build webhook request", zap.String("webhook", wh.Name), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range wh.Headers {
		req.Header.Set(k, v)
	}
	resp, err := am.httpClient.Do(req)
	if err != nil {
		obs.From(ctx).Warn("failed to deliver webhook", zap.String("webhook", wh.Name), zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		obs.From(ctx).Warn("webhook receiver returned error status",
			zap.String("webhook", wh.Name), zap.Int("status", resp.StatusCode))
	}
}

// RecentAlerts returns up to limit of the most recently emitted alerts,
// most recent first.
func (am *AlertManager) RecentAlerts(limit int) []models.FleetAlert {
	am.mu.RLock()
	defer am.mu.RUnlock()
	if limit <= 0 || limit > len(am.history) {
		limit = len(am.history)
	}
	out := make([]models.FleetAlert, limit)
	for i := 0; i < limit; i++ {
		out[i] = am.history[len(am.history)-1-i]
	}
	return out
}
