package evidence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiancefleet/core/internal/confidence"
)

func TestMeetsThreshold(t *testing.T) {
	assert.True(t, meetsThreshold("high", "medium"))
	assert.True(t, meetsThreshold("medium", "medium"))
	assert.False(t, meetsThreshold("low", "medium"))
}

func TestEmitFromClassification_SkipsNoneAndLow(t *testing.T) {
	am := NewAlertManager()
	am.EmitFromClassification(context.Background(), 1, "111111111", confidence.LevelNone, 10, "t", "d", time.Now())
	am.EmitFromClassification(context.Background(), 1, "111111111", confidence.LevelLow, 30, "t", "d", time.Now())
	assert.Empty(t, am.RecentAlerts(10))
}

func TestEmitFromClassification_RecordsMediumAndAbove(t *testing.T) {
	am := NewAlertManager()
	am.EmitFromClassification(context.Background(), 1, "111111111", confidence.LevelMedium, 55, "t", "d", time.Now())
	am.EmitFromClassification(context.Background(), 2, "222222222", confidence.LevelConfirmed, 100, "t2", "d2", time.Now())
	recent := am.RecentAlerts(10)
	require.Len(t, recent, 2)
	assert.Equal(t, "confirmed", recent[0].Severity)
	assert.Equal(t, "medium", recent[1].Severity)
}

func TestAlertManager_WebhookBelowThresholdNotDelivered(t *testing.T) {
	delivered := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered <- struct{}{}
	}))
	defer server.Close()

	am := NewAlertManager()
	am.RegisterWebhook("strict", server.URL, "high", nil)
	am.EmitFromClassification(context.Background(), 1, "111111111", confidence.LevelMedium, 55, "t", "d", time.Now())

	select {
	case <-delivered:
		t.Fatal("webhook should not have fired below its minimum severity")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRecentAlerts_MostRecentFirstAndLimited(t *testing.T) {
	am := NewAlertManager()
	for i := 0; i < 5; i++ {
		am.EmitFromClassification(context.Background(), int64(i), "", confidence.LevelHigh, 80, "t", "d", time.Now())
	}
	recent := am.RecentAlerts(2)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(4), recent[0].VesselID)
	assert.Equal(t, int64(3), recent[1].VesselID)
}
