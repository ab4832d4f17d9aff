package observability_test

import (
	"testing"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"

	"go.uber.org/zap/zapcore"
)

func TestCoordinatorSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrRequest("success")
	m.IncrRequest("success")
	m.IncrRequest("success")
	m.IncrRequest("error")
	m.IncrChildResolution(observability.SourceCache)
	m.IncrChildResolution(observability.SourceQuery)
	m.ObserveBatch(3)
	m.ObserveBatch(5)
	m.IncrStoreError("sqlite")
	m.IncrStoreError("supabase")
	m.IncrEventPublished(true)
	m.IncrEventPublished(false)

	snap := m.GetCoordinatorSnapshot()

	if snap.TotalRequests != 4 {
		t.Errorf("expected 4 requests, got %d", snap.TotalRequests)
	}
	if snap.ErrorRate != 0.25 {
		t.Errorf("expected error rate 0.25, got %f", snap.ErrorRate)
	}
	if snap.CacheHitRate != 0.5 {
		t.Errorf("expected cache hit rate 0.5, got %f", snap.CacheHitRate)
	}
	if snap.BatchesCommitted != 2 || snap.DocumentsWritten != 8 {
		t.Errorf("expected 2 batches / 8 docs, got %d / %d", snap.BatchesCommitted, snap.DocumentsWritten)
	}
	if snap.StoreErrors != 2 {
		t.Errorf("expected 2 store errors, got %d", snap.StoreErrors)
	}
	if snap.EventsPublished != 1 || snap.EventPublishErrors != 1 {
		t.Errorf("expected 1/1 events, got %d/%d", snap.EventsPublished, snap.EventPublishErrors)
	}
}

func TestCoordinatorSnapshot_Empty(t *testing.T) {
	snap := observability.NewMetrics().GetCoordinatorSnapshot()
	if snap.TotalRequests != 0 || snap.ErrorRate != 0 || snap.CacheHitRate != 0 {
		t.Errorf("expected zero snapshot, got %+v", snap)
	}
}

func TestNewLogger_UnknownLevelFallsBack(t *testing.T) {
	logger := observability.NewLogger("loud", "tracker")
	if logger == nil {
		t.Fatal("expected logger")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("expected info to be enabled")
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug to be disabled")
	}
}
