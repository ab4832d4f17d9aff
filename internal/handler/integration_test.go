package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/handler"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/sqlstore"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// TestIntegration_FullFlow drives the whole API over a SQLite store.
func TestIntegration_FullFlow(t *testing.T) {
	// --- Build service ---
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "flow.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c := cache.New[any](5 * time.Minute)
	t.Cleanup(c.Stop)

	pub := &recordingPublisher{}
	status := service.NewStatusBoard(logger)
	coord := service.NewCoordinator(store, service.NewStoreGroupOutcomes(store), pub, metrics, logger)
	tokens := service.NewTokenVerifier("integration-secret", "tracker")

	router := handler.NewRouter(handler.Deps{
		Store:   store,
		Periods: service.NewPeriodService(store, coord, c, status, metrics, logger),
		Groups:  service.NewOutcomeGroupService(store, coord, c, status, metrics, logger),
		Lookups: service.NewLookupService(store, status, logger),
		Status:  status,
		Tokens:  tokens,
		Metrics: metrics,
	}, logger)

	token, err := tokens.SignAccessToken("user-integration", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	call := func(method, path string, body any, out any) int {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if out != nil {
			var res struct {
				Entity json.RawMessage `json:"entity"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
				t.Fatalf("%s %s: decode: %v", method, path, err)
			}
			json.Unmarshal(res.Entity, out)
		}
		return rec.Code
	}

	// --- Execute requests ---
	var period domain.Period
	if code := call(http.MethodPost, "/v1/periods", map[string]any{
		"name": "August", "from": "2024-08-01T00:00:00Z", "to": "2024-08-31T00:00:00Z",
	}, &period); code != http.StatusOK {
		t.Fatalf("create period: %d", code)
	}
	base := "/v1/periods/" + period.ID

	call(http.MethodPost, base+"/incomes", map[string]any{"amount": "1000", "description": "salary"}, nil)
	call(http.MethodPost, base+"/incomes", map[string]any{"amount": "250", "description": "freelance"}, nil)
	call(http.MethodPost, base+"/outcomes", map[string]any{"amount": "300", "description": "rent"}, nil)

	var group domain.OutcomeGroup
	call(http.MethodPost, "/v1/outcome-groups", map[string]any{"name": "subscriptions"}, &group)
	call(http.MethodPost, "/v1/outcome-groups/"+group.ID+"/outcomes", map[string]any{"amount": "10", "description": "music"}, nil)
	call(http.MethodPost, "/v1/outcome-groups/"+group.ID+"/outcomes", map[string]any{"amount": "20", "description": "video"}, nil)

	var applied []domain.Outcome
	if code := call(http.MethodPost, base+"/outcome-groups/"+group.ID+"/apply", nil, &applied); code != http.StatusOK {
		t.Fatalf("apply: %d", code)
	}
	for _, o := range applied {
		if o.PeriodID != period.ID || o.State != domain.OutcomePending || o.Date == nil || !o.Date.Equal(period.To) {
			t.Errorf("unexpected applied outcome %+v", o)
		}
	}

	var outcomes []domain.Outcome
	call(http.MethodGet, base+"/outcomes", nil, &outcomes)
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes after apply, got %d", len(outcomes))
	}

	var summary domain.PeriodSummary
	call(http.MethodGet, base+"/summary", nil, &summary)
	if summary.Balance.String() != "920" {
		t.Errorf("expected balance 920, got %s", summary.Balance)
	}

	if code := call(http.MethodDelete, base, nil, nil); code != http.StatusOK {
		t.Fatalf("delete period: %d", code)
	}

	// --- Assertions ---
	for _, coll := range []struct{ name, field string }{{"incomes", "periodId"}, {"outcomes", "periodId"}} {
		docs, err := store.QueryByEquality(context.Background(), coll.name, coll.field, period.ID)
		if err != nil {
			t.Fatalf("query %s: %v", coll.name, err)
		}
		if len(docs) != 0 {
			t.Errorf("expected no %s left, got %d", coll.name, len(docs))
		}
	}

	var templates []domain.Outcome
	call(http.MethodGet, "/v1/outcome-groups/"+group.ID+"/outcomes", nil, &templates)
	if len(templates) != 2 {
		t.Errorf("expected group templates to survive, got %d", len(templates))
	}

	types := pub.types()
	if len(types) != 2 || types[0] != domain.EventOutcomesMaterialized || types[1] != domain.EventAggregateDeleted {
		t.Errorf("unexpected events %v", types)
	}

	snap := metrics.GetCoordinatorSnapshot()
	if snap.BatchesCommitted != 2 || snap.EventsPublished != 2 {
		t.Errorf("unexpected coordinator metrics %+v", snap)
	}
}
