package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/cache"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/sqlstore"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

// spyStore counts queries and commits, and can make either fail.
type spyStore struct {
	port.DocumentStore
	queries    atomic.Int32
	commits    atomic.Int32
	failCommit error
	failQuery  error
	gate       *queryGate
}

// queryGate holds the first query on one collection after it has read from
// the store, until release is closed.
type queryGate struct {
	collection string
	entered    chan struct{}
	release    chan struct{}
	once       sync.Once
}

func newQueryGate(collection string) *queryGate {
	return &queryGate{collection: collection, entered: make(chan struct{}), release: make(chan struct{})}
}

func (s *spyStore) QueryByEquality(ctx context.Context, collection, field, value string) ([]port.Document, error) {
	s.queries.Add(1)
	if s.failQuery != nil {
		return nil, s.failQuery
	}
	docs, err := s.DocumentStore.QueryByEquality(ctx, collection, field, value)
	if g := s.gate; g != nil && g.collection == collection {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	return docs, err
}

func (s *spyStore) NewBatch() port.Batch {
	return &spyBatch{Batch: s.DocumentStore.NewBatch(), store: s}
}

type spyBatch struct {
	port.Batch
	store *spyStore
}

func (b *spyBatch) Commit(ctx context.Context) error {
	b.store.commits.Add(1)
	if b.store.failCommit != nil {
		return b.store.failCommit
	}
	return b.Batch.Commit(ctx)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

var errTransport = &domain.ErrExternalService{Service: "test", Err: errors.New("connection reset")}

// --- Fixtures ---

type backend struct {
	name string
	open func(t *testing.T) port.DocumentStore
}

func backends() []backend {
	return []backend{
		{name: "memory", open: func(*testing.T) port.DocumentStore { return memstore.New() }},
		{name: "sqlite", open: func(t *testing.T) port.DocumentStore {
			t.Helper()
			s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite,
				filepath.Join(t.TempDir(), "tracker.db"), zap.NewNop())
			if err != nil {
				t.Fatalf("open sqlite: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

type fixture struct {
	store   *spyStore
	pub     *mockPublisher
	metrics *observability.Metrics
	coord   *service.Coordinator
	periods *service.PeriodService
	groups  *service.OutcomeGroupService
	lookups *service.LookupService
	status  *service.StatusBoard
}

func newFixture(t *testing.T, store port.DocumentStore) *fixture {
	t.Helper()
	spy := &spyStore{DocumentStore: store}
	pub := &mockPublisher{}
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	c := cache.New[any](5 * time.Minute)
	t.Cleanup(c.Stop)

	status := service.NewStatusBoard(logger)
	coord := service.NewCoordinator(spy, service.NewStoreGroupOutcomes(spy), pub, metrics, logger)
	return &fixture{
		store:   spy,
		pub:     pub,
		metrics: metrics,
		coord:   coord,
		status:  status,
		periods: service.NewPeriodService(spy, coord, c, status, metrics, logger),
		groups:  service.NewOutcomeGroupService(spy, coord, c, status, metrics, logger),
		lookups: service.NewLookupService(spy, status, logger),
	}
}

func seed(t *testing.T, store port.DocumentStore, collection, id string, data map[string]any) {
	t.Helper()
	b := store.NewBatch()
	b.Set(store.Ref(collection, id), data)
	if err := b.Commit(context.Background()); err != nil {
		t.Fatalf("seed %s/%s: %v", collection, id, err)
	}
}

func exists(t *testing.T, store port.DocumentStore, collection, id string) bool {
	t.Helper()
	doc, err := store.Get(context.Background(), store.Ref(collection, id))
	if err != nil {
		t.Fatalf("get %s/%s: %v", collection, id, err)
	}
	return doc.Exists
}

func count(t *testing.T, store port.DocumentStore, collection, field, value string) int {
	t.Helper()
	docs, err := store.QueryByEquality(context.Background(), collection, field, value)
	if err != nil {
		t.Fatalf("query %s: %v", collection, err)
	}
	return len(docs)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
