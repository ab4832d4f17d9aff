// Package supabase provides a document store backed by Supabase (PostgREST).
// Documents live in the `documents` table; batches go through the
// commit_document_batch RPC so they run in a single Postgres transaction.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

const (
	documentsTable = "documents"
	commitRPC      = "rpc/commit_document_batch"
	serviceName    = "supabase"
)

// Client wraps HTTP calls to Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	bulkhead       *resilience.Bulkhead
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		bulkhead:       resilience.NewBulkhead(cfg.MaxConcurrency),
		logger:         logger,
	}
}

// documentRow maps the documents table columns.
type documentRow struct {
	Collection string          `json:"collection,omitempty"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
}

func (r documentRow) toDocument() (port.Document, error) {
	var data map[string]any
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return port.Document{}, fmt.Errorf("decode document %s: %w", r.ID, err)
	}
	return port.Document{ID: r.ID, Exists: true, Data: data}, nil
}

// call runs fn inside the bulkhead, circuit breaker and retry loop.
func call[T any](ctx context.Context, c *Client, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		var zero T
		return zero, &domain.ErrTimeout{Operation: serviceName}
	}
	defer c.bulkhead.Release()

	return resilience.Execute(ctx, c.cb, c.cfg, serviceName, fn)
}

// Get reads one document.
func (c *Client) Get(ctx context.Context, ref port.DocRef) (port.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Get")
	defer span.End()
	span.SetAttributes(attribute.String("collection", ref.Collection), attribute.String("doc.id", ref.ID))

	return call(ctx, c, func(ctx context.Context) (port.Document, error) {
		path := fmt.Sprintf("%s?select=id,data&collection=eq.%s&id=eq.%s&limit=1",
			documentsTable, url.QueryEscape(ref.Collection), url.QueryEscape(ref.ID))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return port.Document{}, err
		}
		if body == nil || string(body) == "[]" {
			return port.Document{ID: ref.ID}, nil
		}

		var rows []documentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return port.Document{}, resilience.Permanent(fmt.Errorf("failed to decode document: %w", err))
		}
		if len(rows) == 0 {
			return port.Document{ID: ref.ID}, nil
		}
		return rows[0].toDocument()
	})
}

// QueryByEquality filters on a top-level JSON field of data.
func (c *Client) QueryByEquality(ctx context.Context, collection, field, value string) ([]port.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.QueryByEquality")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("field", field))

	return call(ctx, c, func(ctx context.Context) ([]port.Document, error) {
		path := fmt.Sprintf("%s?select=id,data&collection=eq.%s&data->>%s=eq.%s&order=id.asc",
			documentsTable, url.QueryEscape(collection), url.QueryEscape(field), url.QueryEscape(value))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}

		docs := make([]port.Document, 0)
		if body == nil || string(body) == "[]" {
			return docs, nil
		}

		var rows []documentRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, resilience.Permanent(fmt.Errorf("failed to decode documents: %w", err))
		}
		for _, r := range rows {
			d, err := r.toDocument()
			if err != nil {
				return nil, resilience.Permanent(err)
			}
			docs = append(docs, d)
		}
		return docs, nil
	})
}

// Ref builds a reference, generating an id when none is given.
func (c *Client) Ref(collection, id string) port.DocRef {
	if id == "" {
		id = uuid.NewString()
	}
	return port.DocRef{Collection: collection, ID: id}
}

// NewBatch starts a batch.
func (c *Client) NewBatch() port.Batch {
	return &batch{client: c}
}

// Ping issues a cheap read against the documents table.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, documentsTable+"?select=id&limit=1", nil)
	if err != nil {
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	return nil
}

type batchOp struct {
	Op         string         `json:"op"`
	Collection string         `json:"collection"`
	ID         string         `json:"id"`
	Data       map[string]any `json:"data,omitempty"`
}

type batch struct {
	client    *Client
	ops       []batchOp
	committed bool
}

func (b *batch) Set(ref port.DocRef, data map[string]any) {
	b.ops = append(b.ops, batchOp{Op: "set", Collection: ref.Collection, ID: ref.ID, Data: data})
}

func (b *batch) Delete(ref port.DocRef) {
	b.ops = append(b.ops, batchOp{Op: "delete", Collection: ref.Collection, ID: ref.ID})
}

func (b *batch) Len() int {
	return len(b.ops)
}

// Commit posts every operation to the RPC in one request. Retrying is safe:
// ids are fixed client-side, sets are upserts and deletes are idempotent.
func (b *batch) Commit(ctx context.Context) error {
	if b.committed {
		return port.ErrBatchCommitted
	}
	b.committed = true

	c := b.client
	ctx, span := tracer.Start(ctx, "Supabase.Commit")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(b.ops)))

	payload := map[string]any{"ops": b.ops}
	_, err := call(ctx, c, func(ctx context.Context) ([]byte, error) {
		return c.doPost(ctx, commitRPC, payload)
	})
	return err
}
