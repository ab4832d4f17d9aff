// Package memstore is an in-memory DocumentStore. Documents are kept as JSON
// so readers never share maps with writers, and a batch is applied to a copy
// of the touched collections that is swapped in only when every write encoded.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"github.com/google/uuid"
)

// Store implements port.DocumentStore in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage
}

// New creates an empty store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]json.RawMessage)}
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, ref port.DocRef) (port.Document, error) {
	if err := ctx.Err(); err != nil {
		return port.Document{}, err
	}

	s.mu.RLock()
	raw, ok := s.collections[ref.Collection][ref.ID]
	s.mu.RUnlock()

	if !ok {
		return port.Document{ID: ref.ID}, nil
	}
	data, err := decode(raw)
	if err != nil {
		return port.Document{}, err
	}
	return port.Document{ID: ref.ID, Exists: true, Data: data}, nil
}

// QueryByEquality returns matching documents ordered by id.
func (s *Store) QueryByEquality(ctx context.Context, collection, field, value string) ([]port.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]port.Document, 0)
	for _, id := range ids {
		data, err := decode(s.collections[collection][id])
		if err != nil {
			return nil, err
		}
		if v, ok := data[field].(string); ok && v == value {
			docs = append(docs, port.Document{ID: id, Exists: true, Data: data})
		}
	}
	return docs, nil
}

// Ref builds a reference, generating an id when none is given.
func (s *Store) Ref(collection, id string) port.DocRef {
	if id == "" {
		id = uuid.NewString()
	}
	return port.DocRef{Collection: collection, ID: id}
}

// NewBatch starts a batch.
func (s *Store) NewBatch() port.Batch {
	return &batch{store: s}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Count returns the number of documents in a collection.
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

type op struct {
	ref    port.DocRef
	data   map[string]any
	delete bool
}

type batch struct {
	store     *Store
	ops       []op
	committed bool
}

func (b *batch) Set(ref port.DocRef, data map[string]any) {
	b.ops = append(b.ops, op{ref: ref, data: data})
}

func (b *batch) Delete(ref port.DocRef) {
	b.ops = append(b.ops, op{ref: ref, delete: true})
}

func (b *batch) Len() int {
	return len(b.ops)
}

// Commit encodes every write first, then swaps the touched collections in
// under a single lock. Nothing is visible if any step fails.
func (b *batch) Commit(ctx context.Context) error {
	if b.committed {
		return port.ErrBatchCommitted
	}
	b.committed = true

	if err := ctx.Err(); err != nil {
		return &domain.ErrExternalService{Service: "memstore", Err: err}
	}

	encoded := make([]json.RawMessage, len(b.ops))
	for i, o := range b.ops {
		if o.delete {
			continue
		}
		raw, err := json.Marshal(o.data)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", o.ref.Collection, o.ref.ID, err)
		}
		encoded[i] = raw
	}

	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]map[string]json.RawMessage)
	for i, o := range b.ops {
		coll, ok := staged[o.ref.Collection]
		if !ok {
			coll = cloneCollection(s.collections[o.ref.Collection])
			staged[o.ref.Collection] = coll
		}
		if o.delete {
			delete(coll, o.ref.ID)
			continue
		}
		coll[o.ref.ID] = encoded[i]
	}
	for name, coll := range staged {
		s.collections[name] = coll
	}
	return nil
}

func cloneCollection(src map[string]json.RawMessage) map[string]json.RawMessage {
	dst := make(map[string]json.RawMessage, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func decode(raw json.RawMessage) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}
