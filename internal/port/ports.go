// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"errors"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
)

// ErrBatchCommitted is returned when Commit is called on a batch twice.
var ErrBatchCommitted = errors.New("batch already committed")

// DocRef addresses one document.
type DocRef struct {
	Collection string
	ID         string
}

// Document is a stored document. Exists is false when Get found nothing.
type Document struct {
	ID     string
	Exists bool
	Data   map[string]any
}

// DocumentStore is the document database the tracker runs on.
type DocumentStore interface {
	// Get reads one document. A missing document is not an error.
	Get(ctx context.Context, ref DocRef) (Document, error)
	// QueryByEquality returns every document of collection whose field equals value.
	QueryByEquality(ctx context.Context, collection, field, value string) ([]Document, error)
	// Ref builds a reference. An empty id gets a fresh unique one.
	Ref(collection, id string) DocRef
	// NewBatch starts an atomic multi-document write.
	NewBatch() Batch
	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}

// Batch collects writes that Commit applies all together or not at all.
type Batch interface {
	Set(ref DocRef, data map[string]any)
	Delete(ref DocRef)
	Len() int
	Commit(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	// Generation and SetIfFresh let a reader refill a key without
	// overwriting a Delete that happened while it was loading.
	Generation() uint64
	SetIfFresh(key string, value T, gen uint64) bool
}

// EventPublisher ships committed domain events to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// GroupOutcomeFetcher loads the template outcomes of a group.
type GroupOutcomeFetcher interface {
	GroupOutcomes(ctx context.Context, groupID string) ([]domain.Outcome, error)
}
