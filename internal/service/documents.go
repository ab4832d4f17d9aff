package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"
)

// Cache keys for child lists loaded per parent.
func incomesKey(periodID string) string { return "incomes:" + periodID }
func outcomesKey(periodID string) string { return "outcomes:" + periodID }
func groupOutcomesKey(groupID string) string { return "group_outcomes:" + groupID }

func toData(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// fromDocument decodes doc into T. The document id wins over any id field in the data.
func fromDocument[T any](doc port.Document) (T, error) {
	var v T
	data := make(map[string]any, len(doc.Data)+1)
	for k, val := range doc.Data {
		data[k] = val
	}
	data["id"] = doc.ID

	raw, err := json.Marshal(data)
	if err != nil {
		return v, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode document %s: %w", doc.ID, err)
	}
	return v, nil
}

// repo is the per-collection CRUD every service builds on. Documents of other
// owners are reported as not found.
type repo[T any] struct {
	store      port.DocumentStore
	collection string
	resource   string
	clearable  map[string]bool
}

func newRepo[T any](store port.DocumentStore, collection, resource string) repo[T] {
	return repo[T]{store: store, collection: collection, resource: resource}
}

// clearing returns r allowing merge to drop the given optional fields.
func (r repo[T]) clearing(fields ...string) repo[T] {
	r.clearable = make(map[string]bool, len(fields))
	for _, f := range fields {
		r.clearable[f] = true
	}
	return r
}

func (r repo[T]) newID() string {
	return r.store.Ref(r.collection, "").ID
}

func (r repo[T]) load(ctx context.Context, id, userID string) (port.Document, error) {
	if id == "" {
		return port.Document{}, &domain.ErrValidation{Field: "id", Message: "is required"}
	}
	doc, err := r.store.Get(ctx, r.store.Ref(r.collection, id))
	if err != nil {
		return port.Document{}, fmt.Errorf("get %s: %w", r.resource, err)
	}
	if !doc.Exists || ownerOf(doc) != userID {
		return port.Document{}, &domain.ErrNotFound{Resource: r.resource, ID: id}
	}
	return doc, nil
}

func (r repo[T]) get(ctx context.Context, id, userID string) (T, error) {
	doc, err := r.load(ctx, id, userID)
	if err != nil {
		var zero T
		return zero, err
	}
	return fromDocument[T](doc)
}

// list returns the documents with field == value that belong to userID.
func (r repo[T]) list(ctx context.Context, field, value, userID string) ([]T, error) {
	docs, err := r.store.QueryByEquality(ctx, r.collection, field, value)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", r.resource, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		if ownerOf(doc) != userID {
			continue
		}
		v, err := fromDocument[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r repo[T]) put(ctx context.Context, id string, v T) error {
	data, err := toData(v)
	if err != nil {
		return err
	}
	b := r.store.NewBatch()
	b.Set(r.store.Ref(r.collection, id), data)
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("write %s: %w", r.resource, err)
	}
	return nil
}

// merge overlays v on the stored fields, so fields v omits keep their value.
// Fields named in unset are dropped instead, when the repo allows clearing
// them and v does not set them.
func (r repo[T]) merge(ctx context.Context, existing port.Document, v T, unset []string) (T, error) {
	var zero T
	patch, err := toData(v)
	if err != nil {
		return zero, err
	}
	merged := make(map[string]any, len(existing.Data)+len(patch))
	for k, val := range existing.Data {
		merged[k] = val
	}
	for k, val := range patch {
		merged[k] = val
	}
	for _, f := range unset {
		if _, set := patch[f]; r.clearable[f] && !set {
			delete(merged, f)
		}
	}

	b := r.store.NewBatch()
	b.Set(r.store.Ref(r.collection, existing.ID), merged)
	if err := b.Commit(ctx); err != nil {
		return zero, fmt.Errorf("update %s: %w", r.resource, err)
	}
	return fromDocument[T](port.Document{ID: existing.ID, Exists: true, Data: merged})
}

func (r repo[T]) remove(ctx context.Context, id string) error {
	b := r.store.NewBatch()
	b.Delete(r.store.Ref(r.collection, id))
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("delete %s: %w", r.resource, err)
	}
	return nil
}

func ownerOf(doc port.Document) string {
	v, _ := doc.Data[domain.FieldUserID].(string)
	return v
}

// storeGroupOutcomes fetches group templates straight from the store.
type storeGroupOutcomes struct {
	store port.DocumentStore
}

// NewStoreGroupOutcomes returns a GroupOutcomeFetcher querying the groupOutcomes collection.
func NewStoreGroupOutcomes(store port.DocumentStore) port.GroupOutcomeFetcher {
	return storeGroupOutcomes{store: store}
}

func (f storeGroupOutcomes) GroupOutcomes(ctx context.Context, groupID string) ([]domain.Outcome, error) {
	docs, err := f.store.QueryByEquality(ctx, domain.CollectionGroupOutcomes, domain.FieldGroupID, groupID)
	if err != nil {
		return nil, fmt.Errorf("fetch group outcomes: %w", err)
	}
	out := make([]domain.Outcome, 0, len(docs))
	for _, doc := range docs {
		o, err := fromDocument[domain.Outcome](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
