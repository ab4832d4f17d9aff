package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var coordTracer = otel.Tracer("service/coordinator")

// ChildRef is the part of a cached child the coordinator needs.
type ChildRef struct {
	ID       string
	ParentID string
}

// ChildSpec names one child collection of an aggregate. Children are the
// documents of Collection whose FilterField equals FilterValue. Cached holds
// whatever the caller already has loaded; it may be empty.
type ChildSpec struct {
	Collection  string
	FilterField string
	FilterValue string
	Cached      []ChildRef
}

// Coordinator performs the multi-document mutations of the tracker. Each
// operation ends in exactly one batch commit, so either every write lands or
// none does.
type Coordinator struct {
	store     port.DocumentStore
	fetcher   port.GroupOutcomeFetcher
	publisher port.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewCoordinator wires a coordinator. publisher may be nil.
func NewCoordinator(
	store port.DocumentStore,
	fetcher port.GroupOutcomeFetcher,
	publisher port.EventPublisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		store:     store,
		fetcher:   fetcher,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// DeleteAggregateWithChildren deletes parentID from parentCollection together
// with every child named by specs, in one batch. It returns parentID.
// Deleting an aggregate that does not exist succeeds.
func (c *Coordinator) DeleteAggregateWithChildren(ctx context.Context, parentCollection, parentID string, specs []ChildSpec) (string, error) {
	ctx, span := coordTracer.Start(ctx, "Coordinator.DeleteAggregateWithChildren")
	defer span.End()
	span.SetAttributes(
		attribute.String("parent.collection", parentCollection),
		attribute.String("parent.id", parentID),
		attribute.Int("child.specs", len(specs)),
	)

	start := time.Now()
	defer func() { c.metrics.RecordRequestDuration("delete_aggregate", time.Since(start)) }()

	if parentID == "" {
		return "", c.failed(&domain.ErrValidation{Field: "id", Message: "is required"})
	}

	resolved := make([][]string, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range specs {
		g.Go(func() error {
			ids, err := c.resolveChildIDs(gctx, spec)
			if err != nil {
				return fmt.Errorf("resolve %s children: %w", spec.Collection, err)
			}
			resolved[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", c.failed(err)
	}

	batch := c.store.NewBatch()
	children := make(map[string][]string, len(specs))
	for i, spec := range specs {
		for _, id := range resolved[i] {
			batch.Delete(c.store.Ref(spec.Collection, id))
		}
		children[spec.Collection] = append(children[spec.Collection], resolved[i]...)
	}
	batch.Delete(c.store.Ref(parentCollection, parentID))

	writes := batch.Len()
	if err := batch.Commit(ctx); err != nil {
		return "", c.failed(fmt.Errorf("commit delete of %s/%s: %w", parentCollection, parentID, err))
	}
	c.metrics.ObserveBatch(writes)
	c.metrics.IncrRequest("success")

	c.logger.Info("aggregate deleted",
		zap.String("collection", parentCollection),
		zap.String("id", parentID),
		zap.Int("documents", writes),
	)

	c.publish(ctx, domain.NewEvent(
		domain.WithType(domain.EventAggregateDeleted),
		domain.WithData(domain.AggregateDeleted{Collection: parentCollection, ID: parentID, Children: children}),
	))
	return parentID, nil
}

// MaterializeGroupOutcomesIntoPeriod copies every template outcome of groupID
// into periodID. Copies get a fresh id, the period's end date and the pending
// state. cached is used when it holds outcomes of the group; otherwise the
// templates are fetched. Applying the same group twice creates two sets of copies.
func (c *Coordinator) MaterializeGroupOutcomesIntoPeriod(ctx context.Context, periodID, groupID string, cached []domain.Outcome) ([]domain.Outcome, error) {
	ctx, span := coordTracer.Start(ctx, "Coordinator.MaterializeGroupOutcomesIntoPeriod")
	defer span.End()
	span.SetAttributes(
		attribute.String("period.id", periodID),
		attribute.String("group.id", groupID),
	)

	start := time.Now()
	defer func() { c.metrics.RecordRequestDuration("materialize_group", time.Since(start)) }()

	end, err := c.periodEnd(ctx, periodID)
	if err != nil {
		return nil, c.failed(err)
	}

	templates, source, err := resolveChildren(ctx, cached,
		func(o domain.Outcome) bool { return o.GroupID == groupID },
		func(ctx context.Context) ([]domain.Outcome, error) { return c.fetcher.GroupOutcomes(ctx, groupID) },
	)
	c.metrics.IncrChildResolution(source)
	if err != nil {
		return nil, c.failed(fmt.Errorf("load outcomes of group %s: %w", groupID, err))
	}

	created := make([]domain.Outcome, 0, len(templates))
	if len(templates) == 0 {
		c.metrics.IncrRequest("success")
		c.logger.Debug("group has no outcomes", zap.String("group_id", groupID))
		return created, nil
	}

	batch := c.store.NewBatch()
	for _, tmpl := range templates {
		o := tmpl
		o.ID = c.store.Ref(domain.CollectionOutcomes, "").ID
		o.PeriodID = periodID
		date := end
		o.Date = &date
		o.State = domain.OutcomePending

		data, err := toData(o)
		if err != nil {
			return nil, c.failed(err)
		}
		batch.Set(c.store.Ref(domain.CollectionOutcomes, o.ID), data)
		created = append(created, o)
	}

	writes := batch.Len()
	if err := batch.Commit(ctx); err != nil {
		return nil, c.failed(fmt.Errorf("commit outcomes of group %s into period %s: %w", groupID, periodID, err))
	}
	c.metrics.ObserveBatch(writes)
	c.metrics.IncrRequest("success")

	ids := make([]string, len(created))
	for i, o := range created {
		ids[i] = o.ID
	}
	c.logger.Info("group outcomes materialized",
		zap.String("period_id", periodID),
		zap.String("group_id", groupID),
		zap.Int("outcomes", len(created)),
		zap.String("source", source),
	)

	c.publish(ctx, domain.NewEvent(
		domain.WithType(domain.EventOutcomesMaterialized),
		domain.WithData(domain.OutcomesMaterialized{PeriodID: periodID, GroupID: groupID, OutcomeIDs: ids}),
	))
	return created, nil
}

func (c *Coordinator) periodEnd(ctx context.Context, periodID string) (time.Time, error) {
	if periodID == "" {
		return time.Time{}, &domain.ErrValidation{Field: "periodId", Message: "is required"}
	}
	doc, err := c.store.Get(ctx, c.store.Ref(domain.CollectionPeriods, periodID))
	if err != nil {
		return time.Time{}, fmt.Errorf("get period %s: %w", periodID, err)
	}
	if !doc.Exists {
		return time.Time{}, &domain.ErrNotFound{Resource: "period", ID: periodID}
	}
	period, err := fromDocument[domain.Period](doc)
	if err != nil {
		return time.Time{}, err
	}
	if period.To.IsZero() {
		return time.Time{}, &domain.ErrValidation{Field: "to", Message: "period has no end date"}
	}
	return period.To, nil
}

// resolveChildIDs lists the child ids of one spec.
func (c *Coordinator) resolveChildIDs(ctx context.Context, spec ChildSpec) ([]string, error) {
	refs, source, err := resolveChildren(ctx, spec.Cached,
		func(r ChildRef) bool { return r.ParentID == spec.FilterValue },
		func(ctx context.Context) ([]ChildRef, error) {
			docs, err := c.store.QueryByEquality(ctx, spec.Collection, spec.FilterField, spec.FilterValue)
			if err != nil {
				return nil, err
			}
			refs := make([]ChildRef, len(docs))
			for i, d := range docs {
				refs[i] = ChildRef{ID: d.ID, ParentID: spec.FilterValue}
			}
			return refs, nil
		},
	)
	c.metrics.IncrChildResolution(source)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids, nil
}

// resolveChildren returns the cached items that match, or the query result
// when none do.
func resolveChildren[T any](ctx context.Context, cached []T, match func(T) bool, query func(context.Context) ([]T, error)) ([]T, string, error) {
	var hits []T
	for _, item := range cached {
		if match(item) {
			hits = append(hits, item)
		}
	}
	if len(hits) > 0 {
		return hits, observability.SourceCache, nil
	}

	items, err := query(ctx)
	if err != nil {
		return nil, observability.SourceQuery, err
	}
	return items, observability.SourceQuery, nil
}

func (c *Coordinator) failed(err error) error {
	c.metrics.IncrRequest("error")
	var ext *domain.ErrExternalService
	if errors.As(err, &ext) {
		c.metrics.IncrStoreError(ext.Service)
	}
	c.logger.Warn("coordinator operation failed", zap.Error(err))
	return err
}

func (c *Coordinator) publish(ctx context.Context, event domain.Event) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.metrics.IncrEventPublished(false)
		c.logger.Warn("event publish failed",
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		return
	}
	c.metrics.IncrEventPublished(true)
}
