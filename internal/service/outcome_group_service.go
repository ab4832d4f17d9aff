package service

import (
	"context"
	"sort"
	"strings"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var groupTracer = otel.Tracer("service/outcome_group")

// OutcomeGroupService manages outcome groups, their template outcomes and
// applying a group to a period.
type OutcomeGroupService struct {
	coord    *Coordinator
	cache    port.Cache[any]
	status   *StatusBoard
	metrics  *observability.Metrics
	logger   *zap.Logger
	groups   repo[domain.OutcomeGroup]
	outcomes repo[domain.Outcome]
	periods  repo[domain.Period]
}

// NewOutcomeGroupService creates an outcome group service. cache should be the
// one the PeriodService uses so applied outcomes show up in period lists.
func NewOutcomeGroupService(
	store port.DocumentStore,
	coord *Coordinator,
	cache port.Cache[any],
	status *StatusBoard,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *OutcomeGroupService {
	return &OutcomeGroupService{
		coord:    coord,
		cache:    cache,
		status:   status,
		metrics:  metrics,
		logger:   logger,
		groups:   newRepo[domain.OutcomeGroup](store, domain.CollectionOutcomeGroups, "outcome group"),
		outcomes: newRepo[domain.Outcome](store, domain.CollectionGroupOutcomes, "group outcome").clearing(domain.FieldOutcomeDate),
		periods:  newRepo[domain.Period](store, domain.CollectionPeriods, "period"),
	}
}

// ============================================================
// Groups
// ============================================================

func (s *OutcomeGroupService) ListGroups(ctx context.Context, userID string) domain.Result[[]domain.OutcomeGroup] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.ListGroups")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	done := s.status.Track(userID, SliceOutcomeGroups, domain.ActionGetUserItems)
	groups, err := s.groups.list(ctx, domain.FieldUserID, userID, userID)
	if err == nil {
		sort.SliceStable(groups, func(i, j int) bool {
			return strings.ToLower(groups[i].Name) < strings.ToLower(groups[j].Name)
		})
	}
	return settle(done, groups, err)
}

func (s *OutcomeGroupService) GetGroup(ctx context.Context, userID, groupID string) domain.Result[domain.OutcomeGroup] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.GetGroup")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", groupID))

	done := s.status.Track(userID, SliceOutcomeGroups, domain.ActionGetUserItem)
	g, err := s.groups.get(ctx, groupID, userID)
	return settle(done, g, err)
}

func (s *OutcomeGroupService) AddGroup(ctx context.Context, userID string, g domain.OutcomeGroup) domain.Result[domain.OutcomeGroup] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.AddGroup")
	defer span.End()

	done := s.status.Track(userID, SliceOutcomeGroups, domain.ActionAdd)
	g.ID = s.groups.newID()
	g.UserID = userID
	if err := g.Validate(); err != nil {
		return settle(done, domain.OutcomeGroup{}, err)
	}
	err := s.groups.put(ctx, g.ID, g)
	return settle(done, g, err)
}

func (s *OutcomeGroupService) UpdateGroup(ctx context.Context, userID, groupID string, g domain.OutcomeGroup) domain.Result[domain.OutcomeGroup] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.UpdateGroup")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", groupID))

	done := s.status.Track(userID, SliceOutcomeGroups, domain.ActionUpdate)
	existing, err := s.groups.load(ctx, groupID, userID)
	if err != nil {
		return settle(done, domain.OutcomeGroup{}, err)
	}
	g.ID = groupID
	g.UserID = userID
	if err := g.Validate(); err != nil {
		return settle(done, domain.OutcomeGroup{}, err)
	}
	updated, err := s.groups.merge(ctx, existing, g, nil)
	return settle(done, updated, err)
}

// DeleteGroup removes the group and its template outcomes in one batch.
// Outcomes already applied to periods are kept.
func (s *OutcomeGroupService) DeleteGroup(ctx context.Context, userID, groupID string) domain.Result[string] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.DeleteGroup")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", groupID))

	done := s.status.Track(userID, SliceOutcomeGroups, domain.ActionDelete)
	if _, err := s.groups.load(ctx, groupID, userID); err != nil {
		return settleID(done, "", "", err)
	}

	specs := []ChildSpec{{
		Collection:  domain.CollectionGroupOutcomes,
		FilterField: domain.FieldGroupID,
		FilterValue: groupID,
		Cached:      outcomeRefs(s.cachedOutcomes(groupID), func(o domain.Outcome) string { return o.GroupID }),
	}}
	id, err := s.coord.DeleteAggregateWithChildren(ctx, domain.CollectionOutcomeGroups, groupID, specs)
	if err == nil {
		s.cache.Delete(groupOutcomesKey(groupID))
	}
	return settleID(done, id, "", err)
}

// ============================================================
// Group outcomes
// ============================================================

func (s *OutcomeGroupService) ListGroupOutcomes(ctx context.Context, userID, groupID string) domain.Result[[]domain.Outcome] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.ListGroupOutcomes")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", groupID))

	done := s.status.Track(userID, SliceOutcomeGroups, domain.ActionGetUserItems)
	if _, err := s.groups.load(ctx, groupID, userID); err != nil {
		return settle[[]domain.Outcome](done, nil, err)
	}
	outcomes, err := s.loadOutcomes(ctx, userID, groupID)
	if err != nil {
		return settle[[]domain.Outcome](done, nil, err)
	}
	sorted := append([]domain.Outcome(nil), outcomes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Description < sorted[j].Description })
	return settle(done, sorted, nil)
}

func (s *OutcomeGroupService) AddGroupOutcome(ctx context.Context, userID, groupID string, o domain.Outcome) domain.Result[domain.Outcome] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.AddGroupOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("group.id", groupID))

	done := s.status.Track(userID, SliceOutcomeGroups, domain.ActionAdd)
	if _, err := s.groups.load(ctx, groupID, userID); err != nil {
		return settle(done, domain.Outcome{}, err)
	}

	o.ID = s.outcomes.newID()
	o.GroupID = groupID
	o.PeriodID = ""
	o.UserID = userID
	o.Date = domain.NormalizeDatePtr(o.Date)
	if o.State == 0 {
		o.State = domain.OutcomePending
	}
	if err := o.Validate(); err != nil {
		return settle(done, domain.Outcome{}, err)
	}
	err := s.outcomes.put(ctx, o.ID, o)
	s.cache.Delete(groupOutcomesKey(groupID))

	res := settle(done, o, err)
	res.ParentEntityID = groupID
	return res
}

func (s *OutcomeGroupService) UpdateGroupOutcome(ctx context.Context, userID, groupID, outcomeID string, o domain.Outcome, unset ...string) domain.Result[domain.Outcome] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.UpdateGroupOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("outcome.id", outcomeID))

	done := s.status.Track(userID, SliceOutcomeGroups, domain.ActionUpdate)
	existing, err := s.loadGroupOutcome(ctx, userID, groupID, outcomeID)
	if err != nil {
		return settle(done, domain.Outcome{}, err)
	}
	current, err := fromDocument[domain.Outcome](existing)
	if err != nil {
		return settle(done, domain.Outcome{}, err)
	}

	o.ID = outcomeID
	o.GroupID = groupID
	o.PeriodID = ""
	o.UserID = userID
	o.Date = domain.NormalizeDatePtr(o.Date)
	if o.State == 0 {
		o.State = current.State
	}
	if err := o.Validate(); err != nil {
		return settle(done, domain.Outcome{}, err)
	}
	updated, err := s.outcomes.merge(ctx, existing, o, unset)
	s.cache.Delete(groupOutcomesKey(groupID))

	res := settle(done, updated, err)
	res.ParentEntityID = groupID
	return res
}

func (s *OutcomeGroupService) DeleteGroupOutcome(ctx context.Context, userID, groupID, outcomeID string) domain.Result[string] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.DeleteGroupOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("outcome.id", outcomeID))

	done := s.status.Track(userID, SliceOutcomeGroups, domain.ActionDelete)
	_, err := s.loadGroupOutcome(ctx, userID, groupID, outcomeID)
	if err == nil {
		err = s.outcomes.remove(ctx, outcomeID)
		s.cache.Delete(groupOutcomesKey(groupID))
	}
	return settleID(done, outcomeID, groupID, err)
}

// ============================================================
// Apply
// ============================================================

// ApplyToPeriod copies the group's outcomes into the period as pending
// outcomes dated on the period's last day.
func (s *OutcomeGroupService) ApplyToPeriod(ctx context.Context, userID, periodID, groupID string) domain.Result[[]domain.Outcome] {
	ctx, span := groupTracer.Start(ctx, "OutcomeGroupService.ApplyToPeriod")
	defer span.End()
	span.SetAttributes(
		attribute.String("period.id", periodID),
		attribute.String("group.id", groupID),
	)

	done := s.status.Track(userID, SlicePeriods, domain.ActionAdd)
	if _, err := s.periods.load(ctx, periodID, userID); err != nil {
		return settle[[]domain.Outcome](done, nil, err)
	}
	if _, err := s.groups.load(ctx, groupID, userID); err != nil {
		return settle[[]domain.Outcome](done, nil, err)
	}

	created, err := s.coord.MaterializeGroupOutcomesIntoPeriod(ctx, periodID, groupID, s.cachedOutcomes(groupID))
	if err == nil && len(created) > 0 {
		s.cache.Delete(outcomesKey(periodID))
	}

	res := settle(done, created, err)
	res.ParentEntityID = periodID
	return res
}

// ============================================================
// Helpers
// ============================================================

func (s *OutcomeGroupService) loadGroupOutcome(ctx context.Context, userID, groupID, outcomeID string) (port.Document, error) {
	doc, err := s.outcomes.load(ctx, outcomeID, userID)
	if err != nil {
		return port.Document{}, err
	}
	if doc.Data[domain.FieldGroupID] != groupID {
		return port.Document{}, &domain.ErrNotFound{Resource: "group outcome", ID: outcomeID}
	}
	return doc, nil
}

func (s *OutcomeGroupService) loadOutcomes(ctx context.Context, userID, groupID string) ([]domain.Outcome, error) {
	if cached := s.cachedOutcomes(groupID); cached != nil {
		return cached, nil
	}
	gen := s.cache.Generation()
	outcomes, err := s.outcomes.list(ctx, domain.FieldGroupID, groupID, userID)
	if err != nil {
		return nil, err
	}
	s.cache.SetIfFresh(groupOutcomesKey(groupID), outcomes, gen)
	return outcomes, nil
}

func (s *OutcomeGroupService) cachedOutcomes(groupID string) []domain.Outcome {
	return cachedList[domain.Outcome](s.cache, s.metrics, groupOutcomesKey(groupID), "group_outcomes")
}
