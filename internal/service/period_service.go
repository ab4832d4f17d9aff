package service

import (
	"context"
	"sort"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/infra/observability"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var periodTracer = otel.Tracer("service/period")

// PeriodService manages periods and the incomes and outcomes inside them.
// Child lists it loads are cached per period and handed to the coordinator
// when the period is deleted.
type PeriodService struct {
	coord    *Coordinator
	cache    port.Cache[any]
	status   *StatusBoard
	metrics  *observability.Metrics
	logger   *zap.Logger
	periods  repo[domain.Period]
	incomes  repo[domain.Income]
	outcomes repo[domain.Outcome]
}

// NewPeriodService creates a period service.
func NewPeriodService(
	store port.DocumentStore,
	coord *Coordinator,
	cache port.Cache[any],
	status *StatusBoard,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *PeriodService {
	return &PeriodService{
		coord:    coord,
		cache:    cache,
		status:   status,
		metrics:  metrics,
		logger:   logger,
		periods:  newRepo[domain.Period](store, domain.CollectionPeriods, "period").clearing(domain.FieldOutcomeLimit),
		incomes:  newRepo[domain.Income](store, domain.CollectionIncomes, "income").clearing(domain.FieldIncomeDate),
		outcomes: newRepo[domain.Outcome](store, domain.CollectionOutcomes, "outcome").clearing(domain.FieldOutcomeDate),
	}
}

// ============================================================
// Periods
// ============================================================

// ListPeriods returns the user's periods ordered by start date.
func (s *PeriodService) ListPeriods(ctx context.Context, userID string) domain.Result[[]domain.Period] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.ListPeriods")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionGetUserItems)
	periods, err := s.periods.list(ctx, domain.FieldUserID, userID, userID)
	if err == nil {
		sort.SliceStable(periods, func(i, j int) bool { return periods[i].From.Before(periods[j].From) })
	}
	return settle(done, periods, err)
}

func (s *PeriodService) GetPeriod(ctx context.Context, userID, periodID string) domain.Result[domain.Period] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.GetPeriod")
	defer span.End()
	span.SetAttributes(attribute.String("period.id", periodID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionGetUserItem)
	p, err := s.periods.get(ctx, periodID, userID)
	return settle(done, p, err)
}

func (s *PeriodService) AddPeriod(ctx context.Context, userID string, p domain.Period) domain.Result[domain.Period] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.AddPeriod")
	defer span.End()

	done := s.status.Track(userID, SlicePeriods, domain.ActionAdd)
	p.ID = s.periods.newID()
	p.UserID = userID
	p.From = domain.NormalizeDate(p.From)
	p.To = domain.NormalizeDate(p.To)
	if err := p.Validate(); err != nil {
		return settle(done, domain.Period{}, err)
	}

	err := s.periods.put(ctx, p.ID, p)
	if err == nil {
		s.logger.Info("period created", zap.String("period_id", p.ID), zap.String("user_id", userID))
	}
	return settle(done, p, err)
}

// UpdatePeriod merges p into the stored period. Omitted optional fields keep
// their value; fields named in unset (outcomeLimit) are removed.
func (s *PeriodService) UpdatePeriod(ctx context.Context, userID, periodID string, p domain.Period, unset ...string) domain.Result[domain.Period] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.UpdatePeriod")
	defer span.End()
	span.SetAttributes(attribute.String("period.id", periodID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionUpdate)
	existing, err := s.periods.load(ctx, periodID, userID)
	if err != nil {
		return settle(done, domain.Period{}, err)
	}

	p.ID = periodID
	p.UserID = userID
	p.From = domain.NormalizeDate(p.From)
	p.To = domain.NormalizeDate(p.To)
	if err := p.Validate(); err != nil {
		return settle(done, domain.Period{}, err)
	}
	updated, err := s.periods.merge(ctx, existing, p, unset)
	return settle(done, updated, err)
}

// DeletePeriod removes the period with all its incomes and outcomes in one batch.
func (s *PeriodService) DeletePeriod(ctx context.Context, userID, periodID string) domain.Result[string] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.DeletePeriod")
	defer span.End()
	span.SetAttributes(attribute.String("period.id", periodID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionDelete)
	if _, err := s.periods.load(ctx, periodID, userID); err != nil {
		return settleID(done, "", "", err)
	}

	specs := []ChildSpec{
		{
			Collection:  domain.CollectionIncomes,
			FilterField: domain.FieldPeriodID,
			FilterValue: periodID,
			Cached:      incomeRefs(s.cachedIncomes(periodID)),
		},
		{
			Collection:  domain.CollectionOutcomes,
			FilterField: domain.FieldPeriodID,
			FilterValue: periodID,
			Cached:      outcomeRefs(s.cachedOutcomes(periodID), func(o domain.Outcome) string { return o.PeriodID }),
		},
	}
	id, err := s.coord.DeleteAggregateWithChildren(ctx, domain.CollectionPeriods, periodID, specs)
	if err == nil {
		s.cache.Delete(incomesKey(periodID))
		s.cache.Delete(outcomesKey(periodID))
	}
	return settleID(done, id, "", err)
}

// Summary totals a period. Incomes and outcomes are loaded concurrently.
func (s *PeriodService) Summary(ctx context.Context, userID, periodID string) domain.Result[domain.PeriodSummary] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.Summary")
	defer span.End()
	span.SetAttributes(attribute.String("period.id", periodID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("period_summary", time.Since(start)) }()

	done := s.status.Track(userID, SlicePeriods, domain.ActionGetUserItem)
	p, err := s.periods.get(ctx, periodID, userID)
	if err != nil {
		return settle(done, domain.PeriodSummary{}, err)
	}

	var (
		incomes  []domain.Income
		outcomes []domain.Outcome
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomes, err = s.loadIncomes(gctx, userID, periodID)
		return err
	})
	g.Go(func() error {
		var err error
		outcomes, err = s.loadOutcomes(gctx, userID, periodID)
		return err
	})
	if err := g.Wait(); err != nil {
		return settle(done, domain.PeriodSummary{}, err)
	}
	return settle(done, domain.Summarize(p, incomes, outcomes), nil)
}

// ============================================================
// Incomes
// ============================================================

// ListIncomes returns the incomes of a period, dated ones first by date.
func (s *PeriodService) ListIncomes(ctx context.Context, userID, periodID string) domain.Result[[]domain.Income] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.ListIncomes")
	defer span.End()
	span.SetAttributes(attribute.String("period.id", periodID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionGetUserItems)
	if _, err := s.periods.load(ctx, periodID, userID); err != nil {
		return settle[[]domain.Income](done, nil, err)
	}
	incomes, err := s.loadIncomes(ctx, userID, periodID)
	if err != nil {
		return settle[[]domain.Income](done, nil, err)
	}
	sorted := append([]domain.Income(nil), incomes...)
	sort.SliceStable(sorted, func(i, j int) bool { return dateBefore(sorted[i].Date, sorted[j].Date) })
	return settle(done, sorted, nil)
}

func (s *PeriodService) AddIncome(ctx context.Context, userID, periodID string, in domain.Income) domain.Result[domain.Income] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.AddIncome")
	defer span.End()
	span.SetAttributes(attribute.String("period.id", periodID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionAdd)
	if _, err := s.periods.load(ctx, periodID, userID); err != nil {
		return settle(done, domain.Income{}, err)
	}

	in.ID = s.incomes.newID()
	in.PeriodID = periodID
	in.UserID = userID
	in.Date = domain.NormalizeDatePtr(in.Date)
	if err := in.Validate(); err != nil {
		return settle(done, domain.Income{}, err)
	}
	err := s.incomes.put(ctx, in.ID, in)
	s.cache.Delete(incomesKey(periodID))

	res := settle(done, in, err)
	res.ParentEntityID = periodID
	return res
}

func (s *PeriodService) UpdateIncome(ctx context.Context, userID, periodID, incomeID string, in domain.Income, unset ...string) domain.Result[domain.Income] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.UpdateIncome")
	defer span.End()
	span.SetAttributes(attribute.String("income.id", incomeID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionUpdate)
	existing, err := s.incomes.load(ctx, incomeID, userID)
	if err == nil && existing.Data[domain.FieldPeriodID] != periodID {
		err = &domain.ErrNotFound{Resource: "income", ID: incomeID}
	}
	if err != nil {
		return settle(done, domain.Income{}, err)
	}

	in.ID = incomeID
	in.PeriodID = periodID
	in.UserID = userID
	in.Date = domain.NormalizeDatePtr(in.Date)
	if err := in.Validate(); err != nil {
		return settle(done, domain.Income{}, err)
	}
	updated, err := s.incomes.merge(ctx, existing, in, unset)
	s.cache.Delete(incomesKey(periodID))

	res := settle(done, updated, err)
	res.ParentEntityID = periodID
	return res
}

func (s *PeriodService) DeleteIncome(ctx context.Context, userID, periodID, incomeID string) domain.Result[string] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.DeleteIncome")
	defer span.End()
	span.SetAttributes(attribute.String("income.id", incomeID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionDelete)
	existing, err := s.incomes.load(ctx, incomeID, userID)
	if err == nil && existing.Data[domain.FieldPeriodID] != periodID {
		err = &domain.ErrNotFound{Resource: "income", ID: incomeID}
	}
	if err == nil {
		err = s.incomes.remove(ctx, incomeID)
		s.cache.Delete(incomesKey(periodID))
	}
	return settleID(done, incomeID, periodID, err)
}

// ============================================================
// Outcomes
// ============================================================

// ListOutcomes returns the outcomes of a period, dated ones first by date.
func (s *PeriodService) ListOutcomes(ctx context.Context, userID, periodID string) domain.Result[[]domain.Outcome] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.ListOutcomes")
	defer span.End()
	span.SetAttributes(attribute.String("period.id", periodID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionGetUserItems)
	if _, err := s.periods.load(ctx, periodID, userID); err != nil {
		return settle[[]domain.Outcome](done, nil, err)
	}
	outcomes, err := s.loadOutcomes(ctx, userID, periodID)
	if err != nil {
		return settle[[]domain.Outcome](done, nil, err)
	}
	sorted := append([]domain.Outcome(nil), outcomes...)
	sort.SliceStable(sorted, func(i, j int) bool { return dateBefore(sorted[i].Date, sorted[j].Date) })
	return settle(done, sorted, nil)
}

func (s *PeriodService) AddOutcome(ctx context.Context, userID, periodID string, o domain.Outcome) domain.Result[domain.Outcome] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.AddOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("period.id", periodID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionAdd)
	if _, err := s.periods.load(ctx, periodID, userID); err != nil {
		return settle(done, domain.Outcome{}, err)
	}

	o.ID = s.outcomes.newID()
	o.PeriodID = periodID
	o.UserID = userID
	o.Date = domain.NormalizeDatePtr(o.Date)
	if o.State == 0 {
		o.State = domain.OutcomePending
	}
	if err := o.Validate(); err != nil {
		return settle(done, domain.Outcome{}, err)
	}
	err := s.outcomes.put(ctx, o.ID, o)
	s.cache.Delete(outcomesKey(periodID))

	res := settle(done, o, err)
	res.ParentEntityID = periodID
	return res
}

func (s *PeriodService) UpdateOutcome(ctx context.Context, userID, periodID, outcomeID string, o domain.Outcome, unset ...string) domain.Result[domain.Outcome] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.UpdateOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("outcome.id", outcomeID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionUpdate)
	existing, err := s.loadPeriodOutcome(ctx, userID, periodID, outcomeID)
	if err != nil {
		return settle(done, domain.Outcome{}, err)
	}

	current, err := fromDocument[domain.Outcome](existing)
	if err != nil {
		return settle(done, domain.Outcome{}, err)
	}
	o.ID = outcomeID
	o.PeriodID = periodID
	o.GroupID = current.GroupID
	o.UserID = userID
	o.Date = domain.NormalizeDatePtr(o.Date)
	if o.State == 0 {
		o.State = current.State
	}
	if err := o.Validate(); err != nil {
		return settle(done, domain.Outcome{}, err)
	}
	updated, err := s.outcomes.merge(ctx, existing, o, unset)
	s.cache.Delete(outcomesKey(periodID))

	res := settle(done, updated, err)
	res.ParentEntityID = periodID
	return res
}

// SetOutcomeState changes only the state of an outcome.
func (s *PeriodService) SetOutcomeState(ctx context.Context, userID, periodID, outcomeID string, state domain.OutcomeState) domain.Result[domain.Outcome] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.SetOutcomeState")
	defer span.End()
	span.SetAttributes(
		attribute.String("outcome.id", outcomeID),
		attribute.String("outcome.state", state.String()),
	)

	done := s.status.Track(userID, SlicePeriods, domain.ActionUpdate)
	if !state.Valid() {
		return settle(done, domain.Outcome{}, error(&domain.ErrValidation{Field: "state", Message: "must be one of paid, pending, separated"}))
	}
	existing, err := s.loadPeriodOutcome(ctx, userID, periodID, outcomeID)
	if err != nil {
		return settle(done, domain.Outcome{}, err)
	}
	o, err := fromDocument[domain.Outcome](existing)
	if err != nil {
		return settle(done, domain.Outcome{}, err)
	}
	o.State = state
	updated, err := s.outcomes.merge(ctx, existing, o, nil)
	s.cache.Delete(outcomesKey(periodID))

	res := settle(done, updated, err)
	res.ParentEntityID = periodID
	return res
}

func (s *PeriodService) DeleteOutcome(ctx context.Context, userID, periodID, outcomeID string) domain.Result[string] {
	ctx, span := periodTracer.Start(ctx, "PeriodService.DeleteOutcome")
	defer span.End()
	span.SetAttributes(attribute.String("outcome.id", outcomeID))

	done := s.status.Track(userID, SlicePeriods, domain.ActionDelete)
	_, err := s.loadPeriodOutcome(ctx, userID, periodID, outcomeID)
	if err == nil {
		err = s.outcomes.remove(ctx, outcomeID)
		s.cache.Delete(outcomesKey(periodID))
	}
	return settleID(done, outcomeID, periodID, err)
}

// ============================================================
// Helpers
// ============================================================

func (s *PeriodService) loadPeriodOutcome(ctx context.Context, userID, periodID, outcomeID string) (port.Document, error) {
	doc, err := s.outcomes.load(ctx, outcomeID, userID)
	if err != nil {
		return port.Document{}, err
	}
	if doc.Data[domain.FieldPeriodID] != periodID {
		return port.Document{}, &domain.ErrNotFound{Resource: "outcome", ID: outcomeID}
	}
	return doc, nil
}

func (s *PeriodService) loadIncomes(ctx context.Context, userID, periodID string) ([]domain.Income, error) {
	if cached := s.cachedIncomes(periodID); cached != nil {
		return cached, nil
	}
	gen := s.cache.Generation()
	incomes, err := s.incomes.list(ctx, domain.FieldPeriodID, periodID, userID)
	if err != nil {
		return nil, err
	}
	s.cache.SetIfFresh(incomesKey(periodID), incomes, gen)
	return incomes, nil
}

func (s *PeriodService) loadOutcomes(ctx context.Context, userID, periodID string) ([]domain.Outcome, error) {
	if cached := s.cachedOutcomes(periodID); cached != nil {
		return cached, nil
	}
	gen := s.cache.Generation()
	outcomes, err := s.outcomes.list(ctx, domain.FieldPeriodID, periodID, userID)
	if err != nil {
		return nil, err
	}
	s.cache.SetIfFresh(outcomesKey(periodID), outcomes, gen)
	return outcomes, nil
}

func (s *PeriodService) cachedIncomes(periodID string) []domain.Income {
	return cachedList[domain.Income](s.cache, s.metrics, incomesKey(periodID), "incomes")
}

func (s *PeriodService) cachedOutcomes(periodID string) []domain.Outcome {
	return cachedList[domain.Outcome](s.cache, s.metrics, outcomesKey(periodID), "outcomes")
}

func cachedList[T any](c port.Cache[any], m *observability.Metrics, key, name string) []T {
	if v, ok := c.Get(key); ok {
		if list, ok := v.([]T); ok {
			m.IncrCacheHit(name)
			return list
		}
	}
	m.IncrCacheMiss(name)
	return nil
}

func incomeRefs(incomes []domain.Income) []ChildRef {
	refs := make([]ChildRef, len(incomes))
	for i, in := range incomes {
		refs[i] = ChildRef{ID: in.ID, ParentID: in.PeriodID}
	}
	return refs
}

func outcomeRefs(outcomes []domain.Outcome, parent func(domain.Outcome) string) []ChildRef {
	refs := make([]ChildRef, len(outcomes))
	for i, o := range outcomes {
		refs[i] = ChildRef{ID: o.ID, ParentID: parent(o)}
	}
	return refs
}

// dateBefore orders dated items by date and puts undated ones last.
func dateBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}
