package service

import (
	"context"
	"sort"
	"strings"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/boddenberg/finance-tracker-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var lookupTracer = otel.Tracer("service/lookup")

// LookupService manages categories and payment methods.
type LookupService struct {
	status     *StatusBoard
	logger     *zap.Logger
	categories repo[domain.Category]
	methods    repo[domain.PaymentMethod]
}

func NewLookupService(store port.DocumentStore, status *StatusBoard, logger *zap.Logger) *LookupService {
	return &LookupService{
		status:     status,
		logger:     logger,
		categories: newRepo[domain.Category](store, domain.CollectionCategories, "category"),
		methods:    newRepo[domain.PaymentMethod](store, domain.CollectionPaymentMethods, "payment method"),
	}
}

// ============================================================
// Categories
// ============================================================

func (s *LookupService) ListCategories(ctx context.Context, userID string) domain.Result[[]domain.Category] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.ListCategories")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	done := s.status.Track(userID, SliceCategories, domain.ActionGetUserItems)
	cats, err := s.categories.list(ctx, domain.FieldUserID, userID, userID)
	if err == nil {
		sort.SliceStable(cats, func(i, j int) bool { return byName(cats[i].Name, cats[j].Name) })
	}
	return settle(done, cats, err)
}

// FindCategoryByName returns the user's category with the given name, ignoring case.
func (s *LookupService) FindCategoryByName(ctx context.Context, userID, name string) domain.Result[domain.Category] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.FindCategoryByName")
	defer span.End()

	done := s.status.Track(userID, SliceCategories, domain.ActionGetUserItem)
	cats, err := s.categories.list(ctx, domain.FieldUserID, userID, userID)
	if err != nil {
		return settle(done, domain.Category{}, err)
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, name) {
			return settle(done, c, nil)
		}
	}
	return settle(done, domain.Category{}, error(&domain.ErrNotFound{Resource: "category", ID: name}))
}

func (s *LookupService) AddCategory(ctx context.Context, userID string, c domain.Category) domain.Result[domain.Category] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.AddCategory")
	defer span.End()

	done := s.status.Track(userID, SliceCategories, domain.ActionAdd)
	c.ID = s.categories.newID()
	c.UserID = userID
	if err := c.Validate(); err != nil {
		return settle(done, domain.Category{}, err)
	}
	err := s.categories.put(ctx, c.ID, c)
	return settle(done, c, err)
}

func (s *LookupService) UpdateCategory(ctx context.Context, userID, categoryID string, c domain.Category) domain.Result[domain.Category] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.UpdateCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", categoryID))

	done := s.status.Track(userID, SliceCategories, domain.ActionUpdate)
	existing, err := s.categories.load(ctx, categoryID, userID)
	if err != nil {
		return settle(done, domain.Category{}, err)
	}
	c.ID = categoryID
	c.UserID = userID
	if err := c.Validate(); err != nil {
		return settle(done, domain.Category{}, err)
	}
	updated, err := s.categories.merge(ctx, existing, c, nil)
	return settle(done, updated, err)
}

func (s *LookupService) DeleteCategory(ctx context.Context, userID, categoryID string) domain.Result[string] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.DeleteCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", categoryID))

	done := s.status.Track(userID, SliceCategories, domain.ActionDelete)
	_, err := s.categories.load(ctx, categoryID, userID)
	if err == nil {
		err = s.categories.remove(ctx, categoryID)
	}
	return settleID(done, categoryID, "", err)
}

// ============================================================
// Payment methods
// ============================================================

func (s *LookupService) ListPaymentMethods(ctx context.Context, userID string) domain.Result[[]domain.PaymentMethod] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.ListPaymentMethods")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	done := s.status.Track(userID, SlicePaymentMethods, domain.ActionGetUserItems)
	methods, err := s.methods.list(ctx, domain.FieldUserID, userID, userID)
	if err == nil {
		sort.SliceStable(methods, func(i, j int) bool { return byName(methods[i].Name, methods[j].Name) })
	}
	return settle(done, methods, err)
}

// FindPaymentMethodByName returns the user's payment method with the given name, ignoring case.
func (s *LookupService) FindPaymentMethodByName(ctx context.Context, userID, name string) domain.Result[domain.PaymentMethod] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.FindPaymentMethodByName")
	defer span.End()

	done := s.status.Track(userID, SlicePaymentMethods, domain.ActionGetUserItem)
	methods, err := s.methods.list(ctx, domain.FieldUserID, userID, userID)
	if err != nil {
		return settle(done, domain.PaymentMethod{}, err)
	}
	for _, m := range methods {
		if strings.EqualFold(m.Name, name) {
			return settle(done, m, nil)
		}
	}
	return settle(done, domain.PaymentMethod{}, error(&domain.ErrNotFound{Resource: "payment method", ID: name}))
}

func (s *LookupService) AddPaymentMethod(ctx context.Context, userID string, m domain.PaymentMethod) domain.Result[domain.PaymentMethod] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.AddPaymentMethod")
	defer span.End()

	done := s.status.Track(userID, SlicePaymentMethods, domain.ActionAdd)
	m.ID = s.methods.newID()
	m.UserID = userID
	if err := m.Validate(); err != nil {
		return settle(done, domain.PaymentMethod{}, err)
	}
	err := s.methods.put(ctx, m.ID, m)
	return settle(done, m, err)
}

func (s *LookupService) UpdatePaymentMethod(ctx context.Context, userID, methodID string, m domain.PaymentMethod) domain.Result[domain.PaymentMethod] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.UpdatePaymentMethod")
	defer span.End()
	span.SetAttributes(attribute.String("payment_method.id", methodID))

	done := s.status.Track(userID, SlicePaymentMethods, domain.ActionUpdate)
	existing, err := s.methods.load(ctx, methodID, userID)
	if err != nil {
		return settle(done, domain.PaymentMethod{}, err)
	}
	m.ID = methodID
	m.UserID = userID
	if err := m.Validate(); err != nil {
		return settle(done, domain.PaymentMethod{}, err)
	}
	updated, err := s.methods.merge(ctx, existing, m, nil)
	return settle(done, updated, err)
}

func (s *LookupService) DeletePaymentMethod(ctx context.Context, userID, methodID string) domain.Result[string] {
	ctx, span := lookupTracer.Start(ctx, "LookupService.DeletePaymentMethod")
	defer span.End()
	span.SetAttributes(attribute.String("payment_method.id", methodID))

	done := s.status.Track(userID, SlicePaymentMethods, domain.ActionDelete)
	_, err := s.methods.load(ctx, methodID, userID)
	if err == nil {
		err = s.methods.remove(ctx, methodID)
	}
	return settleID(done, methodID, "", err)
}

func byName(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
