// Package domain holds the tracker's entities and the types shared by every layer.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection names in the document store. Children point at their parent
// through the field named next to them.
const (
	CollectionPeriods        = "periods"
	CollectionIncomes        = "incomes"  // periodId
	CollectionOutcomes       = "outcomes" // periodId
	CollectionOutcomeGroups  = "outcomeGroups"
	CollectionGroupOutcomes  = "groupOutcomes" // groupId
	CollectionCategories     = "categories"
	CollectionPaymentMethods = "paymentMethods"
)

// Document field names used by equality queries.
const (
	FieldUserID   = "userId"
	FieldPeriodID = "periodId"
	FieldGroupID  = "groupId"

	// Optional fields an update may clear with an explicit null.
	FieldOutcomeLimit = "outcomeLimit"
	FieldIncomeDate   = "incomeDate"
	FieldOutcomeDate  = "outcomeDate"
)

// Period is one budgeting cycle.
type Period struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	From         time.Time        `json:"from"`
	To           time.Time        `json:"to"`
	Closed       bool             `json:"closed"`
	OutcomeLimit *decimal.Decimal `json:"outcomeLimit,omitempty"`
	UserID       string           `json:"userId"`
}

// Validate checks the fields a period cannot be stored without.
func (p *Period) Validate() error {
	if p.Name == "" {
		return &ErrValidation{Field: "name", Message: "is required"}
	}
	if p.From.IsZero() {
		return &ErrValidation{Field: "from", Message: "is required"}
	}
	if p.To.IsZero() {
		return &ErrValidation{Field: "to", Message: "is required"}
	}
	if p.To.Before(p.From) {
		return &ErrValidation{Field: "to", Message: "must not be before from"}
	}
	if p.OutcomeLimit != nil && p.OutcomeLimit.IsNegative() {
		return &ErrValidation{Field: "outcomeLimit", Message: "must not be negative"}
	}
	return nil
}

// Income is money received during a period.
type Income struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CategoryID  string          `json:"categoryId"`
	Date        *time.Time      `json:"incomeDate,omitempty"`
	PeriodID    string          `json:"periodId"`
	UserID      string          `json:"userId"`
}

// Validate checks an income before it is written.
func (i *Income) Validate() error {
	if i.Amount.IsNegative() {
		return &ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if i.Description == "" {
		return &ErrValidation{Field: "description", Message: "is required"}
	}
	return nil
}

// Outcome is an expense. It lives either in a period (PeriodID set) or as a
// template inside an outcome group.
type Outcome struct {
	ID              string          `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	CategoryID      string          `json:"categoryId"`
	PaymentMethodID string          `json:"paymentMethodId"`
	Responsible     string          `json:"responsible"`
	State           OutcomeState    `json:"state"`
	Date            *time.Time      `json:"outcomeDate,omitempty"`
	PeriodID        string          `json:"periodId,omitempty"`
	GroupID         string          `json:"groupId,omitempty"`
	UserID          string          `json:"userId"`
}

// Validate checks an outcome before it is written.
func (o *Outcome) Validate() error {
	if o.Amount.IsNegative() {
		return &ErrValidation{Field: "amount", Message: "must not be negative"}
	}
	if o.Description == "" {
		return &ErrValidation{Field: "description", Message: "is required"}
	}
	if !o.State.Valid() {
		return &ErrValidation{Field: "state", Message: "must be one of paid, pending, separated"}
	}
	return nil
}

// OutcomeGroup is a named bucket of template outcomes that is not tied to a period.
type OutcomeGroup struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	UserID      string `json:"userId"`
}

// CategoryType tells whether a category is meant for incomes or outcomes.
type CategoryType int

const (
	CategoryTypeIncome   CategoryType = 1
	CategoryTypeOutcomes CategoryType = 2
)

// Category is a flat owned lookup entity.
type Category struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Color       string        `json:"color"`
	Type        *CategoryType `json:"type,omitempty"`
	UserID      string        `json:"userId"`
}

// PaymentMethod is a flat owned lookup entity.
type PaymentMethod struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	UserID string `json:"userId"`
}

// NormalizeDate truncates t to midnight UTC of the same calendar day.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeDatePtr is NormalizeDate for optional dates.
func NormalizeDatePtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	n := NormalizeDate(*t)
	return &n
}

// Validate checks an outcome group before it is written.
func (g *OutcomeGroup) Validate() error {
	if g.Name == "" {
		return &ErrValidation{Field: "name", Message: "is required"}
	}
	return nil
}

// Validate checks a category before it is written.
func (c *Category) Validate() error {
	if c.Name == "" {
		return &ErrValidation{Field: "name", Message: "is required"}
	}
	if c.Type != nil && *c.Type != CategoryTypeIncome && *c.Type != CategoryTypeOutcomes {
		return &ErrValidation{Field: "type", Message: "must be 1 (income) or 2 (outcomes)"}
	}
	return nil
}

// Validate checks a payment method before it is written.
func (m *PaymentMethod) Validate() error {
	if m.Name == "" {
		return &ErrValidation{Field: "name", Message: "is required"}
	}
	return nil
}
