package domain

import "github.com/shopspring/decimal"

// PeriodSummary aggregates a period's incomes and outcomes.
type PeriodSummary struct {
	PeriodID        string                     `json:"periodId"`
	TotalIncomes    decimal.Decimal            `json:"totalIncomes"`
	TotalOutcomes   decimal.Decimal            `json:"totalOutcomes"`
	Balance         decimal.Decimal            `json:"balance"`
	ByState         map[string]decimal.Decimal `json:"byState"`
	ByCategory      map[string]decimal.Decimal `json:"byCategory"`
	ByPaymentMethod map[string]decimal.Decimal `json:"byPaymentMethod"`
	OutcomeLimit    *decimal.Decimal           `json:"outcomeLimit,omitempty"`
	RemainingLimit  *decimal.Decimal           `json:"remainingLimit,omitempty"`
	OverLimit       bool                       `json:"overLimit"`
}

// Summarize computes totals for p. Outcomes without a category or payment
// method are grouped under the empty key.
func Summarize(p Period, incomes []Income, outcomes []Outcome) PeriodSummary {
	s := PeriodSummary{
		PeriodID:        p.ID,
		TotalIncomes:    decimal.Zero,
		TotalOutcomes:   decimal.Zero,
		ByState:         make(map[string]decimal.Decimal),
		ByCategory:      make(map[string]decimal.Decimal),
		ByPaymentMethod: make(map[string]decimal.Decimal),
		OutcomeLimit:    p.OutcomeLimit,
	}

	for _, in := range incomes {
		s.TotalIncomes = s.TotalIncomes.Add(in.Amount)
	}
	for _, o := range outcomes {
		s.TotalOutcomes = s.TotalOutcomes.Add(o.Amount)
		s.ByState[o.State.String()] = s.ByState[o.State.String()].Add(o.Amount)
		s.ByCategory[o.CategoryID] = s.ByCategory[o.CategoryID].Add(o.Amount)
		s.ByPaymentMethod[o.PaymentMethodID] = s.ByPaymentMethod[o.PaymentMethodID].Add(o.Amount)
	}
	s.Balance = s.TotalIncomes.Sub(s.TotalOutcomes)

	if p.OutcomeLimit != nil {
		remaining := p.OutcomeLimit.Sub(s.TotalOutcomes)
		s.RemainingLimit = &remaining
		s.OverLimit = remaining.IsNegative()
	}
	return s
}
