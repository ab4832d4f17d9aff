package domain

import "strings"

// OutcomeState tracks whether an outcome was paid. Stored as its numeric value.
type OutcomeState int

const (
	OutcomePaid      OutcomeState = 1
	OutcomePending   OutcomeState = 2
	OutcomeSeparated OutcomeState = 3
)

func (s OutcomeState) String() string {
	switch s {
	case OutcomePaid:
		return "paid"
	case OutcomePending:
		return "pending"
	case OutcomeSeparated:
		return "separated"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the known states.
func (s OutcomeState) Valid() bool {
	return s >= OutcomePaid && s <= OutcomeSeparated
}

// ParseOutcomeState accepts the state name in any case.
func ParseOutcomeState(v string) (OutcomeState, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "paid":
		return OutcomePaid, nil
	case "pending":
		return OutcomePending, nil
	case "separated":
		return OutcomeSeparated, nil
	}
	return 0, &ErrValidation{Field: "state", Message: "unknown outcome state " + v}
}
