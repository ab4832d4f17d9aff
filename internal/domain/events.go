package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types published after a coordinator batch commits.
const (
	EventAggregateDeleted     = "aggregate.deleted"
	EventOutcomesMaterialized = "outcomes.materialized"
)

// Event describes a committed multi-document mutation.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Type      string            `json:"eventType"`
	Data      any               `json:"eventData,omitempty"`
	Metadata  map[string]string `json:"eventMetadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

type EventOption func(*Event)

func WithType(eventType string) EventOption {
	return func(e *Event) {
		e.Type = eventType
	}
}

func WithData(data any) EventOption {
	return func(e *Event) {
		e.Data = data
	}
}

func WithMetadata(key, value string) EventOption {
	return func(e *Event) {
		e.Metadata[key] = value
	}
}

func NewEvent(opts ...EventOption) Event {
	e := Event{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AggregateDeleted is the payload of EventAggregateDeleted.
type AggregateDeleted struct {
	Collection string              `json:"collection"`
	ID         string              `json:"id"`
	Children   map[string][]string `json:"children"`
}

// OutcomesMaterialized is the payload of EventOutcomesMaterialized.
type OutcomesMaterialized struct {
	PeriodID   string   `json:"periodId"`
	GroupID    string   `json:"groupId"`
	OutcomeIDs []string `json:"outcomeIds"`
}
