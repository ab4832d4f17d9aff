package domain

import (
	"errors"
	"net/http"
)

// Result is the uniform shape every application operation answers with.
// Status is 200 on success, 404 when a referenced document is missing,
// 400 for invalid input and 500 for anything else.
type Result[T any] struct {
	Status         int    `json:"status"`
	Error          string `json:"error,omitempty"`
	Entity         *T     `json:"entity,omitempty"`
	EntityID       string `json:"entityId,omitempty"`
	ParentEntityID string `json:"parentEntityId,omitempty"`
}

// OK is a successful result carrying an entity.
func OK[T any](entity T) Result[T] {
	return Result[T]{Status: http.StatusOK, Entity: &entity}
}

// OKWithID is a successful result carrying only an entity id.
func OKWithID[T any](id, parentID string) Result[T] {
	return Result[T]{Status: http.StatusOK, EntityID: id, ParentEntityID: parentID}
}

// Failed turns err into a failed result.
func Failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusFor(err), Error: err.Error()}
}

// ResultOf converts an (entity, error) pair.
func ResultOf[T any](entity T, err error) Result[T] {
	if err != nil {
		return Failed[T](err)
	}
	return OK(entity)
}

// Succeeded reports whether the result is a 200.
func (r Result[T]) Succeeded() bool {
	return r.Status == http.StatusOK
}

// StatusFor maps an error onto the status codes a Result may carry.
func StatusFor(err error) int {
	var notFound *ErrNotFound
	var validation *ErrValidation
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
