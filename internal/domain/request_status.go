package domain

import "time"

// RequestStatus is the lifecycle of one user-facing request against a slice of data.
type RequestStatus string

const (
	RequestIdle      RequestStatus = "idle"
	RequestPending   RequestStatus = "pending"
	RequestSucceeded RequestStatus = "succeeded"
	RequestFailed    RequestStatus = "failed"
)

// RequestAction names the operation a request performs.
type RequestAction string

const (
	ActionNone         RequestAction = "none"
	ActionAdd          RequestAction = "add"
	ActionDelete       RequestAction = "delete"
	ActionGetUserItem  RequestAction = "get_user_item"
	ActionGetUserItems RequestAction = "get_user_items"
	ActionUpdate       RequestAction = "update"
)

var allowedTransitions = map[RequestStatus][]RequestStatus{
	RequestIdle:      {RequestPending},
	RequestPending:   {RequestSucceeded, RequestFailed},
	RequestSucceeded: {RequestIdle},
	RequestFailed:    {RequestIdle},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to RequestStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RequestState is the current status of a slice plus what the last request did.
// The zero value is not ready for use; call NewRequestState.
type RequestState struct {
	Status    RequestStatus `json:"status"`
	Action    RequestAction `json:"action"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// NewRequestState returns an idle state.
func NewRequestState() RequestState {
	return RequestState{Status: RequestIdle, Action: ActionNone, UpdatedAt: time.Now()}
}

func (s *RequestState) transition(to RequestStatus) error {
	if !CanTransition(s.Status, to) {
		return &ErrInvalidTransition{From: s.Status, To: to}
	}
	s.Status = to
	s.UpdatedAt = time.Now()
	return nil
}

// Begin moves Idle -> Pending for the given action.
func (s *RequestState) Begin(action RequestAction) error {
	if err := s.transition(RequestPending); err != nil {
		return err
	}
	s.Action = action
	s.Error = ""
	return nil
}

// Succeed moves Pending -> Succeeded.
func (s *RequestState) Succeed() error {
	return s.transition(RequestSucceeded)
}

// Fail moves Pending -> Failed and keeps the error message.
func (s *RequestState) Fail(err error) error {
	if e := s.transition(RequestFailed); e != nil {
		return e
	}
	if err != nil {
		s.Error = err.Error()
	}
	return nil
}

// Finish moves a settled state back to Idle. The action and error stay visible
// until the next Begin.
func (s *RequestState) Finish() error {
	return s.transition(RequestIdle)
}
