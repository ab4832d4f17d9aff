package service

import (
	"sync"
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"

	"go.uber.org/zap"
)

// Slice is a group of data whose requests share one status.
type Slice string

const (
	SlicePeriods        Slice = "periods"
	SliceOutcomeGroups  Slice = "outcomeGroups"
	SliceCategories     Slice = "categories"
	SlicePaymentMethods Slice = "paymentMethods"
)

// DefaultStatusIdleAfter is how long a user with no pending request keeps
// their entry on the board.
const DefaultStatusIdleAfter = 30 * time.Minute

// StatusBoard keeps the request status of every slice per user. Users with
// nothing pending are dropped once idle for idleAfter and read as idle again.
type StatusBoard struct {
	mu        sync.Mutex
	states    map[string]*userStatus
	idleAfter time.Duration
	lastSweep time.Time
	logger    *zap.Logger
}

type userStatus struct {
	slices  map[Slice]*domain.RequestState
	touched time.Time
}

// StatusOption configures a StatusBoard.
type StatusOption func(*StatusBoard)

// WithIdleAfter overrides DefaultStatusIdleAfter.
func WithIdleAfter(d time.Duration) StatusOption {
	return func(b *StatusBoard) {
		if d > 0 {
			b.idleAfter = d
		}
	}
}

// NewStatusBoard returns an empty board.
func NewStatusBoard(logger *zap.Logger, opts ...StatusOption) *StatusBoard {
	b := &StatusBoard{
		states:    make(map[string]*userStatus),
		idleAfter: DefaultStatusIdleAfter,
		lastSweep: time.Now(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Track marks the slice pending for action and returns the function that
// settles it once the request is done. A slice left settled by an earlier
// request goes back to idle first. A request that overlaps a pending one is
// not tracked.
func (b *StatusBoard) Track(userID string, slice Slice, action domain.RequestAction) func(error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.evictIdle(time.Now())
	state := b.state(userID, slice)
	if state.Status == domain.RequestSucceeded || state.Status == domain.RequestFailed {
		_ = state.Finish()
	}
	if err := state.Begin(action); err != nil {
		b.logger.Debug("request not tracked",
			zap.String("user_id", userID),
			zap.String("slice", string(slice)),
			zap.Error(err),
		)
		return func(error) {}
	}

	return func(opErr error) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if u, ok := b.states[userID]; ok {
			u.touched = time.Now()
		}
		var err error
		if opErr == nil {
			err = state.Succeed()
		} else {
			err = state.Fail(opErr)
		}
		if err != nil {
			b.logger.Warn("invalid request transition",
				zap.String("user_id", userID),
				zap.String("slice", string(slice)),
				zap.Error(err),
			)
		}
	}
}

// Snapshot returns a copy of every slice state of userID. Slices never
// touched are reported idle.
func (b *StatusBoard) Snapshot(userID string) map[Slice]domain.RequestState {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := map[Slice]domain.RequestState{
		SlicePeriods:        domain.NewRequestState(),
		SliceOutcomeGroups:  domain.NewRequestState(),
		SliceCategories:     domain.NewRequestState(),
		SlicePaymentMethods: domain.NewRequestState(),
	}
	if u, ok := b.states[userID]; ok {
		for slice, state := range u.slices {
			out[slice] = *state
		}
	}
	return out
}

func (b *StatusBoard) state(userID string, slice Slice) *domain.RequestState {
	u, ok := b.states[userID]
	if !ok {
		u = &userStatus{slices: make(map[Slice]*domain.RequestState)}
		b.states[userID] = u
	}
	u.touched = time.Now()
	state, ok := u.slices[slice]
	if !ok {
		s := domain.NewRequestState()
		state = &s
		u.slices[slice] = state
	}
	return state
}

// evictIdle drops users untouched for idleAfter with no pending slice. It
// scans at most once per idleAfter.
func (b *StatusBoard) evictIdle(now time.Time) {
	if now.Sub(b.lastSweep) < b.idleAfter {
		return
	}
	b.lastSweep = now
	for userID, u := range b.states {
		if now.Sub(u.touched) < b.idleAfter || u.pending() {
			continue
		}
		delete(b.states, userID)
	}
}

func (u *userStatus) pending() bool {
	for _, s := range u.slices {
		if s.Status == domain.RequestPending {
			return true
		}
	}
	return false
}

// settle closes a tracked request and wraps the outcome in a Result.
func settle[T any](done func(error), entity T, err error) domain.Result[T] {
	done(err)
	return domain.ResultOf(entity, err)
}

// settleID is settle for operations that answer with an id only.
func settleID(done func(error), id, parentID string, err error) domain.Result[string] {
	done(err)
	if err != nil {
		return domain.Failed[string](err)
	}
	return domain.OKWithID[string](id, parentID)
}
