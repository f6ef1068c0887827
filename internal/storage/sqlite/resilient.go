package sqlite

import (
	"context"
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
	"github.com/mistakeknot/arbiter/internal/storage"
)

// Compile-time interface check.
var _ storage.ReservationStore = (*ResilientStore)(nil)

// ResilientStore wraps every Store method with breaker + retry-on-lock to
// ride out transient SQLite failures.
type ResilientStore struct {
	inner *Store
	cb    *Breaker
}

// NewResilient creates a ResilientStore with default breaker settings
// (threshold=5, reset=30s).
func NewResilient(inner *Store) *ResilientStore {
	return &ResilientStore{inner: inner, cb: NewBreaker(5, 30*time.Second)}
}

func NewResilientWithBreaker(inner *Store, cb *Breaker) *ResilientStore {
	return &ResilientStore{inner: inner, cb: cb}
}

// BreakerState reports the current breaker state for health endpoints.
func (r *ResilientStore) BreakerState() string { return r.cb.State() }

func (r *ResilientStore) CreateReservation(ctx context.Context, res core.Reservation) (*core.Reservation, error) {
	var result *core.Reservation
	err := r.cb.Do(func() error {
		return retryOnLock(func() error {
			var innerErr error
			result, innerErr = r.inner.CreateReservation(ctx, res)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) GetReservation(ctx context.Context, id string) (*core.Reservation, error) {
	var result *core.Reservation
	err := r.cb.Do(func() error {
		return retryOnLock(func() error {
			var innerErr error
			result, innerErr = r.inner.GetReservation(ctx, id)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) ReleaseReservation(ctx context.Context, id, agentID string) error {
	return r.cb.Do(func() error {
		return retryOnLock(func() error {
			return r.inner.ReleaseReservation(ctx, id, agentID)
		})
	})
}

func (r *ResilientStore) AgentReservations(ctx context.Context, project, agentID string) ([]core.Reservation, error) {
	var result []core.Reservation
	err := r.cb.Do(func() error {
		return retryOnLock(func() error {
			var innerErr error
			result, innerErr = r.inner.AgentReservations(ctx, project, agentID)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) ActiveReservations(ctx context.Context, project string) ([]core.Reservation, error) {
	var result []core.Reservation
	err := r.cb.Do(func() error {
		return retryOnLock(func() error {
			var innerErr error
			result, innerErr = r.inner.ActiveReservations(ctx, project)
			return innerErr
		})
	})
	return result, err
}

func (r *ResilientStore) SweepExpired(ctx context.Context, expiredBefore time.Time) ([]core.Reservation, error) {
	var result []core.Reservation
	err := r.cb.Do(func() error {
		return retryOnLock(func() error {
			var innerErr error
			result, innerErr = r.inner.SweepExpired(ctx, expiredBefore)
			return innerErr
		})
	})
	return result, err
}

// Close delegates directly without breaker or retry.
func (r *ResilientStore) Close() error { return r.inner.Close() }
