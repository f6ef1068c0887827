package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mistakeknot/arbiter/internal/core"
	"github.com/mistakeknot/arbiter/internal/glob"
)

// ReservationStore is the persistence contract for path-pattern leases.
type ReservationStore interface {
	CreateReservation(ctx context.Context, r core.Reservation) (*core.Reservation, error)
	GetReservation(ctx context.Context, id string) (*core.Reservation, error)
	ReleaseReservation(ctx context.Context, id, agentID string) error
	AgentReservations(ctx context.Context, project, agentID string) ([]core.Reservation, error)
	ActiveReservations(ctx context.Context, project string) ([]core.Reservation, error)
}

// InMemory is a mutex-guarded in-memory reservation store for tests and
// embedded use.
type InMemory struct {
	mu           sync.Mutex
	reservations map[string]core.Reservation
	nowFunc      func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		reservations: make(map[string]core.Reservation),
		nowFunc:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *InMemory) CreateReservation(_ context.Context, r core.Reservation) (*core.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	if conflicts := m.conflictsLocked(r, now); len(conflicts) > 0 {
		return nil, &core.ConflictError{Conflicts: conflicts}
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.TTL <= 0 {
		r.TTL = 30 * time.Minute
	}
	r.CreatedAt = now
	r.ExpiresAt = now.Add(r.TTL)
	m.reservations[r.ID] = r
	return &r, nil
}

// conflictsLocked finds active reservations by other agents whose patterns
// overlap the candidate's. Shared reservations only conflict with exclusive
// ones.
func (m *InMemory) conflictsLocked(r core.Reservation, now time.Time) []core.ConflictDetail {
	var out []core.ConflictDetail
	for _, existing := range m.reservations {
		if existing.Project != r.Project || existing.AgentID == r.AgentID {
			continue
		}
		if existing.ReleasedAt != nil || !existing.ExpiresAt.After(now) {
			continue
		}
		if r.Mode != core.ModeExclusive && existing.Mode != core.ModeExclusive {
			continue
		}
		for _, p := range existing.Patterns {
			if glob.AnyOverlap(r.Patterns, []string{p}) {
				out = append(out, core.ConflictDetail{
					ReservationID: existing.ID,
					AgentID:       existing.AgentID,
					Pattern:       p,
					Mode:          existing.Mode,
					ExpiresAt:     existing.ExpiresAt,
				})
				break
			}
		}
	}
	return out
}

func (m *InMemory) GetReservation(_ context.Context, id string) (*core.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &r, nil
}

func (m *InMemory) ReleaseReservation(_ context.Context, id, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.AgentID != agentID {
		return core.ErrNotFound
	}
	now := m.nowFunc()
	r.ReleasedAt = &now
	m.reservations[id] = r
	return nil
}

func (m *InMemory) AgentReservations(_ context.Context, project, agentID string) ([]core.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	var out []core.Reservation
	for _, r := range m.reservations {
		if r.AgentID != agentID {
			continue
		}
		if project != "" && r.Project != project {
			continue
		}
		if r.ReleasedAt == nil && r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *InMemory) ActiveReservations(_ context.Context, project string) ([]core.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFunc()
	var out []core.Reservation
	for _, r := range m.reservations {
		if r.Project != project {
			continue
		}
		if r.ReleasedAt == nil && r.ExpiresAt.After(now) {
			out = append(out, r)
		}
	}
	return out, nil
}
