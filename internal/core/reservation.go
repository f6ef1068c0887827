package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by stores when an entity does not exist.
var ErrNotFound = errors.New("not found")

// ReservationMode controls whether a reservation excludes overlapping holders.
type ReservationMode string

const (
	ModeExclusive ReservationMode = "exclusive"
	ModeShared    ReservationMode = "shared"
)

// Reservation is a lease on a set of path patterns held by one agent.
type Reservation struct {
	ID         string          `json:"id"`
	AgentID    string          `json:"agent_id"`
	Project    string          `json:"project"`
	Patterns   []string        `json:"patterns"`
	Mode       ReservationMode `json:"mode"`
	Reason     string          `json:"reason,omitempty"`
	TaskID     string          `json:"task_id,omitempty"`
	TTL        time.Duration   `json:"-"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
	ReleasedAt *time.Time      `json:"released_at,omitempty"`
}

// IsActive reports whether the reservation is unreleased and unexpired.
func (r Reservation) IsActive() bool {
	if r.ReleasedAt != nil {
		return false
	}
	return time.Now().UTC().Before(r.ExpiresAt)
}

// Remaining returns the time until expiry, never negative.
func (r Reservation) Remaining(now time.Time) time.Duration {
	d := r.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// ConflictDetail describes one existing reservation blocking a new one.
type ConflictDetail struct {
	ReservationID string          `json:"reservation_id"`
	AgentID       string          `json:"agent_id"`
	Pattern       string          `json:"pattern"`
	Mode          ReservationMode `json:"mode"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// ConflictError is returned when a reservation cannot be granted because
// overlapping active reservations exist.
type ConflictError struct {
	Conflicts []ConflictDetail
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reservation conflict with %d existing reservation(s)", len(e.Conflicts))
}
