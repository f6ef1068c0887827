// Package resolve implements the conflict resolution engine: it aggregates
// signals about both agents in a conflict, scores five candidate resolution
// strategies, and produces a cached, audited suggestion.
package resolve

import (
	"context"

	"github.com/mistakeknot/arbiter/internal/core"
)

// PrioritySource supplies priority/progress signals for a bv id.
type PrioritySource interface {
	FetchPriority(ctx context.Context, bvID string) (*core.AgentSignal, error)
}

// HistorySource supplies outcome statistics for prior similar conflicts.
type HistorySource interface {
	Enabled() bool
	FetchHistory(ctx context.Context, resources []core.ResourceRef) (*core.HistorySignal, error)
}

// ReservationLister exposes the holder's active reservations.
type ReservationLister interface {
	AgentReservations(ctx context.Context, project, agentID string) ([]core.Reservation, error)
}

// Publisher emits workspace events, best effort.
type Publisher interface {
	Publish(project, channel string, eventType core.EventType, payload any)
}
