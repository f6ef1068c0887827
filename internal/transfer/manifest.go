package transfer

import (
	"context"
	"fmt"

	"github.com/mistakeknot/arbiter/internal/core"
	"github.com/mistakeknot/arbiter/internal/storage"
)

// BuildResourceManifest enumerates everything an agent owns that a handoff
// would move. Checkpoints, pending messages and subscriptions stay empty
// until their owning services expose listing.
func BuildResourceManifest(ctx context.Context, reservations storage.ReservationStore, project, agentID string) (core.ResourceManifest, error) {
	held, err := reservations.AgentReservations(ctx, project, agentID)
	if err != nil {
		return core.ResourceManifest{}, fmt.Errorf("list reservations for %s: %w", agentID, err)
	}

	manifest := core.ResourceManifest{
		Checkpoints:     []string{},
		PendingMessages: []string{},
		Subscriptions:   []string{},
	}
	for _, r := range held {
		manifest.Reservations = append(manifest.Reservations, core.ReservationRef{
			ID:        r.ID,
			Patterns:  r.Patterns,
			Mode:      r.Mode,
			ExpiresAt: r.ExpiresAt,
		})
	}
	return manifest, nil
}
