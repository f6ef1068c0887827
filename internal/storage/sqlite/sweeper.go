package sqlite

import (
	"context"
	"log"
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
)

// Publisher is the interface for emitting workspace events.
type Publisher interface {
	Publish(project, channel string, eventType core.EventType, payload any)
}

// Sweeper runs a background goroutine that periodically deletes expired
// reservations and announces each expiry on the conflicts channel.
type Sweeper struct {
	store    *ResilientStore
	bus      Publisher
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a Sweeper. Call Start() to begin sweeping.
func NewSweeper(store *ResilientStore, bus Publisher, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		bus:      bus,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep goroutine.
func (sw *Sweeper) Start(ctx context.Context) {
	ctx, sw.cancel = context.WithCancel(ctx)

	go func() {
		defer close(sw.done)

		// Startup sweep: only clean reservations expired >5min ago, so a
		// restart doesn't race agents renewing just-expired leases.
		sw.runSweep(ctx, time.Now().UTC().Add(-5*time.Minute))

		ticker := time.NewTicker(sw.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sw.runSweep(ctx, time.Now().UTC())
			}
		}
	}()
}

// Stop cancels the sweep goroutine and waits for it to finish.
func (sw *Sweeper) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	<-sw.done
}

func (sw *Sweeper) runSweep(ctx context.Context, expiredBefore time.Time) {
	deleted, err := sw.store.SweepExpired(ctx, expiredBefore)
	if err != nil {
		log.Printf("sweeper: %v", err)
		return
	}
	if len(deleted) == 0 {
		return
	}

	log.Printf("sweeper: cleaned %d expired reservation(s)", len(deleted))

	if sw.bus == nil {
		return
	}
	for _, r := range deleted {
		sw.bus.Publish(r.Project, core.ChannelConflicts, core.EventReservationExpired, map[string]any{
			"reservation_id": r.ID,
			"agent_id":       r.AgentID,
			"patterns":       r.Patterns,
		})
	}
}
