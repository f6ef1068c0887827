package resolve

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
)

// Source identifiers recorded in Inputs.Available and audit records.
const (
	SourceRequesterPriority = "requester_priority"
	SourceHolderPriority    = "holder_priority"
	SourceHistory           = "history"
	SourceReservations      = "holder_reservations"
)

// Sources bundles the external collaborators the aggregator fans out to.
type Sources struct {
	Priority     PrioritySource
	History      HistorySource
	Reservations ReservationLister
}

// Inputs is the aggregation result. Any field may be nil/empty when its
// source failed or was skipped; a fetch failure never fails the aggregation.
type Inputs struct {
	RequesterSignal    *core.AgentSignal
	HolderSignal       *core.AgentSignal
	History            *core.HistorySignal
	HolderReservations []core.Reservation
	Available          []string
}

// HolderProgress returns the holder's progress signal if gathered.
func (in *Inputs) HolderProgress() *core.Progress {
	if in.HolderSignal == nil {
		return nil
	}
	return in.HolderSignal.Progress
}

// AggregateOptions tunes one aggregation run.
type AggregateOptions struct {
	// Timeout bounds each fetch individually; a slow source degrades to
	// "unavailable" instead of stalling the join. Zero means no deadline.
	Timeout time.Duration
	// SkipHistory disables the history source entirely.
	SkipHistory bool
}

// Aggregate concurrently fetches requester priority, holder priority,
// historical outcomes and the holder's active reservations. Each branch is
// independently fallible: errors are logged and degrade that one field.
// Total latency is bounded by the slowest branch, not their sum.
func Aggregate(ctx context.Context, src Sources, req core.ResolutionRequest, opts AggregateOptions) Inputs {
	var (
		in Inputs
		mu sync.Mutex
		wg sync.WaitGroup
	)

	mark := func(source string, apply func()) {
		mu.Lock()
		defer mu.Unlock()
		apply()
		in.Available = append(in.Available, source)
	}

	branch := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bctx := ctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				bctx, cancel = context.WithTimeout(ctx, opts.Timeout)
				defer cancel()
			}
			fn(bctx)
		}()
	}

	if src.Priority != nil && req.RequestingBvID != "" {
		branch(func(bctx context.Context) {
			sig, err := src.Priority.FetchPriority(bctx, req.RequestingBvID)
			if err != nil {
				log.Printf("resolve: requester priority unavailable: %v", err)
				return
			}
			mark(SourceRequesterPriority, func() { in.RequesterSignal = sig })
		})
	}

	if src.Priority != nil && req.HoldingBvID != "" {
		branch(func(bctx context.Context) {
			sig, err := src.Priority.FetchPriority(bctx, req.HoldingBvID)
			if err != nil {
				log.Printf("resolve: holder priority unavailable: %v", err)
				return
			}
			mark(SourceHolderPriority, func() { in.HolderSignal = sig })
		})
	}

	if src.History != nil && !opts.SkipHistory && src.History.Enabled() {
		branch(func(bctx context.Context) {
			hist, err := src.History.FetchHistory(bctx, req.Resources)
			if err != nil {
				log.Printf("resolve: history unavailable: %v", err)
				return
			}
			mark(SourceHistory, func() { in.History = hist })
		})
	}

	if src.Reservations != nil && req.HoldingAgentID != "" {
		branch(func(bctx context.Context) {
			reservations, err := src.Reservations.AgentReservations(bctx, req.ProjectID, req.HoldingAgentID)
			if err != nil {
				log.Printf("resolve: holder reservations unavailable: %v", err)
				return
			}
			mark(SourceReservations, func() { in.HolderReservations = reservations })
		})
	}

	wg.Wait()
	return in
}
