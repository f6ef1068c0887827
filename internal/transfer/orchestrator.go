package transfer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mistakeknot/arbiter/internal/core"
	"github.com/mistakeknot/arbiter/internal/storage"
)

// Phase names the four ordered resource categories of a transfer.
type Phase string

const (
	PhaseReservations  Phase = "reservations"
	PhaseCheckpoints   Phase = "checkpoints"
	PhaseMessages      Phase = "messages"
	PhaseSubscriptions Phase = "subscriptions"
)

// minTransferTTL is the floor for a transferred reservation's lease; a
// nearly-expired reservation still gives the receiver time to act.
const minTransferTTL = 60 * time.Second

// ProgressUpdate is delivered after each individual resource transfer.
type ProgressUpdate struct {
	TotalResources       int    `json:"total_resources"`
	TransferredResources int    `json:"transferred_resources"`
	CurrentResource      string `json:"current_resource"`
	Phase                Phase  `json:"phase"`
}

// Options tunes one TransferResources run.
type Options struct {
	// AllowPartial keeps going past failed resources instead of stopping
	// at the first one.
	AllowPartial bool
	// OnProgress, when set, is called after every completed resource.
	OnProgress func(ProgressUpdate)
}

// CompletedTransfer records one successfully moved resource so a later
// rollback can reverse it. TransferredID is the id of the reservation
// created for the receiver; for other phases it equals ResourceID.
type CompletedTransfer struct {
	Phase         Phase  `json:"phase"`
	ResourceID    string `json:"resource_id"`
	TransferredID string `json:"transferred_id"`
}

// Orchestrator moves an agent's resources to another agent in four strictly
// ordered phases: reservations, checkpoints, messages, subscriptions.
// Ordering matters because later phases assume a clean reservation state.
type Orchestrator struct {
	reservations  storage.ReservationStore
	checkpoints   CheckpointStore
	messages      MessageStore
	subscriptions SubscriptionStore
	bus           Publisher
	nowFunc       func() time.Time
}

type OrchestratorOption func(*Orchestrator)

func WithPublisher(bus Publisher) OrchestratorOption {
	return func(o *Orchestrator) { o.bus = bus }
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.nowFunc = now }
}

func NewOrchestrator(reservations storage.ReservationStore, checkpoints CheckpointStore, messages MessageStore, subscriptions SubscriptionStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		reservations:  reservations,
		checkpoints:   checkpoints,
		messages:      messages,
		subscriptions: subscriptions,
		nowFunc:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TransferResources executes the handoff's resource manifest. It fails fast
// when the handoff has no acknowledged receiver. Without AllowPartial it
// stops at the first failed resource; with it, every resource is attempted.
// Success is true iff zero resources failed. The returned completed list
// feeds RollbackTransfer.
func (o *Orchestrator) TransferResources(ctx context.Context, handoff core.HandoffRecord, opts Options) (core.TransferResult, []CompletedTransfer) {
	source := handoff.Request.SourceAgentID
	target := handoff.Acknowledgment.ReceivingAgentID
	if target == "" {
		return core.TransferResult{
			Success: false,
			Error:   "handoff has no acknowledged receiving agent",
		}, nil
	}

	manifest := handoff.Request.ResourceManifest
	total := manifest.Total()
	o.publish(handoff, core.EventTransferStarted, map[string]any{
		"handoff_id":      handoff.ID,
		"source_agent":    source,
		"receiving_agent": target,
		"total_resources": total,
	})

	var (
		result    = core.TransferResult{Success: true}
		completed []CompletedTransfer
	)

	phases := []struct {
		phase Phase
		ids   []string
		apply func(ctx context.Context, id string) (string, error)
	}{
		{PhaseReservations, reservationIDs(manifest.Reservations), func(ctx context.Context, id string) (string, error) {
			return o.transferReservation(ctx, id, source, target)
		}},
		{PhaseCheckpoints, manifest.Checkpoints, func(ctx context.Context, id string) (string, error) {
			return id, o.checkpoints.TransferOwnership(ctx, id, source, target)
		}},
		{PhaseMessages, manifest.PendingMessages, func(ctx context.Context, id string) (string, error) {
			return id, o.messages.ForwardMessage(ctx, id, source, target)
		}},
		{PhaseSubscriptions, manifest.Subscriptions, func(ctx context.Context, id string) (string, error) {
			return id, o.subscriptions.TransferSubscription(ctx, id, source, target)
		}},
	}

phases:
	for _, ph := range phases {
		for _, id := range ph.ids {
			transferredID, err := ph.apply(ctx, id)
			if err != nil {
				log.Printf("transfer: handoff %s: %s %s failed: %v", handoff.ID, ph.phase, id, err)
				result.Failed = append(result.Failed, id)
				if !opts.AllowPartial {
					break phases
				}
				continue
			}
			result.Transferred++
			completed = append(completed, CompletedTransfer{
				Phase:         ph.phase,
				ResourceID:    id,
				TransferredID: transferredID,
			})
			if opts.OnProgress != nil {
				opts.OnProgress(ProgressUpdate{
					TotalResources:       total,
					TransferredResources: result.Transferred,
					CurrentResource:      id,
					Phase:                ph.phase,
				})
			}
		}
	}

	if len(result.Failed) > 0 {
		result.Success = false
		result.Error = fmt.Sprintf("%d of %d resource(s) failed to transfer", len(result.Failed), total)
	}

	o.publish(handoff, core.EventTransferCompleted, map[string]any{
		"handoff_id":            handoff.ID,
		"success":               result.Success,
		"transferred_resources": result.Transferred,
		"failed_resources":      result.Failed,
	})
	return result, completed
}

// transferReservation moves one reservation from source to target: load,
// verify ownership, release, recreate for the target with the remaining TTL
// clamped to at least a minute. On a create conflict the original is
// restored for the source, best effort.
func (o *Orchestrator) transferReservation(ctx context.Context, id, source, target string) (string, error) {
	r, err := o.reservations.GetReservation(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load reservation %s: %w", id, err)
	}
	if r.AgentID != source {
		return "", fmt.Errorf("reservation %s not owned by %s", id, source)
	}

	if err := o.reservations.ReleaseReservation(ctx, id, source); err != nil {
		return "", fmt.Errorf("release reservation %s: %w", id, err)
	}

	ttl := r.ExpiresAt.Sub(o.nowFunc())
	if ttl < minTransferTTL {
		ttl = minTransferTTL
	}
	next := core.Reservation{
		AgentID:  target,
		Project:  r.Project,
		Patterns: r.Patterns,
		Mode:     r.Mode,
		Reason:   r.Reason,
		TaskID:   r.TaskID,
		TTL:      ttl,
	}

	created, err := o.reservations.CreateReservation(ctx, next)
	if err != nil {
		restore := next
		restore.AgentID = source
		if _, rerr := o.reservations.CreateReservation(ctx, restore); rerr != nil {
			log.Printf("transfer: restore of reservation %s for %s failed: %v", id, source, rerr)
		}
		return "", fmt.Errorf("create reservation for %s: %w", target, err)
	}
	return created.ID, nil
}

// RollbackTransfer reverses completed transfers in reverse order, best
// effort: reservations go back to the source agent and checkpoint ownership
// is returned. Messages and subscriptions are left alone; the surrounding
// system treats them as re-deliverable. Individual failures are logged and
// do not stop the remaining steps.
func (o *Orchestrator) RollbackTransfer(ctx context.Context, handoff core.HandoffRecord, completed []CompletedTransfer) {
	source := handoff.Request.SourceAgentID
	target := handoff.Acknowledgment.ReceivingAgentID

	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		switch step.Phase {
		case PhaseReservations:
			if _, err := o.transferReservation(ctx, step.TransferredID, target, source); err != nil {
				log.Printf("transfer: rollback of reservation %s failed: %v", step.ResourceID, err)
			}
		case PhaseCheckpoints:
			if err := o.checkpoints.TransferOwnership(ctx, step.ResourceID, target, source); err != nil {
				log.Printf("transfer: rollback of checkpoint %s failed: %v", step.ResourceID, err)
			}
		}
	}
}

func (o *Orchestrator) publish(handoff core.HandoffRecord, eventType core.EventType, payload map[string]any) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(handoff.Request.ProjectID, core.ChannelHandoffs, eventType, payload)
}

func reservationIDs(refs []core.ReservationRef) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	return ids
}
