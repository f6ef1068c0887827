// Package transfer executes the side effects of a handoff between agents:
// moving reservations, checkpoint ownership, pending messages and
// subscriptions from the holding agent to the receiving agent, with
// compensating rollback on partial failure.
package transfer

import (
	"context"

	"github.com/mistakeknot/arbiter/internal/core"
)

// CheckpointStore reassigns checkpoint ownership between agents.
type CheckpointStore interface {
	TransferOwnership(ctx context.Context, checkpointID, fromAgentID, toAgentID string) error
}

// MessageStore forwards a pending message to a new recipient.
type MessageStore interface {
	ForwardMessage(ctx context.Context, messageID, fromAgentID, toAgentID string) error
}

// SubscriptionStore re-points an active subscription at a new agent.
type SubscriptionStore interface {
	TransferSubscription(ctx context.Context, subscriptionID, fromAgentID, toAgentID string) error
}

// Publisher emits workspace events, best effort.
type Publisher interface {
	Publish(project, channel string, eventType core.EventType, payload any)
}

// NoopCheckpointStore accepts every ownership transfer without doing
// anything. Stand-in until the checkpoint service is wired up.
type NoopCheckpointStore struct{}

func (NoopCheckpointStore) TransferOwnership(context.Context, string, string, string) error {
	return nil
}

// NoopMessageStore accepts every forward without doing anything.
type NoopMessageStore struct{}

func (NoopMessageStore) ForwardMessage(context.Context, string, string, string) error {
	return nil
}

// NoopSubscriptionStore accepts every transfer without doing anything.
type NoopSubscriptionStore struct{}

func (NoopSubscriptionStore) TransferSubscription(context.Context, string, string, string) error {
	return nil
}
