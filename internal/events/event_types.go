package events

import (
	"time"

	"github.com/spec-kit/subscription-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventSubscriptionChanged fires after a batch of membership writes and
	// the audit append have both been issued.
	EventSubscriptionChanged EventType = "subscription_changed"
	// EventSubscriptionGroupUpserted fires after a group and its backing
	// segment were written.
	EventSubscriptionGroupUpserted EventType = "subscription_group_upserted"
)

// Event represents a domain event emitted by services.
type Event struct {
	Type        EventType   `json:"type"`
	WorkspaceID string      `json:"workspace_id"`
	UserID      string      `json:"user_id,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// SubscriptionChangedPayload payload.
type SubscriptionChangedPayload struct {
	SubscriptionGroupID string                          `json:"subscription_group_id"`
	Action              domain.SubscriptionChangeAction `json:"action"`
}

// SubscriptionGroupUpsertedPayload payload.
type SubscriptionGroupUpsertedPayload struct {
	SubscriptionGroupID string                       `json:"subscription_group_id"`
	SegmentName         string                       `json:"segment_name"`
	Type                domain.SubscriptionGroupType `json:"type"`
}
