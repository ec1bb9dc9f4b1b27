package domain

import "time"

// SubscriptionChangeAction enumerates audited change directions.
type SubscriptionChangeAction string

const (
	SubscriptionChangeActionSubscribe   SubscriptionChangeAction = "Subscribe"
	SubscriptionChangeActionUnSubscribe SubscriptionChangeAction = "UnSubscribe"
)

const (
	// EventTypeTrack marks behavioral track events.
	EventTypeTrack = "track"
	// EventSubscriptionChange names the audit event appended once per
	// applied subscription change.
	EventSubscriptionChange = "SubscriptionChange"
)

// SubscriptionChangeProperties is the audit payload of a SubscriptionChange
// event.
type SubscriptionChangeProperties struct {
	SubscriptionID string                   `json:"subscriptionId"`
	Action         SubscriptionChangeAction `json:"action"`
}

// UserEvent is an append-only record in the workspace event log. Appends are
// idempotent on MessageID; rows are never mutated or deleted by this service.
type UserEvent struct {
	WorkspaceID string
	MessageID   string
	UserID      string
	EventType   string
	Event       string
	Properties  any
	EventTime   time.Time
}
