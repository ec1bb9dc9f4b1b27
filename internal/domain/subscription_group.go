package domain

import "time"

// SubscriptionGroupType enumerates the default consent posture for a group.
type SubscriptionGroupType string

const (
	SubscriptionGroupTypeOptIn  SubscriptionGroupType = "OptIn"
	SubscriptionGroupTypeOptOut SubscriptionGroupType = "OptOut"
)

// SubscriptionGroup is a user-facing grouping of messaging consent,
// e.g. "Product Updates". Name and Type may change after creation;
// the id is stable.
type SubscriptionGroup struct {
	ID          string
	WorkspaceID string
	Name        string
	Type        SubscriptionGroupType
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SubscriptionStatus is one entry of a user's subscription listing.
type SubscriptionStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsSubscribed bool   `json:"isSubscribed"`
}
