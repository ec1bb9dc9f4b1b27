package dto

import (
	"time"

	"github.com/spec-kit/subscription-service/internal/domain"
)

// UpsertSubscriptionGroupRequest payload.
type UpsertSubscriptionGroupRequest struct {
	ID   string                       `json:"id,omitempty"`
	Name string                       `json:"name"`
	Type domain.SubscriptionGroupType `json:"type"`
}

// SubscriptionGroupResponse payload.
type SubscriptionGroupResponse struct {
	ID          string                       `json:"id"`
	WorkspaceID string                       `json:"workspace_id"`
	Name        string                       `json:"name"`
	Type        domain.SubscriptionGroupType `json:"type"`
	CreatedAt   time.Time                    `json:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at"`
}

// NewSubscriptionGroupResponse maps a domain group to its response shape.
func NewSubscriptionGroupResponse(group *domain.SubscriptionGroup) SubscriptionGroupResponse {
	return SubscriptionGroupResponse{
		ID:          group.ID,
		WorkspaceID: group.WorkspaceID,
		Name:        group.Name,
		Type:        group.Type,
		CreatedAt:   group.CreatedAt,
		UpdatedAt:   group.UpdatedAt,
	}
}

// UpdateSubscriptionsRequest carries desired states per subscription group.
type UpdateSubscriptionsRequest struct {
	Changes map[string]bool `json:"changes"`
}

// SubscriptionListResponse payload.
type SubscriptionListResponse struct {
	Subscriptions []domain.SubscriptionStatus `json:"subscriptions"`
}

// ChangeURLResponse payload.
type ChangeURLResponse struct {
	URL string `json:"url"`
}
