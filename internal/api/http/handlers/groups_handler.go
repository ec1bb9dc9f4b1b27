package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/subscription-service/internal/api/dto"
	"github.com/spec-kit/subscription-service/internal/service"
	"github.com/spec-kit/subscription-service/internal/signing"
	"github.com/spec-kit/subscription-service/pkg/util"
)

// SubscriptionGroupsHandler exposes workspace-side subscription group
// management and link assembly.
type SubscriptionGroupsHandler struct {
	subscriptions *service.SubscriptionService
}

// NewSubscriptionGroupsHandler constructs handler.
func NewSubscriptionGroupsHandler(subscriptions *service.SubscriptionService) *SubscriptionGroupsHandler {
	return &SubscriptionGroupsHandler{subscriptions: subscriptions}
}

// Upsert handles PUT /workspaces/:workspaceId/subscription-groups.
func (h *SubscriptionGroupsHandler) Upsert(c *fiber.Ctx) error {
	workspaceID := c.Params("workspaceId")

	var req dto.UpsertSubscriptionGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}

	group, err := h.subscriptions.UpsertGroup(c.UserContext(), service.UpsertGroupInput{
		ID:          req.ID,
		WorkspaceID: workspaceID,
		Name:        req.Name,
		Type:        req.Type,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(dto.NewSubscriptionGroupResponse(group))
}

// ChangeURL handles GET /workspaces/:workspaceId/users/:userId/subscription-link.
// It is used when composing outgoing messages that embed a manage link.
func (h *SubscriptionGroupsHandler) ChangeURL(c *fiber.Ctx) error {
	input := service.BuildLinkInput{
		WorkspaceID:         c.Params("workspaceId"),
		UserID:              c.Params("userId"),
		Identifier:          c.Query(signing.ParamIdentifier),
		IdentifierKey:       c.Query(signing.ParamIdentifierKey),
		SubscriptionGroupID: c.Query(signing.ParamSubscriptionID),
	}
	if flag := c.Query(signing.ParamChangeFlag); flag == "0" || flag == "1" {
		subscribed := flag == "1"
		input.Subscribed = &subscribed
	}

	link, err := h.subscriptions.BuildChangeURL(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.JSON(dto.ChangeURLResponse{URL: link})
}
