package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/subscription-service/internal/api/dto"
	"github.com/spec-kit/subscription-service/internal/service"
	"github.com/spec-kit/subscription-service/internal/signing"
	"github.com/spec-kit/subscription-service/pkg/util"
)

// SubscriptionsHandler exposes the sessionless subscription-management
// endpoints reached from unsubscribe links.
type SubscriptionsHandler struct {
	subscriptions *service.SubscriptionService
	logger        *zap.Logger
}

// NewSubscriptionsHandler constructs handler.
func NewSubscriptionsHandler(subscriptions *service.SubscriptionService, logger *zap.Logger) *SubscriptionsHandler {
	return &SubscriptionsHandler{subscriptions: subscriptions, logger: logger}
}

// verify authenticates the link parameters and resolves the user. Unknown
// identifiers and forged hashes are indistinguishable to the client; the
// logs keep the distinction.
func (h *SubscriptionsHandler) verify(c *fiber.Ctx) (workspaceID, userID string, err error) {
	workspaceID = c.Query(signing.ParamWorkspaceID)
	identifier := c.Query(signing.ParamIdentifier)
	identifierKey := c.Query(signing.ParamIdentifierKey)
	hash := c.Query(signing.ParamHash)
	if workspaceID == "" || identifier == "" || identifierKey == "" || hash == "" {
		return "", "", util.NewValidationError("w, i, ik and h query parameters are required", nil)
	}

	userID, err = h.subscriptions.Lookup(c.UserContext(), service.LookupInput{
		WorkspaceID:   workspaceID,
		Identifier:    identifier,
		IdentifierKey: identifierKey,
		Hash:          hash,
	})
	if err != nil {
		domainErr := util.ToDomainError(err)
		switch domainErr.Code {
		case util.CodeNotFound, util.CodeHashMismatch:
			h.logger.Warn("subscription link rejected",
				zap.String("code", domainErr.Code),
				zap.String("workspace_id", workspaceID))
			return "", "", util.NewUnableToProcess()
		}
		return "", "", err
	}
	return workspaceID, userID, nil
}

// List handles GET /subscriptions. When the link carries a one-click change
// (s plus sub), the change is applied before the listing is returned;
// missing optional parameters mean plain "show full list" mode.
func (h *SubscriptionsHandler) List(c *fiber.Ctx) error {
	workspaceID, userID, err := h.verify(c)
	if err != nil {
		return err
	}

	groupID := c.Query(signing.ParamSubscriptionID)
	flag := c.Query(signing.ParamChangeFlag)
	if groupID != "" && (flag == "0" || flag == "1") {
		change := map[string]bool{groupID: flag == "1"}
		if err := h.subscriptions.ApplyChanges(c.UserContext(), workspaceID, userID, change); err != nil {
			return err
		}
	}

	listing, err := h.subscriptions.ListForUser(c.UserContext(), workspaceID, userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.SubscriptionListResponse{Subscriptions: listing})
}

// Update handles POST /subscriptions.
func (h *SubscriptionsHandler) Update(c *fiber.Ctx) error {
	workspaceID, userID, err := h.verify(c)
	if err != nil {
		return err
	}

	var req dto.UpdateSubscriptionsRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid payload", nil)
	}
	if len(req.Changes) == 0 {
		return util.NewValidationError("changes required", nil)
	}

	if err := h.subscriptions.ApplyChanges(c.UserContext(), workspaceID, userID, req.Changes); err != nil {
		return err
	}

	listing, err := h.subscriptions.ListForUser(c.UserContext(), workspaceID, userID)
	if err != nil {
		return err
	}
	return c.JSON(dto.SubscriptionListResponse{Subscriptions: listing})
}
