package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/subscription-service/internal/events"
	"github.com/spec-kit/subscription-service/internal/repository"
)

// StartCacheInvalidator subscribes the listing cache to subscription-change
// events so stale listings are dropped as soon as changes land.
func StartCacheInvalidator(dispatcher events.Dispatcher, cache repository.ListingCache, logger *zap.Logger) {
	if dispatcher == nil || cache == nil {
		return
	}
	dispatcher.Subscribe(events.EventSubscriptionChanged, func(ctx context.Context, event events.Event) error {
		cache.Invalidate(ctx, event.WorkspaceID, event.UserID)
		logger.Debug("listing cache invalidated",
			zap.String("workspace_id", event.WorkspaceID),
			zap.String("user_id", event.UserID))
		return nil
	})
}
