package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-identity/internal/events"
	"github.com/spec-kit/storefront-identity/internal/service"
)

// StartNotificationWorker subscribes notification delivery to identity events
// and returns the event types it now covers.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) []events.EventType {
	if notificationService == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	subscribed := notificationService.RegisterHandlers()
	names := make([]string, len(subscribed))
	for i, et := range subscribed {
		names[i] = string(et)
	}
	logger.Info("notification worker started", zap.Strings("events", names))
	return subscribed
}
