package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/notification"
	"github.com/gin-gonic/gin"
)

type NotificationStore interface {
	ListForUser(ctx context.Context, userID int64) ([]notification.Notification, error)
	MarkRead(ctx context.Context, userID, id int64) error
}

type NotificationsHandler struct {
	store NotificationStore
}

func NewNotificationsHandler(store NotificationStore) *NotificationsHandler {
	return &NotificationsHandler{store: store}
}

func (h *NotificationsHandler) List(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	items, err := h.store.ListForUser(cctx, a.ID)
	if err != nil {
		RespondInternal(ctx, "Could not fetch notifications", err)
		return
	}

	ctx.JSON(http.StatusOK, items)
}

// MarkRead only touches notifications owned by the caller; others look unknown.
func (h *NotificationsHandler) MarkRead(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.store.MarkRead(cctx, a.ID, id); err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			RespondNotFound(ctx, "Notification not found")
			return
		}
		RespondInternal(ctx, "Could not update notification", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
