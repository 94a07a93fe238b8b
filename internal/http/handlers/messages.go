package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/message"
	"github.com/gin-gonic/gin"
)

type MessageStore interface {
	Send(ctx context.Context, senderID int64, receiverEmail, content string) (message.Message, error)
	ListReceived(ctx context.Context, userID int64) ([]message.Received, error)
}

type MessagesHandler struct {
	store MessageStore
}

func NewMessagesHandler(store MessageStore) *MessagesHandler {
	return &MessagesHandler{store: store}
}

func (h *MessagesHandler) Send(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req message.SendRequest
	if !BindJSON(ctx, &req) {
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		RespondBadRequest(ctx, "Message content is required", nil)
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	msg, err := h.store.Send(cctx, a.ID, normalizeEmail(req.To), content)
	if err != nil {
		if errors.Is(err, message.ErrRecipientNotFound) {
			RespondNotFound(ctx, "Recipient not found.")
			return
		}
		RespondInternal(ctx, "Could not send message", err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": "Message sent", "data": msg})
}

func (h *MessagesHandler) List(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	items, err := h.store.ListReceived(cctx, a.ID)
	if err != nil {
		RespondInternal(ctx, "Could not fetch messages", err)
		return
	}

	ctx.JSON(http.StatusOK, items)
}
