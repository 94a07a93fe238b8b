package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/notifications"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/gin-gonic/gin"
)

type ContactRequest struct {
	FirstName string `json:"firstName" binding:"required,max=80"`
	LastName  string `json:"lastName" binding:"omitempty,max=80"`
	Email     string `json:"email" binding:"required,trimmed_email"`
	Phone     string `json:"phone" binding:"required,max=40"`
	Message   string `json:"message" binding:"max=5000"`
}

type ContactHandler struct {
	mailer notifications.Mailer
	to     string
	prom   *observability.Prom
}

// NewContactHandler sends contact requests to to. An empty to makes every request fail.
func NewContactHandler(mailer notifications.Mailer, to string, prom *observability.Prom) *ContactHandler {
	return &ContactHandler{mailer: mailer, to: strings.TrimSpace(to), prom: prom}
}

var errNoContactRecipient = errors.New("no contact recipient configured")

func (h *ContactHandler) Send(ctx *gin.Context) {
	var req ContactRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if h.to == "" {
		RespondInternal(ctx, "Could not send message", errNoContactRecipient)
		return
	}

	cctx, cancel := withTimeout(ctx, 10*time.Second)
	defer cancel()

	err := h.mailer.Send(cctx, notifications.ContactEmail(h.to, notifications.ContactInput{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     normalizeEmail(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Message:   req.Message,
	}))
	h.prom.IncEmail("contact", err)
	if err != nil {
		RespondInternal(ctx, "Could not send message", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Message sent successfully"})
}
