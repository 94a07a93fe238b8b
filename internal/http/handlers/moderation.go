package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/OussamaRhimi/tender-mvp/internal/storage"
	"github.com/OussamaRhimi/tender-mvp/internal/utils"
	"github.com/gin-gonic/gin"
)

type ModerationStore interface {
	ListPending(ctx context.Context, f tender.Filter) (tender.Page, error)
	GetPending(ctx context.Context, id int64) (tender.View, error)
	Approve(ctx context.Context, pendingID int64) (tender.Tender, error)
	Reject(ctx context.Context, pendingID int64) (tender.Tender, error)
}

// ModerationHandler serves the admin review queue.
type ModerationHandler struct {
	store ModerationStore
	files storage.FileStore
	prom  *observability.Prom
}

func NewModerationHandler(store ModerationStore, files storage.FileStore, prom *observability.Prom) *ModerationHandler {
	return &ModerationHandler{store: store, files: files, prom: prom}
}

func (h *ModerationHandler) List(ctx *gin.Context) {
	page, ok := queryPage(ctx)
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := h.store.ListPending(cctx, tender.Filter{
		Query:  ctx.Query("search"),
		Limit:  utils.AdminPageSize,
		Offset: utils.Offset(page, utils.AdminPageSize),
	})
	if err != nil {
		RespondInternal(ctx, "Could not fetch pending tenders", err)
		return
	}

	ctx.JSON(http.StatusOK, pageBody("tenders", res.Items, res.Total, page, utils.AdminPageSize))
}

func (h *ModerationHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	v, err := h.store.GetPending(cctx, id)
	if err != nil {
		if errors.Is(err, tender.ErrPendingNotFound) {
			RespondNotFound(ctx, "Pending tender not found")
			return
		}
		RespondInternal(ctx, "Could not fetch pending tender", err)
		return
	}

	ctx.JSON(http.StatusOK, v)
}

func (h *ModerationHandler) Approve(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	published, err := h.store.Approve(cctx, id)
	if err != nil {
		if errors.Is(err, tender.ErrPendingNotFound) {
			RespondNotFound(ctx, "Pending tender not found")
			return
		}
		RespondInternal(ctx, "Could not approve tender", err)
		return
	}

	h.prom.IncDecision("approved")

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Tender approved",
		"tender":  published,
	})
}

// Reject deletes the pending tender for good, including an uploaded attachment.
func (h *ModerationHandler) Reject(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	rejected, err := h.store.Reject(cctx, id)
	if err != nil {
		if errors.Is(err, tender.ErrPendingNotFound) {
			RespondNotFound(ctx, "Pending tender not found")
			return
		}
		RespondInternal(ctx, "Could not reject tender", err)
		return
	}

	h.prom.IncDecision("rejected")

	if rejected.Source != nil && h.files != nil && h.files.Owns(*rejected.Source) {
		if err := h.files.Remove(cctx, *rejected.Source); err != nil {
			slog.Default().WarnContext(cctx, "could not remove rejected tender file", "url", *rejected.Source, "err", err)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Tender rejected"})
}
