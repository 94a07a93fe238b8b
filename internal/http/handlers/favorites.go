package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/favorite"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/gin-gonic/gin"
)

type FavoriteStore interface {
	Add(ctx context.Context, userID, tenderID int64) (bool, error)
	Remove(ctx context.Context, userID, tenderID int64) error
	List(ctx context.Context, userID int64) ([]tender.View, error)
}

type FavoritesHandler struct {
	store FavoriteStore
}

func NewFavoritesHandler(store FavoriteStore) *FavoritesHandler {
	return &FavoritesHandler{store: store}
}

// Add is idempotent: a repeat leaves the single existing row in place.
func (h *FavoritesHandler) Add(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req favorite.Request
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	created, err := h.store.Add(cctx, a.ID, req.TenderID)
	if err != nil {
		if errors.Is(err, favorite.ErrTenderNotFound) {
			RespondNotFound(ctx, "Tender not found")
			return
		}
		RespondInternal(ctx, "Could not add favorite", err)
		return
	}

	if !created {
		ctx.JSON(http.StatusOK, gin.H{"message": "Already favorited"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Added to favorites"})
}

func (h *FavoritesHandler) Remove(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req favorite.Request
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.store.Remove(cctx, a.ID, req.TenderID); err != nil {
		if errors.Is(err, favorite.ErrNotFound) {
			RespondNotFound(ctx, "Favorite not found")
			return
		}
		RespondInternal(ctx, "Could not remove favorite", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": "Removed from favorites"})
}

func (h *FavoritesHandler) List(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	items, err := h.store.List(cctx, a.ID)
	if err != nil {
		RespondInternal(ctx, "Could not fetch favorites", err)
		return
	}

	ctx.JSON(http.StatusOK, items)
}
