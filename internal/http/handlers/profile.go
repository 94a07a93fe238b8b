package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type ProfileStore interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
	UpdateProfile(ctx context.Context, id int64, req user.UpdateProfileRequest) (user.User, error)
}

type ProfileHandler struct {
	users ProfileStore
}

func NewProfileHandler(users ProfileStore) *ProfileHandler {
	return &ProfileHandler{users: users}
}

func (h *ProfileHandler) Get(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, a.ID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// the account was deleted while the session was still valid
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not load profile", err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *ProfileHandler) Update(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	var req user.UpdateProfileRequest

	if !BindJSON(ctx, &req) {
		return
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Country = strings.TrimSpace(req.Country)
	req.Company = strings.TrimSpace(req.Company)

	if req.FirstName == "" || req.LastName == "" {
		RespondBadRequest(ctx, "First and last name are required", nil)
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	u, err := h.users.UpdateProfile(cctx, a.ID, req)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not update profile", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": u})
}
