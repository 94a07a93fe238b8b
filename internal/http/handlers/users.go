package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/OussamaRhimi/tender-mvp/internal/utils"
	"github.com/gin-gonic/gin"
)

type UserAdminStore interface {
	List(ctx context.Context, f user.ListFilter) ([]user.User, int, error)
	Delete(ctx context.Context, id int64) error
}

type UsersHandler struct {
	store UserAdminStore
}

func NewUsersHandler(store UserAdminStore) *UsersHandler {
	return &UsersHandler{store: store}
}

func (h *UsersHandler) List(ctx *gin.Context) {
	page, ok := queryPage(ctx)
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	items, total, err := h.store.List(cctx, user.ListFilter{
		Search: ctx.Query("search"),
		Limit:  utils.AdminPageSize,
		Offset: utils.Offset(page, utils.AdminPageSize),
	})
	if err != nil {
		RespondInternal(ctx, "Could not fetch users", err)
		return
	}

	ctx.JSON(http.StatusOK, pageBody("users", items, total, page, utils.AdminPageSize))
}

// Delete removes an account and everything it owns. Admins cannot remove themselves.
func (h *UsersHandler) Delete(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if id == a.ID {
		RespondBadRequest(ctx, "You cannot delete your own account", nil)
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := h.store.Delete(cctx, id); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not delete user", err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
