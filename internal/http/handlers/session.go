package handlers

import (
	"context"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/actorctx"
	"github.com/OussamaRhimi/tender-mvp/internal/utils"
	"github.com/gin-gonic/gin"
)

// withTimeout bounds store calls while keeping the request's trace and actor.
func withTimeout(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

// requireActor reads the caller placed in the request context by the session middleware.
func requireActor(ctx *gin.Context) (actorctx.Actor, bool) {
	a, ok := actorctx.From(ctx.Request.Context())
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Authentication required")
		return actorctx.Actor{}, false
	}
	return a, true
}

func pathID(ctx *gin.Context, name string) (int64, bool) {
	id, err := utils.ParseID(ctx.Param(name))
	if err != nil {
		RespondBadRequest(ctx, "Invalid id", nil)
		return 0, false
	}
	return id, true
}

func queryPage(ctx *gin.Context) (int, bool) {
	page, err := utils.ParsePage(ctx.Query("page"))
	if err != nil {
		RespondBadRequest(ctx, "Invalid page number", nil)
		return 0, false
	}
	return page, true
}

// pageBody is the list envelope shared by every paginated route.
func pageBody(key string, items interface{}, total, page, pageSize int) gin.H {
	return gin.H{
		key:           items,
		"total":       total,
		"currentPage": page,
		"totalPages":  utils.TotalPages(total, pageSize),
	}
}
