package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/cache"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tag"
	"github.com/OussamaRhimi/tender-mvp/internal/utils"
	"github.com/gin-gonic/gin"
)

type TagStore interface {
	All(ctx context.Context) ([]tag.Tag, error)
	GetByID(ctx context.Context, id int64) (tag.Tag, error)
	Create(ctx context.Context, name string, parentID *int64) (tag.Tag, error)
	Update(ctx context.Context, id int64, name string, parentID *int64) (tag.Tag, error)
	Delete(ctx context.Context, id int64) error
	ListSummaries(ctx context.Context, f tag.ListFilter) ([]tag.Summary, int, error)
}

type TagsHandler struct {
	store TagStore
	cache cache.Cache
}

func NewTagsHandler(store TagStore, c cache.Cache) *TagsHandler {
	return &TagsHandler{store: store, cache: c}
}

func (h *TagsHandler) All(ctx *gin.Context) {
	h.serveTaxonomy(ctx, utils.TagsAllKey, func(tags []tag.Tag) interface{} {
		out := make([]tag.Option, 0, len(tags))
		for _, t := range tags {
			out = append(out, tag.Option{ID: t.ID, Name: t.Name})
		}
		return out
	})
}

func (h *TagsHandler) Parents(ctx *gin.Context) {
	h.serveTaxonomy(ctx, utils.TagsParentsKey, func(tags []tag.Tag) interface{} {
		out := make([]tag.Option, 0)
		for _, t := range tags {
			if t.IsTopLevel() {
				out = append(out, tag.Option{ID: t.ID, Name: t.Name})
			}
		}
		return out
	})
}

func (h *TagsHandler) Tree(ctx *gin.Context) {
	h.serveTaxonomy(ctx, utils.TagsTreeKey, func(tags []tag.Tag) interface{} {
		return tag.BuildTree(tags)
	})
}

// serveTaxonomy answers from the cache when it can and fills it on a miss.
func (h *TagsHandler) serveTaxonomy(ctx *gin.Context, key string, shape func([]tag.Tag) interface{}) {
	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	if h.cache != nil {
		if body, ok := h.cache.Get(cctx, key); ok {
			ctx.Header("X-Cache", "HIT")
			RespondJSONBytesWithETag(ctx, http.StatusOK, body)
			return
		}
	}

	tags, err := h.store.All(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not fetch tags", err)
		return
	}

	body, err := json.Marshal(shape(tags))
	if err != nil {
		RespondInternal(ctx, "Could not fetch tags", err)
		return
	}

	if h.cache != nil {
		h.cache.Set(cctx, key, body)
	}

	ctx.Header("X-Cache", "MISS")
	RespondJSONBytesWithETag(ctx, http.StatusOK, body)
}

func (h *TagsHandler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	h.cache.Delete(context.WithoutCancel(ctx), utils.TaxonomyKeys()...)
}

func (h *TagsHandler) List(ctx *gin.Context) {
	page, ok := queryPage(ctx)
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	items, total, err := h.store.ListSummaries(cctx, tag.ListFilter{
		Search: ctx.Query("search"),
		Limit:  utils.AdminPageSize,
		Offset: utils.Offset(page, utils.AdminPageSize),
	})
	if err != nil {
		RespondInternal(ctx, "Could not fetch tags", err)
		return
	}

	ctx.JSON(http.StatusOK, pageBody("tags", items, total, page, utils.AdminPageSize))
}

func respondTagError(ctx *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, tag.ErrNotFound):
		RespondNotFound(ctx, "Tag not found")
	case errors.Is(err, tag.ErrNameRequired):
		RespondBadRequest(ctx, "Tag name is required", nil)
	case errors.Is(err, tag.ErrParentNotFound):
		RespondBadRequest(ctx, "Parent tag not found", nil)
	case errors.Is(err, tag.ErrParentNotTopLevel):
		RespondBadRequest(ctx, "Parent tag must be a top-level category", nil)
	case errors.Is(err, tag.ErrSelfParent):
		RespondBadRequest(ctx, "A tag cannot be its own parent", nil)
	case errors.Is(err, tag.ErrHasChildren):
		RespondBadRequest(ctx, "Tag has subcategories", nil)
	case errors.Is(err, tag.ErrInUse):
		RespondBadRequest(ctx, "Tag is used by existing tenders", nil)
	default:
		RespondInternal(ctx, "Could not "+op+" tag", err)
	}
}

func (h *TagsHandler) Create(ctx *gin.Context) {
	var req tag.WriteRequest
	if !BindJSON(ctx, &req) {
		return
	}

	name, parentID, err := req.Normalize()
	if err != nil {
		respondTagError(ctx, "create", err)
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	created, err := h.store.Create(cctx, name, parentID)
	if err != nil {
		respondTagError(ctx, "create", err)
		return
	}

	h.invalidate(cctx)

	ctx.JSON(http.StatusCreated, created)
}

func (h *TagsHandler) Update(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req tag.WriteRequest
	if !BindJSON(ctx, &req) {
		return
	}

	name, parentID, err := req.Normalize()
	if err != nil {
		respondTagError(ctx, "update", err)
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	updated, err := h.store.Update(cctx, id, name, parentID)
	if err != nil {
		respondTagError(ctx, "update", err)
		return
	}

	h.invalidate(cctx)

	ctx.JSON(http.StatusOK, updated)
}

func (h *TagsHandler) Delete(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := h.store.Delete(cctx, id); err != nil {
		respondTagError(ctx, "delete", err)
		return
	}

	h.invalidate(cctx)
	slog.Default().InfoContext(cctx, "tag deleted", "tag_id", id)

	ctx.JSON(http.StatusOK, gin.H{"message": "Tag deleted successfully"})
}
