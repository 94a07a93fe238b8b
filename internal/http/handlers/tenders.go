package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/actorctx"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tag"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/OussamaRhimi/tender-mvp/internal/storage"
	"github.com/OussamaRhimi/tender-mvp/internal/utils"
	"github.com/gin-gonic/gin"
)

type TenderStore interface {
	Submit(ctx context.Context, sub tender.Submission, stage tender.Stage) (tender.Tender, error)
	GetByID(ctx context.Context, id int64) (tender.View, error)
	Search(ctx context.Context, f tender.Filter) (tender.Page, error)
	Delete(ctx context.Context, id int64) error
}

type AccountReader interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type TendersHandler struct {
	tenders TenderStore
	users   AccountReader
	files   storage.FileStore
	prom    *observability.Prom
}

func NewTendersHandler(tenders TenderStore, users AccountReader, files storage.FileStore, prom *observability.Prom) *TendersHandler {
	return &TendersHandler{tenders: tenders, users: users, files: files, prom: prom}
}

type submitJSON struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Deadline    string          `json:"deadline"`
	Location    string          `json:"location"`
	Source      string          `json:"source"`
	Tags        json.RawMessage `json:"tags"`
}

// rawTags accepts the tags field as a JSON array or as a string holding one,
// which is how the multipart form posts it.
func rawTags(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return trimmed
}

func validSourceURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Submit publishes directly for admins and queues a pending tender for everyone else.
func (h *TendersHandler) Submit(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	var in tender.SubmissionInput
	var file *multipart.FileHeader

	if ctx.ContentType() == "multipart/form-data" {
		in = tender.SubmissionInput{
			Title:       ctx.PostForm("title"),
			Description: ctx.PostForm("description"),
			Deadline:    ctx.PostForm("deadline"),
			Location:    ctx.PostForm("location"),
			Source:      ctx.PostForm("source"),
			Tags:        ctx.PostForm("tags"),
		}

		fh, err := ctx.FormFile("file")
		switch {
		case err == nil:
			file = fh
		case errors.Is(err, http.ErrMissingFile):
		default:
			RespondBadRequest(ctx, "Invalid file upload", nil)
			return
		}
	} else {
		var req submitJSON
		if !BindJSON(ctx, &req) {
			return
		}
		in = tender.SubmissionInput{
			Title:       req.Title,
			Description: req.Description,
			Deadline:    req.Deadline,
			Location:    req.Location,
			Source:      req.Source,
			Tags:        rawTags(req.Tags),
		}
	}

	sub, err := in.Validate(a.ID)
	if err != nil {
		switch {
		case errors.Is(err, tender.ErrMissingFields):
			RespondBadRequest(ctx, "Title, description, deadline, and tags are required", nil)
		case errors.Is(err, tender.ErrInvalidTags):
			RespondBadRequest(ctx, "Invalid tags format", nil)
		case errors.Is(err, tender.ErrInvalidDeadline):
			RespondBadRequest(ctx, "Invalid deadline", nil)
		default:
			RespondBadRequest(ctx, "Invalid tender", nil)
		}
		return
	}

	if file == nil && sub.Source != nil {
		if !validSourceURL(*sub.Source) {
			RespondBadRequest(ctx, "Source must be an http(s) URL", nil)
			return
		}
		// stored files belong to the tender that uploaded them; a link cannot claim one
		if h.files != nil && h.files.Owns(*sub.Source) {
			RespondBadRequest(ctx, "Source must link outside the upload store", nil)
			return
		}
	}

	cctx, cancel := withTimeout(ctx, 10*time.Second)
	defer cancel()

	var storedURL string
	if file != nil {
		storedURL, err = h.saveUpload(cctx, file)
		if err != nil {
			if errors.Is(err, storage.ErrEmptyFile) {
				RespondBadRequest(ctx, "Uploaded file is empty", nil)
				return
			}
			RespondInternal(ctx, "Could not store file", err)
			return
		}
		sub.Source = &storedURL
	}

	stage := tender.StagePending
	if a.IsAdmin() {
		stage = tender.StagePublished
	}

	t, err := h.tenders.Submit(cctx, sub, stage)
	if err != nil {
		if storedURL != "" {
			if rmErr := h.files.Remove(context.WithoutCancel(cctx), storedURL); rmErr != nil {
				slog.Default().WarnContext(cctx, "orphaned upload", "url", storedURL, "err", rmErr)
			}
		}
		if errors.Is(err, tender.ErrUnknownTag) {
			RespondBadRequest(ctx, "Unknown tag", nil)
			return
		}
		RespondInternal(ctx, "Could not create tender", err)
		return
	}

	h.prom.IncSubmitted(string(stage))

	message := "Tender submitted for review"
	if stage == tender.StagePublished {
		message = "Tender published"
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": message,
		"status":  stage,
		"tender":  t,
	})
}

func (h *TendersHandler) saveUpload(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	return h.files.Save(ctx, fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
}

type SearchRequest struct {
	Title   string  `json:"title" binding:"max=200"`
	Tag     tag.Ref `json:"tag"`
	Subtag  tag.Ref `json:"subtag"`
	Country string  `json:"country" binding:"max=200"`
	// Location is an alias of Country; the search form posts the latter.
	Location string      `json:"location" binding:"max=200"`
	Deadline string      `json:"deadline"`
	Email    string      `json:"email" binding:"max=254"`
	Page     interface{} `json:"page"`
}

// pageFromBody accepts the page as a JSON number or a numeric string.
func pageFromBody(v interface{}) (int, error) {
	switch p := v.(type) {
	case nil:
		return 1, nil
	case float64:
		if p < 1 || p != math.Trunc(p) || p > utils.MaxPage {
			return 0, utils.ErrInvalidPage
		}
		return int(p), nil
	case string:
		return utils.ParsePage(p)
	default:
		return 0, utils.ErrInvalidPage
	}
}

// Search filters published tenders. Every supplied field narrows the result.
func (h *TendersHandler) Search(ctx *gin.Context) {
	var req SearchRequest

	if ctx.Request.ContentLength != 0 {
		if !BindJSON(ctx, &req) {
			return
		}
	}

	page, err := pageFromBody(req.Page)
	if err != nil {
		RespondBadRequest(ctx, "Invalid page number", nil)
		return
	}

	location := req.Country
	if strings.TrimSpace(location) == "" {
		location = req.Location
	}

	f := tender.Filter{
		Title:    req.Title,
		TagID:    req.Tag.Ptr(),
		SubtagID: req.Subtag.Ptr(),
		Location: location,
		Email:    req.Email,
		Limit:    utils.SearchPageSize,
		Offset:   utils.Offset(page, utils.SearchPageSize),
	}

	if strings.TrimSpace(req.Deadline) != "" {
		d, err := tender.ParseDeadline(req.Deadline)
		if err != nil {
			RespondBadRequest(ctx, "Invalid deadline", nil)
			return
		}
		f.DeadlineFrom = &d
	}

	h.respondPage(ctx, f, page, utils.SearchPageSize)
}

// List backs the tenders table: one free-text search over title and buyer.
func (h *TendersHandler) List(ctx *gin.Context) {
	page, ok := queryPage(ctx)
	if !ok {
		return
	}

	f := tender.Filter{
		Query:  ctx.Query("search"),
		Limit:  utils.AdminPageSize,
		Offset: utils.Offset(page, utils.AdminPageSize),
	}

	h.respondPage(ctx, f, page, utils.AdminPageSize)
}

// Mine lists the caller's own published tenders.
func (h *TendersHandler) Mine(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	page, ok := queryPage(ctx)
	if !ok {
		return
	}

	owner := a.ID
	f := tender.Filter{
		OwnerID: &owner,
		Limit:   utils.AdminPageSize,
		Offset:  utils.Offset(page, utils.AdminPageSize),
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := h.tenders.Search(cctx, f)
	if err != nil {
		RespondInternal(ctx, "Could not fetch tenders", err)
		return
	}

	ctx.JSON(http.StatusOK, pageBody("tenders", res.Items, res.Total, page, utils.AdminPageSize))
}

func (h *TendersHandler) respondPage(ctx *gin.Context, f tender.Filter, page, pageSize int) {
	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	scope, err := h.categoryScope(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not fetch tenders", err)
		return
	}
	f.AllowedCategoryID = scope

	res, err := h.tenders.Search(cctx, f)
	if err != nil {
		RespondInternal(ctx, "Could not fetch tenders", err)
		return
	}

	ctx.JSON(http.StatusOK, pageBody("tenders", res.Items, res.Total, page, pageSize))
}

// categoryScope limits PARTIAL subscribers to their category and its subcategories.
// Anonymous callers and admins are not scoped.
func (h *TendersHandler) categoryScope(ctx context.Context) (*int64, error) {
	a, ok := actorctx.From(ctx)
	if !ok || a.IsAdmin() || h.users == nil {
		return nil, nil
	}

	u, err := h.users.GetByID(ctx, a.ID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if u.Subscription != user.SubscriptionPartial {
		return nil, nil
	}
	return u.ParentTagID, nil
}

func (h *TendersHandler) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 2*time.Second)
	defer cancel()

	v, err := h.tenders.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, tender.ErrNotFound) {
			RespondNotFound(ctx, "Tender not found")
			return
		}
		RespondInternal(ctx, "Could not fetch tender", err)
		return
	}

	ctx.JSON(http.StatusOK, v)
}

// Delete is open to admins and to the buyer who owns the tender.
func (h *TendersHandler) Delete(ctx *gin.Context) {
	a, ok := requireActor(ctx)
	if !ok {
		return
	}

	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	cctx, cancel := withTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := h.tenders.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, tender.ErrNotFound) {
			RespondNotFound(ctx, "Tender not found")
			return
		}
		RespondInternal(ctx, "Could not delete tender", err)
		return
	}

	if !a.IsAdmin() && v.BuyerID != a.ID {
		RespondForbidden(ctx, "Only an admin or the tender's owner can delete it")
		return
	}

	if err := h.tenders.Delete(cctx, id); err != nil {
		if errors.Is(err, tender.ErrNotFound) {
			RespondNotFound(ctx, "Tender not found")
			return
		}
		RespondInternal(ctx, "Could not delete tender", err)
		return
	}

	// uploaded attachments are removed with the tender; external links are left alone
	if v.Source != "" && h.files != nil && h.files.Owns(v.Source) {
		if err := h.files.Remove(cctx, v.Source); err != nil {
			slog.Default().WarnContext(cctx, "could not remove tender file", "url", v.Source, "err", err)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Tender deleted successfully"})
}
