package handlers_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/actorctx"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/OussamaRhimi/tender-mvp/internal/http/handlers"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func multipartSubmit(t *testing.T, fields map[string]string, fileName string, file []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestSubmitMultipartStoresFileAsSource(t *testing.T) {
	app := newTestApp(t)
	buyer := app.createUser(t, "buyer@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	g := app.createTag(t, "IT", nil)

	body, ct := multipartSubmit(t, map[string]string{
		"title":       "Servers",
		"description": "Rack servers",
		"deadline":    "2030-05-01",
		"source":      "https://ignored.example.org",
		"tags":        fmt.Sprintf(`["%d"]`, g.ID),
	}, "rfp.pdf", []byte("%PDF-1.4"))

	req := httptest.NewRequest(http.MethodPost, "/api/tenders/new", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(app.session(t, buyer))
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res submitResponse
	decode(t, w, &res)
	require.Equal(t, tender.StagePending, res.Status)
	require.NotNil(t, res.Tender.Source)
	require.Equal(t, "/uploads/rfp.pdf", *res.Tender.Source)
	require.Equal(t, []byte("%PDF-1.4"), app.files.saved["/uploads/rfp.pdf"])
}

func TestSubmitByAdminPublishesDirectly(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "admin@example.com", user.RoleAdmin, user.SubscriptionFull, nil)
	g := app.createTag(t, "IT", nil)

	w := app.do(t, http.MethodPost, "/api/tenders/new", gin.H{
		"title": "Direct", "description": "d", "deadline": "2030-01-01", "tags": []int64{g.ID},
	}, app.session(t, admin))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res submitResponse
	decode(t, w, &res)
	require.Equal(t, tender.StagePublished, res.Status)

	_, err := app.store.Tenders().GetByID(t.Context(), res.Tender.ID)
	require.NoError(t, err)
}

func TestSubmitValidation(t *testing.T) {
	app := newTestApp(t)
	buyer := app.createUser(t, "buyer@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	g := app.createTag(t, "IT", nil)
	cookie := app.session(t, buyer)

	tests := []struct {
		name    string
		body    gin.H
		message string
	}{
		{
			name:    "missing title",
			body:    gin.H{"description": "d", "deadline": "2030-01-01", "tags": []int64{g.ID}},
			message: "Title, description, deadline, and tags are required",
		},
		{
			name:    "tags not an array",
			body:    gin.H{"title": "t", "description": "d", "deadline": "2030-01-01", "tags": "abc"},
			message: "Invalid tags format",
		},
		{
			name:    "empty tags",
			body:    gin.H{"title": "t", "description": "d", "deadline": "2030-01-01", "tags": []int64{}},
			message: "Invalid tags format",
		},
		{
			name:    "unknown tag",
			body:    gin.H{"title": "t", "description": "d", "deadline": "2030-01-01", "tags": []int64{g.ID, 777}},
			message: "Unknown tag",
		},
		{
			name:    "bad deadline",
			body:    gin.H{"title": "t", "description": "d", "deadline": "01/02/2030", "tags": []int64{g.ID}},
			message: "Invalid deadline",
		},
		{
			name:    "source not a url",
			body:    gin.H{"title": "t", "description": "d", "deadline": "2030-01-01", "tags": []int64{g.ID}, "source": "javascript:alert(1)"},
			message: "Source must be an http(s) URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, http.MethodPost, "/api/tenders/new", tt.body, cookie)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			require.Equal(t, tt.message, errorOf(t, w).Error.Message)
		})
	}

	page, err := app.store.Tenders().ListPending(t.Context(), tender.Filter{})
	require.NoError(t, err)
	require.Zero(t, page.Total)
}

func TestDoubleSubmitCreatesTwoPendingTenders(t *testing.T) {
	app := newTestApp(t)
	buyer := app.createUser(t, "buyer@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	g := app.createTag(t, "IT", nil)
	cookie := app.session(t, buyer)

	body := gin.H{"title": "Twice", "description": "d", "deadline": "2030-01-01", "tags": []int64{g.ID}}
	for i := 0; i < 2; i++ {
		w := app.do(t, http.MethodPost, "/api/tenders/new", body, cookie)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	page, err := app.store.Tenders().ListPending(t.Context(), tender.Filter{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
}

func TestDeleteTenderOwnership(t *testing.T) {
	app := newTestApp(t)
	owner := app.createUser(t, "owner@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	stranger := app.createUser(t, "stranger@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	admin := app.createUser(t, "admin@example.com", user.RoleAdmin, user.SubscriptionFull, nil)
	g := app.createTag(t, "IT", nil)

	first := app.submit(t, owner, "first", tender.StagePublished, g.ID)
	second := app.submit(t, owner, "second", tender.StagePublished, g.ID)

	w := app.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/tenders/%d", first.ID), nil, app.session(t, stranger))
	require.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/tenders/%d", first.ID), nil, app.session(t, owner))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/tenders/%d", second.ID), nil, app.session(t, admin))
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/tenders/%d", second.ID), nil, app.session(t, admin))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/tenders/%d", first.ID), nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMyTendersListsOnlyOwn(t *testing.T) {
	app := newTestApp(t)
	me := app.createUser(t, "me@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	other := app.createUser(t, "other@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	g := app.createTag(t, "IT", nil)

	app.submit(t, me, "mine", tender.StagePublished, g.ID)
	app.submit(t, other, "theirs", tender.StagePublished, g.ID)

	w := app.do(t, http.MethodGet, "/api/inbox/my-tenders", nil, app.session(t, me))
	require.Equal(t, http.StatusOK, w.Code)

	var page tenderPage
	decode(t, w, &page)
	require.Equal(t, []string{"mine"}, titles(page.Tenders))
}

// fakeTenderStore lets a test pick each store result.
type fakeTenderStore struct {
	submitFn  func(ctx context.Context, sub tender.Submission, stage tender.Stage) (tender.Tender, error)
	getByIDFn func(ctx context.Context, id int64) (tender.View, error)
	searchFn  func(ctx context.Context, f tender.Filter) (tender.Page, error)
	deleteFn  func(ctx context.Context, id int64) error
}

func (f *fakeTenderStore) Submit(ctx context.Context, sub tender.Submission, stage tender.Stage) (tender.Tender, error) {
	return f.submitFn(ctx, sub, stage)
}

func (f *fakeTenderStore) GetByID(ctx context.Context, id int64) (tender.View, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeTenderStore) Search(ctx context.Context, fl tender.Filter) (tender.Page, error) {
	return f.searchFn(ctx, fl)
}

func (f *fakeTenderStore) Delete(ctx context.Context, id int64) error {
	return f.deleteFn(ctx, id)
}

func withActor(a actorctx.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(actorctx.With(c.Request.Context(), a))
		c.Next()
	}
}

func TestSubmitRemovesUploadWhenStoreFails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	files := newFakeFiles()
	store := &fakeTenderStore{
		submitFn: func(context.Context, tender.Submission, tender.Stage) (tender.Tender, error) {
			return tender.Tender{}, errors.New("connection reset")
		},
	}
	h := handlers.NewTendersHandler(store, nil, files, nil)

	r := gin.New()
	r.POST("/tenders", withActor(actorctx.Actor{ID: 7, Role: user.RoleBuyer}), h.Submit)

	body, ct := multipartSubmit(t, map[string]string{
		"title": "t", "description": "d", "deadline": "2030-01-01", "tags": "[1]",
	}, "terms.pdf", []byte("data"))

	req := httptest.NewRequest(http.MethodPost, "/tenders", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	e := errorOf(t, w)
	require.Equal(t, "internal_error", e.Error.Code)
	require.NotContains(t, w.Body.String(), "connection reset")

	require.Equal(t, []string{"/uploads/terms.pdf"}, files.removed)
	require.Empty(t, files.saved)
}

func TestSearchStoreFailureIsGeneric500(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeTenderStore{
		searchFn: func(context.Context, tender.Filter) (tender.Page, error) {
			return tender.Page{}, errors.New("pq: relation does not exist")
		},
	}
	h := handlers.NewTendersHandler(store, nil, nil, nil)

	r := gin.New()
	r.POST("/search", h.Search)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotContains(t, w.Body.String(), "relation")
}

func TestSearchPassesFilterToStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got tender.Filter
	store := &fakeTenderStore{
		searchFn: func(_ context.Context, f tender.Filter) (tender.Page, error) {
			got = f
			return tender.Page{Items: []tender.View{}}, nil
		},
	}
	h := handlers.NewTendersHandler(store, nil, nil, nil)

	r := gin.New()
	r.POST("/search", h.Search)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewBufferString(`{"title":"road","tag":"3","subtag":"","location":"Tunis","page":2}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "road", got.Title)
	require.NotNil(t, got.TagID)
	require.Equal(t, int64(3), *got.TagID)
	require.Nil(t, got.SubtagID)
	require.Equal(t, "Tunis", got.Location)
	require.Equal(t, 5, got.Limit)
	require.Equal(t, 5, got.Offset)
	require.Nil(t, got.AllowedCategoryID)
}

func TestSourceCannotPointAtAnotherTendersUpload(t *testing.T) {
	app := newTestApp(t)
	app.files.prefix = "http://files.test/tenders/"

	admin := app.createUser(t, "admin@example.com", user.RoleAdmin, user.SubscriptionFull, nil)
	owner := app.createUser(t, "owner@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	other := app.createUser(t, "other@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	g := app.createTag(t, "IT", nil)

	body, ct := multipartSubmit(t, map[string]string{
		"title": "Owner", "description": "d", "deadline": "2030-01-01", "tags": fmt.Sprintf("[%d]", g.ID),
	}, "owner.pdf", []byte("%PDF"))
	req := httptest.NewRequest(http.MethodPost, "/api/tenders/new", body)
	req.Header.Set("Content-Type", ct)
	req.AddCookie(app.session(t, owner))
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var uploaded submitResponse
	decode(t, w, &uploaded)
	fileURL := *uploaded.Tender.Source
	require.Equal(t, "http://files.test/tenders/owner.pdf", fileURL)

	w = app.do(t, http.MethodPost, "/api/tenders/new", gin.H{
		"title": "Copycat", "description": "d", "deadline": "2030-01-01", "tags": []int64{g.ID}, "source": fileURL,
	}, app.session(t, other))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Source must link outside the upload store", errorOf(t, w).Error.Message)

	w = app.do(t, http.MethodPost, "/api/tenders/new", gin.H{
		"title": "Linked", "description": "d", "deadline": "2030-01-01", "tags": []int64{g.ID}, "source": "https://example.org/rfp.pdf",
	}, app.session(t, other))
	require.Equal(t, http.StatusCreated, w.Code)

	var linked submitResponse
	decode(t, w, &linked)

	w = app.do(t, http.MethodPost, fmt.Sprintf("/api/admin/tenders/reject/%d", linked.Tender.ID), nil, app.session(t, admin))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, app.files.Removed())

	w = app.do(t, http.MethodPost, fmt.Sprintf("/api/admin/tenders/reject/%d", uploaded.Tender.ID), nil, app.session(t, admin))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{fileURL}, app.files.Removed())
}

func TestDeletingLinkedTenderLeavesStoreAlone(t *testing.T) {
	app := newTestApp(t)
	owner := app.createUser(t, "owner@example.com", user.RoleBuyer, user.SubscriptionFull, nil)
	g := app.createTag(t, "IT", nil)

	link := "https://example.org/rfp.pdf"
	tn, err := app.store.Tenders().Submit(t.Context(), tender.Submission{
		Title: "Linked", Description: "d", Deadline: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Source: &link, BuyerID: owner.ID, TagIDs: []int64{g.ID},
	}, tender.StagePublished)
	require.NoError(t, err)

	w := app.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/tenders/%d", tn.ID), nil, app.session(t, owner))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, app.files.Removed())
}
