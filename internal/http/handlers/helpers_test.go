package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/auth"
	"github.com/OussamaRhimi/tender-mvp/internal/cache"
	"github.com/OussamaRhimi/tender-mvp/internal/config"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tag"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	apphttp "github.com/OussamaRhimi/tender-mvp/internal/http"
	"github.com/OussamaRhimi/tender-mvp/internal/notifications"
	"github.com/OussamaRhimi/tender-mvp/internal/repo/memory"
	"github.com/OussamaRhimi/tender-mvp/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

var errSMTPDown = errors.New("smtp: connection refused")

func ptr(v int64) *int64 { return &v }

// fakeFiles stores uploads in memory under prefix, the way an object store
// serves them from its public URL.
type fakeFiles struct {
	mu      sync.Mutex
	prefix  string
	saved   map[string][]byte
	removed []string
	saveErr error
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{prefix: "/uploads/", saved: make(map[string][]byte)}
}

func (f *fakeFiles) Owns(url string) bool {
	return strings.HasPrefix(url, f.prefix) && len(url) > len(f.prefix)
}

func (f *fakeFiles) Removed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeFiles) Save(_ context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := f.prefix + name
	f.saved[url] = b
	return url, nil
}

func (f *fakeFiles) Remove(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
	delete(f.saved, url)
	return nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []notifications.Email
	err  error
}

func (m *recordingMailer) Send(_ context.Context, e notifications.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

func (m *recordingMailer) Sent() []notifications.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notifications.Email(nil), m.sent...)
}

// testApp is the full router over the in-memory store.
type testApp struct {
	router *gin.Engine
	store  *memory.Store
	jwt    *auth.Manager
	files  *fakeFiles
	mailer *recordingMailer
	cfg    config.Config
}

func testConfig() config.Config {
	return config.Config{
		Env:                "test",
		Store:              "memory",
		JWTSecret:          testSecret,
		SessionTTLDays:     7,
		ResetTokenTTLMins:  60,
		AppURL:             "http://app.test",
		RateLimitPerMinute: 1000,
		MaxBodyBytes:       1 << 20,
		UploadPublicPath:   "/uploads",
		ContactEmailTo:     "ops@example.com",
		CacheTTLSeconds:    60,
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	store := memory.NewStore()

	app := &testApp{
		store:  store,
		jwt:    auth.NewManager(cfg.JWTSecret, cfg.SessionTTL()),
		files:  newFakeFiles(),
		mailer: &recordingMailer{},
		cfg:    cfg,
	}

	app.router = apphttp.NewRouter(apphttp.Deps{
		Config:         cfg,
		Users:          store.Users(),
		Tags:           store.Tags(),
		Tenders:        store.Tenders(),
		Favorites:      store.Favorites(),
		Messages:       store.Messages(),
		Notifications:  store.Notifications(),
		PasswordResets: store.PasswordResets(),
		Stats:          store.Stats(),
		Cache:          cache.NewMemory(time.Minute),
		Files:          app.files,
		Mailer:         app.mailer,
		JWT:            app.jwt,
	})

	return app
}

func (a *testApp) createUser(t *testing.T, email string, role user.Role, sub user.Subscription, parent *int64) user.User {
	t.Helper()

	hash, err := security.HashPassword("password123")
	require.NoError(t, err)

	u, err := a.store.Users().Create(context.Background(), user.CreateParams{
		FirstName:    "Test",
		LastName:     string(role),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Subscription: sub,
		ParentTagID:  parent,
	})
	require.NoError(t, err)
	return u
}

func (a *testApp) createTag(t *testing.T, name string, parent *int64) tag.Tag {
	t.Helper()
	g, err := a.store.Tags().Create(context.Background(), name, parent)
	require.NoError(t, err)
	return g
}

func (a *testApp) submit(t *testing.T, buyer user.User, title string, stage tender.Stage, tags ...int64) tender.Tender {
	t.Helper()
	tn, err := a.store.Tenders().Submit(context.Background(), tender.Submission{
		Title:       title,
		Description: title + " description",
		Deadline:    time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC),
		BuyerID:     buyer.ID,
		TagIDs:      tags,
	}, stage)
	require.NoError(t, err)
	return tn
}

func sessionCookie(t *testing.T, m *auth.Manager, u user.User) *http.Cookie {
	t.Helper()
	raw, _, err := m.Generate(auth.Identity{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		FirstName: u.FirstName,
		LastName:  u.LastName,
	})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: raw}
}

func (a *testApp) session(t *testing.T, u user.User) *http.Cookie {
	return sessionCookie(t, a.jwt, u)
}

func (a *testApp) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	decode(t, w, &e)
	return e
}

type tenderPage struct {
	Tenders     []tender.View `json:"tenders"`
	Total       int           `json:"total"`
	CurrentPage int           `json:"currentPage"`
	TotalPages  int           `json:"totalPages"`
}

func titles(views []tender.View) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, v.Title)
	}
	return out
}
