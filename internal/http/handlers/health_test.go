package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/OussamaRhimi/tender-mvp/internal/http/handlers"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	tests := []struct {
		name     string
		checks   map[string]handlers.Pinger
		draining bool
		status   int
		body     string
	}{
		{name: "no checks", status: http.StatusOK, body: `{"status":"ready"}`},
		{name: "all up", checks: map[string]handlers.Pinger{"postgres": ok, "redis": ok}, status: http.StatusOK, body: `{"status":"ready"}`},
		{
			name:   "redis down",
			checks: map[string]handlers.Pinger{"postgres": ok, "redis": down},
			status: http.StatusServiceUnavailable,
			body:   `{"status":"not_ready","checks":{"redis":"unavailable"}}`,
		},
		{
			name:     "draining",
			checks:   map[string]handlers.Pinger{"postgres": ok},
			draining: true,
			status:   http.StatusServiceUnavailable,
			body:     `{"status":"shutting_down"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draining := tt.draining
			h := handlers.NewHealthHandler(tt.checks, func() bool { return draining })

			r := gin.New()
			r.GET("/healthz", h.Healthz)
			r.GET("/readyz", h.Readyz)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			require.Equal(t, tt.status, w.Code)
			require.JSONEq(t, tt.body, w.Body.String())

			w = httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestRouterSetsRequestIDAndSecurityHeaders(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/tenders/999", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	id := w.Header().Get("X-Request-Id")
	require.NotEmpty(t, id)
	require.Equal(t, id, errorOf(t, w).Error.RequestID)
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestNonJSONWriteIsRejected(t *testing.T) {
	app := newTestApp(t)
	u := app.createUser(t, "buyer@example.com", user.RoleBuyer, user.SubscriptionFull, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/messages", strings.NewReader("to=a&content=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(app.session(t, u))
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	require.Equal(t, "unsupported_media_type", errorOf(t, w).Error.Code)
}
