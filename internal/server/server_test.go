package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnishAi/internal/events"
	"furnishAi/internal/storage"
	"furnishAi/internal/studio"
)

func TestRouter(t *testing.T) {
	svc := studio.New(studio.Deps{Store: storage.NewInMemoryStore()})
	static := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("index"))
	})
	router := Router(studio.Handler{Service: svc}, events.NewBroker(), static)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"style":"Modern Minimalist"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.Equal(t, "index", rec.Body.String())
}

func TestNew(t *testing.T) {
	svc := studio.New(studio.Deps{Store: storage.NewInMemoryStore()})
	srv := New("8181", studio.Handler{Service: svc}, events.NewBroker(), nil)
	assert.Equal(t, ":8181", srv.Addr)
	assert.NotNil(t, srv.Handler)
}
