package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"furnishAi/internal/events"
	"furnishAi/internal/studio"
)

// New constructs the HTTP server with routes and middleware.
// staticFS may be nil when no frontend is bundled.
func New(port string, sessions studio.Handler, broker *events.Broker, staticFS http.Handler) *http.Server {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      Router(sessions, broker, staticFS),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("server ready", "addr", srv.Addr)
	return srv
}

// Router wires the API routes.
func Router(sessions studio.Handler, broker *events.Broker, staticFS http.Handler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	router.Route("/api", func(r chi.Router) {
		r.Route("/sessions", sessions.Routes)
		r.Get("/events", broker.ServeHTTP)
	})

	if staticFS != nil {
		router.Handle("/*", staticFS)
	}
	return router
}
