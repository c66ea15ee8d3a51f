package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/PostFeed/internal/app"
	"github.com/PostFeed/pkg/config"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewHTTPServer(cfg *config.Config, sessions *app.SessionRegistry) *http.Server {
	return &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: NewRouter(sessions),
	}
}

// NewRouter wires the feed API, health check and metrics endpoints.
func NewRouter(sessions *app.SessionRegistry) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintf(w, "OK"); err != nil {
			slog.Warn("Failed to write health response", "error", err)
		}
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())

	h := &FeedHandler{sessions: sessions}
	api := r.PathPrefix("/api/feeds").Subrouter()
	api.Use(tracingMiddleware)
	api.HandleFunc("", h.Create).Methods("POST")
	api.HandleFunc("/{id}", h.Get).Methods("GET")
	api.HandleFunc("/{id}", h.Delete).Methods("DELETE")
	api.HandleFunc("/{id}/more", h.LoadMore).Methods("POST")
	api.HandleFunc("/{id}/search", h.Search).Methods("POST")

	return r
}
