package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/PostFeed/internal/app"
	"github.com/PostFeed/internal/domain"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxBodyBytes = 1 << 16

type feedResponse struct {
	ID    string       `json:"id"`
	State app.Snapshot `json:"state"`
}

type searchRequest struct {
	Term string `json:"term"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// FeedHandler exposes feed sessions over HTTP.
type FeedHandler struct {
	sessions *app.SessionRegistry
}

func (h *FeedHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, snap, err := h.sessions.Open(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feedResponse{ID: id, State: snap})
}

func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{ID: id, State: c.Snapshot()})
}

func (h *FeedHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FeedHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	c, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := c.LoadMore(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{ID: id, State: snap})
}

func (h *FeedHandler) Search(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	c, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := c.Search(r.Context(), req.Term)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedResponse{ID: id, State: snap})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRepositoryQuery):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Feed request failed", "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.Method + " " + r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				name = r.Method + " " + tmpl
			}
		}
		ctx, span := otel.Tracer("postfeed/http").Start(r.Context(), name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.method", r.Method)),
		)
		defer span.End()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
