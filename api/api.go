// Package api exposes the dispatch/status protocol over HTTP and provides
// the matching client.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/retouchd/retouch"
	"github.com/retouchd/retouch/edit"
	"github.com/retouchd/retouch/engine"
)

const maxBodyBytes = 32 << 20

// Handler serves the edit protocol.
type Handler struct {
	svc    *edit.Service
	eng    *engine.Engine
	logger *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates the protocol handler.
func NewHandler(svc *edit.Service, eng *engine.Engine, opts ...Option) *Handler {
	h := &Handler{svc: svc, eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds the HTTP surface.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/edits", h.dispatch)
		r.Get("/edits/{jobID}", h.status)
		r.Delete("/edits/{jobID}", h.cancel)
		r.Get("/stats", h.stats)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, retouch.ErrInvalidRequest):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid edit request"})
	case errors.Is(err, retouch.ErrJobNotFound):
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "job not found"})
	case errors.Is(err, retouch.ErrInvalidState):
		h.writeJSON(w, http.StatusConflict, errorResponse{Error: "job can no longer be cancelled"})
	default:
		h.logger.Error("request failed", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.eng.Store().Ping(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req edit.DispatchRequest
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	rcpt, err := h.svc.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, rcpt)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, st)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(r.Context(), chi.URLParam(r, "jobID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.eng.Stats(r.Context(), r.URL.Query().Get("queue"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}
