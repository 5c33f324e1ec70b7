// Package handler exposes the session creation endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcissuer/internal/platform/middleware"
	"vcissuer/internal/sessionrequest"
	"vcissuer/pkg/platform/httputil"
)

type Service interface {
	CreateSession(ctx context.Context, req *sessionrequest.Request) (*sessionrequest.Result, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/session", h.HandleSession)
}

// HandleSession implements POST /session.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[sessionrequest.Request](w, r, h.logger)
	if !ok {
		return
	}
	req.ClientIPAddress = middleware.GetClientIP(ctx)

	result, err := h.service.CreateSession(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "session request failed",
			"client_id", req.ClientID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
