// Package handler exposes the userinfo endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcissuer/internal/userinfo"
	"vcissuer/pkg/platform/httputil"
)

type Service interface {
	CredentialStatus(ctx context.Context, req *userinfo.Request) (*userinfo.Result, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/userinfo", h.HandleUserInfo)
}

// HandleUserInfo implements POST /userinfo. The credential is not in the
// response; 202 says it is on its way.
func (h *Handler) HandleUserInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.service.CredentialStatus(ctx, &userinfo.Request{
		Authorization: r.Header.Get("Authorization"),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "userinfo request failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, result)
}
