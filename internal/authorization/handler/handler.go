// Package handler exposes the authorization and token endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcissuer/internal/authorization"
	"vcissuer/pkg/platform/httputil"
)

// SessionIDHeader carries the session id on the authorization request.
const SessionIDHeader = "session-id"

type Service interface {
	IssueAuthorizationCode(ctx context.Context, req *authorization.AuthorizationRequest) (*authorization.AuthorizationResult, error)
	IssueAccessToken(ctx context.Context, req *authorization.TokenRequest) (*authorization.TokenResult, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/authorization", h.HandleAuthorization)
	r.Post("/token", h.HandleToken)
}

// HandleAuthorization implements POST /authorization.
func (h *Handler) HandleAuthorization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := &authorization.AuthorizationRequest{SessionID: r.Header.Get(SessionIDHeader)}
	if err := httputil.PrepareRequest(req); err != nil {
		h.logger.WarnContext(ctx, "invalid authorization request", "error", err)
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.IssueAuthorizationCode(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "authorization failed",
			"session_id", req.SessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleToken implements POST /token with a form encoded body.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeForm(w, r, h.logger, func(get func(string) string) authorization.TokenRequest {
		return authorization.TokenRequest{
			GrantType:   get("grant_type"),
			Code:        get("code"),
			RedirectURI: get("redirect_uri"),
		}
	})
	if !ok {
		return
	}

	result, err := h.service.IssueAccessToken(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "token request failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}
