// Package handler publishes the credential signing key.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	jose "github.com/go-jose/go-jose/v3"

	dErrors "vcissuer/pkg/domain-errors"
	"vcissuer/pkg/platform/httputil"
)

// KeyPublisher returns the public key set relying parties verify against.
type KeyPublisher interface {
	PublicJWKS(ctx context.Context) (jose.JSONWebKeySet, error)
}

type Handler struct {
	keys   KeyPublisher
	logger *slog.Logger
}

func New(keys KeyPublisher, logger *slog.Logger) *Handler {
	return &Handler{keys: keys, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/.well-known/jwks.json", h.HandleJWKS)
}

// HandleJWKS implements GET /.well-known/jwks.json.
func (h *Handler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	set, err := h.keys.PublicJWKS(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load signing key", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "signing key unavailable"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, set)
}
