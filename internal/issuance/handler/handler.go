// Package handler exposes the vendor completion callback.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vcissuer/internal/issuance"
	"vcissuer/pkg/platform/httputil"
)

type Service interface {
	ProcessCallback(ctx context.Context, req issuance.CallbackRequest) (*issuance.Result, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/callback", h.HandleCallback)
}

type callbackResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}

// HandleCallback implements POST /callback. A duplicate callback is
// acknowledged so the vendor stops redelivering it.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[issuance.CallbackRequest](w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.service.ProcessCallback(ctx, *req)
	if err != nil {
		h.logger.ErrorContext(ctx, "callback processing failed",
			"vendor_session_id", req.SessionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Status == issuance.StatusUnauthorized {
		status = http.StatusUnauthorized
	}
	httputil.WriteJSON(w, status, callbackResponse{
		Status:    string(result.Status),
		SessionID: result.SessionID.String(),
		Message:   result.Message,
	})
}
