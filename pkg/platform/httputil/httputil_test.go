package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "vcissuer/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantDesc   string
	}{
		{"not found", dErrors.New(dErrors.CodeNotFound, "session not found"), http.StatusNotFound, "not_found", "session not found"},
		{"invalid grant", dErrors.New(dErrors.CodeInvalidGrant, "authorization code expired"), http.StatusBadRequest, "invalid_grant", "authorization code expired"},
		{"unauthorized", dErrors.New(dErrors.CodeUnauthorized, ""), http.StatusUnauthorized, "unauthorized", ""},
		{"unavailable", dErrors.Wrap(errors.New("dial tcp"), dErrors.CodeUnavailable, "vendor unavailable"), http.StatusServiceUnavailable, "temporarily_unavailable", "vendor unavailable"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "server_error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
			body := decodeError(t, w)
			assert.Equal(t, tt.wantCode, body["error"])
			assert.Equal(t, tt.wantDesc, body["error_description"])
		})
	}
}
