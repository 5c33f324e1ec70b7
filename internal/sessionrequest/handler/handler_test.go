package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcissuer/internal/platform/middleware"
	"vcissuer/internal/sessionrequest"
	dErrors "vcissuer/pkg/domain-errors"
)

type stubService struct {
	req    *sessionrequest.Request
	result *sessionrequest.Result
	err    error
}

func (s *stubService) CreateSession(_ context.Context, req *sessionrequest.Request) (*sessionrequest.Result, error) {
	s.req = req
	return s.result, s.err
}

func serve(svc Service, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(middleware.ClientIP)
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "51.149.8.29, 10.0.0.1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleSession(t *testing.T) {
	t.Run("returns the new session", func(t *testing.T) {
		svc := &stubService{result: &sessionrequest.Result{
			SessionID:   "eeee0000-0000-0000-0000-000000000001",
			State:       "Y@atr",
			RedirectURI: "https://rp.example/cb",
		}}
		w := serve(svc, `{"client_id":" ipv-core-stub ","request":"a.b.c.d.e"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ipv-core-stub", svc.req.ClientID)
		assert.Equal(t, "a.b.c.d.e", svc.req.Request)
		assert.Equal(t, "51.149.8.29", svc.req.ClientIPAddress)
		assert.JSONEq(t, `{"session_id":"eeee0000-0000-0000-0000-000000000001","state":"Y@atr","redirect_uri":"https://rp.example/cb"}`, w.Body.String())
	})

	t.Run("missing request object", func(t *testing.T) {
		svc := &stubService{}
		w := serve(svc, `{"client_id":"ipv-core-stub"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, svc.req)
	})

	t.Run("untrusted request", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeUnauthorized, "failed to verify the request")}
		w := serve(svc, `{"client_id":"ipv-core-stub","request":"a.b.c.d.e"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "unauthorized")
	})
}
