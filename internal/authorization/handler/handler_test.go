package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vcissuer/internal/authorization"
	dErrors "vcissuer/pkg/domain-errors"
)

const sessionID = "eeee0000-0000-0000-0000-000000000001"

type stubService struct {
	authReq  *authorization.AuthorizationRequest
	tokenReq *authorization.TokenRequest
	auth     *authorization.AuthorizationResult
	token    *authorization.TokenResult
	err      error
}

func (s *stubService) IssueAuthorizationCode(_ context.Context, req *authorization.AuthorizationRequest) (*authorization.AuthorizationResult, error) {
	s.authReq = req
	return s.auth, s.err
}

func (s *stubService) IssueAccessToken(_ context.Context, req *authorization.TokenRequest) (*authorization.TokenResult, error) {
	s.tokenReq = req
	return s.token, s.err
}

func serve(svc Service, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func authorizationRequest(sessionHeader string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/authorization", nil)
	if sessionHeader != "" {
		req.Header.Set(SessionIDHeader, sessionHeader)
	}
	return req
}

func tokenRequest(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleAuthorization(t *testing.T) {
	t.Run("returns the code", func(t *testing.T) {
		svc := &stubService{auth: &authorization.AuthorizationResult{
			AuthorizationCode: authorization.AuthorizationCode{Value: "code-1"},
			RedirectURI:       "https://rp.example/cb",
			State:             "xyz",
		}}
		w := serve(svc, authorizationRequest(sessionID))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, sessionID, svc.authReq.SessionID)
		assert.JSONEq(t, `{"authorizationCode":{"value":"code-1"},"redirect_uri":"https://rp.example/cb","state":"xyz"}`, w.Body.String())
	})

	t.Run("missing header", func(t *testing.T) {
		svc := &stubService{}
		w := serve(svc, authorizationRequest(""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, svc.authReq)
	})

	t.Run("session id is not a uuid", func(t *testing.T) {
		svc := &stubService{}
		w := serve(svc, authorizationRequest("abc"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "must be a valid uuid")
	})

	t.Run("session in wrong state", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeUnauthorized, "session is in the wrong state: SESSION_CREATED")}
		w := serve(svc, authorizationRequest(sessionID))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHandleToken(t *testing.T) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {"6a7f3c4e-0d2b-4a41-9a57-0e6c2b1f8d10"},
		"redirect_uri": {"https://rp.example/cb"},
	}

	t.Run("issues a token", func(t *testing.T) {
		svc := &stubService{token: &authorization.TokenResult{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 3600}}
		w := serve(svc, tokenRequest(form))

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, &authorization.TokenRequest{
			GrantType:   "authorization_code",
			Code:        "6a7f3c4e-0d2b-4a41-9a57-0e6c2b1f8d10",
			RedirectURI: "https://rp.example/cb",
		}, svc.tokenReq)

		var got authorization.TokenResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "tok", got.AccessToken)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	})

	t.Run("missing code", func(t *testing.T) {
		svc := &stubService{}
		bad := url.Values{"grant_type": {"authorization_code"}, "redirect_uri": {"https://rp.example/cb"}}
		w := serve(svc, tokenRequest(bad))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, svc.tokenReq)
	})

	t.Run("invalid grant", func(t *testing.T) {
		svc := &stubService{err: dErrors.New(dErrors.CodeInvalidGrant, "authorization code expired")}
		w := serve(svc, tokenRequest(form))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"error":"invalid_grant"`)
	})
}
