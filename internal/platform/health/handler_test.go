package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadiness(t *testing.T) {
	up := NewCheckFunc("redis", func(context.Context) error { return nil })
	down := NewCheckFunc("kafka", func(context.Context) error { return errors.New("no brokers") })

	t.Run("all up", func(t *testing.T) {
		h := New("test")
		h.Add(up)
		w := get(t, h, "/health/ready")

		require.Equal(t, http.StatusOK, w.Code)
		var got ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, ReadinessResponse{Status: "ready", Checks: map[string]string{"redis": "up"}}, got)
	})

	t.Run("one down", func(t *testing.T) {
		h := New("test")
		h.Add(up, down)
		w := get(t, h, "/health/ready")

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		var got ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "not_ready", got.Status)
		assert.Equal(t, "down: no brokers", got.Checks["kafka"])
		assert.Equal(t, "up", got.Checks["redis"])
	})

	t.Run("slow check times out", func(t *testing.T) {
		h := New("test")
		h.checkTimeout = 10 * time.Millisecond
		h.Add(NewCheckFunc("dynamodb", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}))
		w := get(t, h, "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "deadline exceeded")
	})
}

func TestLivenessAndStatus(t *testing.T) {
	h := New("staging")
	h.Add(NewCheckFunc("down", func(context.Context) error { return errors.New("x") }))

	assert.Equal(t, http.StatusOK, get(t, h, "/health/live").Code)

	w := get(t, h, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var got StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, "staging", got.Environment)
	assert.Equal(t, Version, got.Version)
}
