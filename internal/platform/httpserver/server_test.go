package httpserver

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSetsTimeouts(t *testing.T) {
	h := http.NewServeMux()
	srv := New(":0", h)

	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, h, srv.Handler)
	assert.Equal(t, readHeaderTimeout, srv.ReadHeaderTimeout)
	assert.Equal(t, writeTimeout, srv.WriteTimeout)
	assert.Positive(t, srv.IdleTimeout)
}
