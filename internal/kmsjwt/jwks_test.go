package kmsjwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwksFixture struct {
	server *httptest.Server
	hits   atomic.Int32
	priv   *ecdsa.PrivateKey
	status atomic.Int32
	cache  string
}

func newJWKSFixture(t *testing.T, cacheControl string) *jwksFixture {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	f := &jwksFixture{priv: priv, cache: cacheControl}
	f.status.Store(http.StatusOK)

	body, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key: &priv.PublicKey, KeyID: "rp-key-1", Algorithm: "ES256", Use: "sig",
	}}})
	require.NoError(t, err)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		f.hits.Add(1)
		if f.cache != "" {
			w.Header().Set("Cache-Control", f.cache)
		}
		w.WriteHeader(int(f.status.Load()))
		_, _ = w.Write(body)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) token(t *testing.T, key *ecdsa.PrivateKey, kid string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"sub": "urn:fdc:subject",
		"exp": exp.Unix(),
	})
	tok.Header["kid"] = kid
	signed, err := tok.SignedString(key)
	require.NoError(t, err)
	return signed
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestVerifyWithJWKS(t *testing.T) {
	ctx := context.Background()
	start := time.Now().Truncate(time.Second)

	t.Run("verifies and caches the key set for max-age", func(t *testing.T) {
		f := newJWKSFixture(t, "public, max-age=60")
		clock := &testClock{now: start}
		a := New(newSoftKeys(), Config{}, WithClock(clock.Now))
		token := f.token(t, f.priv, "rp-key-1", start.Add(time.Hour))

		claims, err := a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		require.NoError(t, err)
		assert.Equal(t, "urn:fdc:subject", claims["sub"])

		_, err = a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, f.hits.Load(), "second call served from cache")

		clock.Advance(61 * time.Second)
		_, err = a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		require.NoError(t, err)
		assert.EqualValues(t, 2, f.hits.Load(), "expired entry refetched")
	})

	t.Run("falls back to the default ttl without max-age", func(t *testing.T) {
		f := newJWKSFixture(t, "")
		clock := &testClock{now: start}
		a := New(newSoftKeys(), Config{JWKSDefaultTTL: 10 * time.Minute}, WithClock(clock.Now))
		token := f.token(t, f.priv, "rp-key-1", start.Add(time.Hour))

		_, err := a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		require.NoError(t, err)
		clock.Advance(9 * time.Minute)
		_, err = a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		require.NoError(t, err)
		assert.EqualValues(t, 1, f.hits.Load())
	})

	t.Run("unknown kid is key not found", func(t *testing.T) {
		f := newJWKSFixture(t, "max-age=60")
		a := New(newSoftKeys(), Config{})
		token := f.token(t, f.priv, "rp-key-1", time.Now().Add(time.Hour))

		_, err := a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-2")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("token signed by another key fails verification", func(t *testing.T) {
		f := newJWKSFixture(t, "max-age=60")
		other, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		a := New(newSoftKeys(), Config{})
		token := f.token(t, other, "rp-key-1", time.Now().Add(time.Hour))

		_, err = a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		assert.ErrorIs(t, err, ErrVerification)
	})

	t.Run("expired token fails against the injected clock", func(t *testing.T) {
		f := newJWKSFixture(t, "max-age=60")
		clock := &testClock{now: start}
		a := New(newSoftKeys(), Config{}, WithClock(clock.Now))
		token := f.token(t, f.priv, "rp-key-1", start.Add(time.Minute))

		_, err := a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		require.NoError(t, err)

		clock.Advance(2 * time.Minute)
		_, err = a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		assert.ErrorIs(t, err, ErrVerification)
	})

	t.Run("endpoint error is a verification error and is not cached", func(t *testing.T) {
		f := newJWKSFixture(t, "max-age=60")
		f.status.Store(http.StatusServiceUnavailable)
		a := New(newSoftKeys(), Config{})
		token := f.token(t, f.priv, "rp-key-1", time.Now().Add(time.Hour))

		_, err := a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		assert.ErrorIs(t, err, ErrVerification)

		f.status.Store(http.StatusOK)
		_, err = a.VerifyWithJWKS(ctx, token, f.server.URL, "rp-key-1")
		require.NoError(t, err)
		assert.EqualValues(t, 2, f.hits.Load())
	})
}

func TestMaxAge(t *testing.T) {
	fallback := 5 * time.Minute
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"", fallback},
		{"no-store", fallback},
		{"max-age=120", 2 * time.Minute},
		{"public, Max-Age=30, must-revalidate", 30 * time.Second},
		{`max-age="45"`, 45 * time.Second},
		{"max-age=0", fallback},
		{"max-age=abc", fallback},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, maxAge(tt.header, fallback))
		})
	}
}
