package kmsjwt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	defaultJWKSTTL = 300 * time.Second
	jwksSlot       = "jwks"
	maxJWKSBody    = 1 << 20
)

// jwksCache holds one key set. Only one relying-party endpoint is used per
// deployment, so a single slot is enough; a different endpoint replaces it.
type jwksCache struct {
	store      *gocache.Cache
	group      singleflight.Group
	defaultTTL time.Duration
}

type jwksEntry struct {
	endpoint  string
	keys      *jose.JSONWebKeySet
	expiresAt time.Time
}

func newJWKSCache(defaultTTL time.Duration) *jwksCache {
	return &jwksCache{
		store:      gocache.New(gocache.NoExpiration, time.Minute),
		defaultTTL: defaultTTL,
	}
}

func (c *jwksCache) get(endpoint string, now time.Time) (*jose.JSONWebKeySet, bool) {
	v, ok := c.store.Get(jwksSlot)
	if !ok {
		return nil, false
	}
	entry, ok := v.(*jwksEntry)
	if !ok || entry.endpoint != endpoint || !now.Before(entry.expiresAt) {
		return nil, false
	}
	return entry.keys, true
}

func (c *jwksCache) put(endpoint string, keys *jose.JSONWebKeySet, now time.Time, ttl time.Duration) {
	c.store.Set(jwksSlot, &jwksEntry{endpoint: endpoint, keys: keys, expiresAt: now.Add(ttl)}, ttl)
}

// VerifyWithJWKS verifies a token against the key kid published at endpoint
// and returns its claims. Signature and time claims are both checked.
func (a *Adapter) VerifyWithJWKS(ctx context.Context, token, endpoint, kid string) (jwt.MapClaims, error) {
	set, err := a.keySet(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	matches := set.Key(kid)
	if len(matches) == 0 {
		return nil, newError(KindKeyNotFound, fmt.Sprintf("no key with kid %q", kid), nil)
	}
	key := matches[0]
	if !key.IsPublic() {
		key = key.Public()
	}
	if !key.Valid() {
		return nil, newError(KindVerification, "published key is not usable", nil)
	}

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return key.Key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg(), jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, newError(KindVerification, "token verification failed", err)
	}
	return claims, nil
}

func (a *Adapter) keySet(ctx context.Context, endpoint string) (*jose.JSONWebKeySet, error) {
	if set, ok := a.jwks.get(endpoint, a.now()); ok {
		a.metrics.IncJWKSCache(true)
		return set, nil
	}
	a.metrics.IncJWKSCache(false)

	v, err, _ := a.jwks.group.Do(endpoint, func() (any, error) {
		if set, ok := a.jwks.get(endpoint, a.now()); ok {
			return set, nil
		}
		set, ttl, err := a.fetchJWKS(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		a.jwks.put(endpoint, set, a.now(), ttl)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*jose.JSONWebKeySet), nil
}

func (a *Adapter) fetchJWKS(ctx context.Context, endpoint string) (*jose.JSONWebKeySet, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, newError(KindVerification, "build jwks request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, newError(KindVerification, "fetch jwks", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, newError(KindVerification, fmt.Sprintf("fetch jwks: unexpected status %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBody))
	if err != nil {
		return nil, 0, newError(KindVerification, "read jwks", err)
	}
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, 0, newError(KindVerification, "decode jwks", err)
	}

	a.logger.DebugContext(ctx, "jwks refreshed", "endpoint", endpoint, "keys", len(set.Keys))
	return &set, maxAge(resp.Header.Get("Cache-Control"), a.cfg.JWKSDefaultTTL), nil
}

// maxAge extracts max-age from a Cache-Control header value.
func maxAge(header string, fallback time.Duration) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		value, found := strings.CutPrefix(directive, "max-age=")
		if !found {
			continue
		}
		seconds, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || seconds <= 0 {
			return fallback
		}
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
