// Package kmsjwt signs, verifies and decrypts JOSE objects against keys held
// by an external key service. Private key material never enters the process.
package kmsjwt

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v3"

	"vcissuer/internal/platform/metrics"
)

var b64 = base64.RawURLEncoding

// Config names the key references the adapter passes to the key service.
type Config struct {
	SigningKeyID string
	// DecryptionAliasBase is suffixed with _active, _inactive and _previous
	// to form the rotation aliases.
	DecryptionAliasBase   string
	RotationEnabled       bool
	LegacyDecryptionKeyID string
	// JWKSDefaultTTL applies when a key set response has no usable max-age.
	JWKSDefaultTTL time.Duration
}

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Adapter implements JWS signing and verification plus JWE decryption.
type Adapter struct {
	keys    KeyService
	cfg     Config
	client  HTTPDoer
	jwks    *jwksCache
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures the Adapter.
type Option func(*Adapter)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithHTTPClient overrides the client used to fetch remote key sets.
func WithHTTPClient(client HTTPDoer) Option {
	return func(a *Adapter) {
		a.client = client
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithClock injects the time source used for token and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// New builds an Adapter. It is safe for concurrent use.
func New(keys KeyService, cfg Config, opts ...Option) *Adapter {
	if cfg.JWKSDefaultTTL <= 0 {
		cfg.JWKSDefaultTTL = defaultJWKSTTL
	}
	a := &Adapter{
		keys:   keys,
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.jwks = newJWKSCache(cfg.JWKSDefaultTTL)
	return a
}

type jwsHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid,omitempty"`
}

// KeyFingerprint is the hex SHA-256 of the signing key reference. It is the
// fragment of the did:web key id and the kid of the published JWK.
func (a *Adapter) KeyFingerprint() string {
	sum := sha256.Sum256([]byte(a.cfg.SigningKeyID))
	return hex.EncodeToString(sum[:])
}

// KeyID returns the did:web key identifier placed in signed headers.
func (a *Adapter) KeyID(issuerDNS string) string {
	return "did:web:" + issuerDNS + "#" + a.KeyFingerprint()
}

// Sign serialises claims as the payload of a compact ES256 JWS.
func (a *Adapter) Sign(ctx context.Context, claims any, issuerDNS string) (string, error) {
	header, err := json.Marshal(jwsHeader{Alg: "ES256", Typ: "JWT", Kid: a.KeyID(issuerDNS)})
	if err != nil {
		return "", newError(KindSigning, "encode header", err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", newError(KindSigning, "encode payload", err)
	}
	signingInput := b64.EncodeToString(header) + "." + b64.EncodeToString(payload)

	start := a.now()
	der, err := a.keys.Sign(ctx, a.cfg.SigningKeyID, []byte(signingInput))
	a.metrics.ObserveSigning(a.now().Sub(start))
	if err != nil {
		return "", newError(KindSigning, "key service sign failed", err)
	}
	if len(der) == 0 {
		return "", newError(KindSigning, "key service returned no signature", nil)
	}
	sig, err := derToJOSE(der)
	if err != nil {
		return "", newError(KindSigning, "convert signature", err)
	}
	return signingInput + "." + b64.EncodeToString(sig), nil
}

// Verify checks a token signed by Sign against the same key reference.
// A malformed token or bad signature yields false; only a failing key
// service call is an error.
func (a *Adapter) Verify(ctx context.Context, token string) (bool, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false, nil
	}
	sig, err := b64.DecodeString(parts[2])
	if err != nil {
		return false, nil
	}
	der, err := joseToDER(sig)
	if err != nil {
		return false, nil
	}
	ok, err := a.keys.Verify(ctx, a.cfg.SigningKeyID, []byte(parts[0]+"."+parts[1]), der)
	if err != nil {
		return false, newError(KindVerification, "key service verify failed", err)
	}
	return ok, nil
}

// PublicJWKS publishes the signing key so relying parties can verify
// credentials without calling back.
func (a *Adapter) PublicJWKS(ctx context.Context) (jose.JSONWebKeySet, error) {
	pub, err := a.keys.PublicKey(ctx, a.cfg.SigningKeyID)
	if err != nil {
		return jose.JSONWebKeySet{}, newError(KindKeyNotFound, "fetch signing public key", err)
	}
	return jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       pub,
		KeyID:     a.KeyFingerprint(),
		Algorithm: "ES256",
		Use:       "sig",
	}}}, nil
}
