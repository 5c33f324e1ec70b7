package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ISSUER", "https://review-o.dev.example.gov.uk")
	t.Setenv("DNS_SUFFIX", "review-o.dev.example.gov.uk")
	t.Setenv("VC_SIGNING_KEY_ID", "arn:aws:kms:eu-west-2:000000000000:key/signing")
	t.Setenv("VENDOR_BASE_URL", "https://vendor.example.com/idverify/v1")
	t.Setenv("VENDOR_SDK_ID", "sdk-id")
	t.Setenv("VENDOR_API_KEY", "api-key")
	t.Setenv("KAFKA_BROKERS", "localhost:9092, localhost:9093")
}

func TestFromEnv(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, "memory", cfg.Session.Backend)
		assert.Equal(t, 3, cfg.Vendor.MaxAttempts)
		assert.Equal(t, 5*time.Second, cfg.Vendor.Backoff)
		assert.Equal(t, 300*time.Second, cfg.JWKS.DefaultTTL)
		assert.Equal(t, "kafka", cfg.Delivery.Backend)
		assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.Kafka.KafkaBrokers())
		assert.False(t, cfg.Keys.RotationEnabled)
	})

	t.Run("reads overrides", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("VENDOR_MAX_ATTEMPTS", "5")
		t.Setenv("VENDOR_BACKOFF", "250ms")
		t.Setenv("KEY_ROTATION_ENABLED", "true")
		t.Setenv("ENCRYPTION_KEY_ALIAS_PREFIX", "alias/session_decryption_key")
		t.Setenv("SESSION_STORE", "dynamodb")
		t.Setenv("SESSION_TABLE", "f2f-sessions")

		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, 5, cfg.Vendor.MaxAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.Vendor.Backoff)
		assert.True(t, cfg.Keys.RotationEnabled)
		assert.Equal(t, "f2f-sessions", cfg.Session.Table)
	})

	t.Run("rejects missing issuer", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ISSUER", "")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "url is required")
	})

	t.Run("rejects unknown session backend", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SESSION_STORE", "mongo")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backend must be one of")
	})

	t.Run("requires redis url for redis backend", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SESSION_STORE", "redis")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REDIS_URL")
	})

	t.Run("reads relying party clients", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CLIENT_CONFIG", `[{"clientId":"ipv-core-stub","redirectUri":"https://ipvstub.example/redirect","jwksEndpoint":"https://ipvstub.example/.well-known/jwks.json"}]`)

		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, []Client{{
			ID:           "ipv-core-stub",
			RedirectURI:  "https://ipvstub.example/redirect",
			JWKSEndpoint: "https://ipvstub.example/.well-known/jwks.json",
		}}, cfg.Clients)
	})

	t.Run("rejects a client without a key endpoint", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CLIENT_CONFIG", `[{"clientId":"ipv-core-stub","redirectUri":"https://ipvstub.example/redirect"}]`)

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jwks_endpoint is required")
	})

	t.Run("rejects malformed client config", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("CLIENT_CONFIG", `{"clientId":`)

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CLIENT_CONFIG")
	})

	t.Run("requires alias prefix when rotating", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("KEY_ROTATION_ENABLED", "true")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ENCRYPTION_KEY_ALIAS_PREFIX")
	})
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	setRequiredEnv(t)
	// t.Setenv restores the variable afterwards; godotenv never overrides a
	// variable that is present, even when empty, so unset it.
	require.NoError(t, os.Unsetenv("VENDOR_SDK_ID"))
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("VENDOR_SDK_ID=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("VENDOR_SDK_ID") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Vendor.SDKID)
}
