package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"vcissuer/pkg/validation"
)

// Config is resolved once at startup and passed down explicitly.
type Config struct {
	Server   Server
	Issuer   Issuer
	Keys     Keys
	AWS      AWS
	Session  SessionStore
	Redis    RedisConfig
	Database DatabaseConfig
	Vendor   Vendor
	Delivery Delivery
	Kafka    Kafka
	Tokens   Tokens
	JWKS     JWKS
	Clients  []Client
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr        string `validate:"required"`
	Environment string
	LogLevel    string
	// SeedDemoData creates demo journeys at startup. Local use only.
	SeedDemoData bool
}

// Issuer identifies this service inside issued credentials and tokens.
type Issuer struct {
	URL       string `validate:"required,notblank"`
	DNSSuffix string `validate:"required,notblank"`
}

// Keys names the externally held key material. The service never sees
// private keys; it only passes these references to the key service.
type Keys struct {
	SigningKeyID          string `validate:"required,notblank"`
	EncryptionAliasBase   string
	RotationEnabled       bool
	LegacyEncryptionKeyID string
}

// AWS configures the SDK session shared by KMS, DynamoDB and SQS.
// Endpoint is only set for local stacks.
type AWS struct {
	Region   string `validate:"required"`
	Endpoint string
}

// SessionStore selects the session persistence backend.
type SessionStore struct {
	Backend string `validate:"oneof=memory redis dynamodb"`
	Table   string
	TTL     time.Duration `validate:"gt=0"`
}

// RedisConfig holds connection settings for the Redis session backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig points at the Postgres database holding identity claims.
// An empty URL selects the in-memory claim store.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Vendor configures the identity-verification vendor client.
type Vendor struct {
	BaseURL     string        `validate:"required,url"`
	SDKID       string        `validate:"required,notblank"`
	APIKey      string        `validate:"required,notblank"`
	Timeout     time.Duration `validate:"gt=0"`
	MaxAttempts int           `validate:"min=1,max=10"`
	Backoff     time.Duration `validate:"gt=0"`
}

// Delivery selects how outcomes reach the relying party.
type Delivery struct {
	Backend  string `validate:"oneof=kafka sqs"`
	Topic    string
	QueueURL string
}

// Kafka configures the franz-go producer shared by delivery and audit.
type Kafka struct {
	Brokers         string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
	AuditTopic      string
	AuditBuffer     int
}

// Tokens controls the relying-party protocol lifetimes.
type Tokens struct {
	AuthCodeTTL    time.Duration `validate:"gt=0"`
	AccessTokenTTL time.Duration `validate:"gt=0"`
}

// JWKS controls remote key-set caching.
type JWKS struct {
	DefaultTTL time.Duration `validate:"gt=0"`
}

// Client is a relying party allowed to start sessions. CLIENT_CONFIG holds a
// JSON array of them.
type Client struct {
	ID           string `json:"clientId" validate:"required,notblank"`
	RedirectURI  string `json:"redirectUri" validate:"required,url"`
	JWKSEndpoint string `json:"jwksEndpoint" validate:"required,url"`
}

// Load reads an optional .env file, then resolves configuration from the
// environment. Values already present in the environment win.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", f, err)
			}
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:         getEnv("ADDR", ":8080"),
			Environment:  getEnv("ENVIRONMENT", "local"),
			LogLevel:     getEnv("LOG_LEVEL", "info"),
			SeedDemoData: getBool("SEED_DEMO_DATA", false),
		},
		Issuer: Issuer{
			URL:       os.Getenv("ISSUER"),
			DNSSuffix: os.Getenv("DNS_SUFFIX"),
		},
		Keys: Keys{
			SigningKeyID:          os.Getenv("VC_SIGNING_KEY_ID"),
			EncryptionAliasBase:   os.Getenv("ENCRYPTION_KEY_ALIAS_PREFIX"),
			RotationEnabled:       getBool("KEY_ROTATION_ENABLED", false),
			LegacyEncryptionKeyID: os.Getenv("LEGACY_ENCRYPTION_KEY_ID"),
		},
		AWS: AWS{
			Region:   getEnv("AWS_REGION", "eu-west-2"),
			Endpoint: os.Getenv("AWS_ENDPOINT"),
		},
		Session: SessionStore{
			Backend: getEnv("SESSION_STORE", "memory"),
			Table:   os.Getenv("SESSION_TABLE"),
			TTL:     getDuration("SESSION_TTL", 72*time.Hour),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Vendor: Vendor{
			BaseURL:     os.Getenv("VENDOR_BASE_URL"),
			SDKID:       os.Getenv("VENDOR_SDK_ID"),
			APIKey:      os.Getenv("VENDOR_API_KEY"),
			Timeout:     getDuration("VENDOR_TIMEOUT", 10*time.Second),
			MaxAttempts: getInt("VENDOR_MAX_ATTEMPTS", 3),
			Backoff:     getDuration("VENDOR_BACKOFF", 5*time.Second),
		},
		Delivery: Delivery{
			Backend:  getEnv("DELIVERY_BACKEND", "kafka"),
			Topic:    getEnv("DELIVERY_TOPIC", "ipv-core-credentials"),
			QueueURL: os.Getenv("DELIVERY_QUEUE_URL"),
		},
		Kafka: Kafka{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			Acks:            getEnv("KAFKA_ACKS", "all"),
			Retries:         getInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: getDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
			AuditTopic:      getEnv("AUDIT_TOPIC", "audit-events"),
			AuditBuffer:     getInt("AUDIT_BUFFER", 256),
		},
		Tokens: Tokens{
			AuthCodeTTL:    getDuration("AUTH_CODE_TTL", 10*time.Minute),
			AccessTokenTTL: getDuration("ACCESS_TOKEN_TTL", time.Hour),
		},
		JWKS: JWKS{
			DefaultTTL: getDuration("JWKS_DEFAULT_TTL", 300*time.Second),
		},
	}

	clients, err := parseClients(os.Getenv("CLIENT_CONFIG"))
	if err != nil {
		return Config{}, err
	}
	cfg.Clients = clients

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseClients(raw string) ([]Client, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var clients []Client
	if err := json.Unmarshal([]byte(raw), &clients); err != nil {
		return nil, fmt.Errorf("invalid config: CLIENT_CONFIG: %w", err)
	}
	return clients, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c Config) Validate() error {
	sections := []any{c.Server, c.Issuer, c.Keys, c.AWS, c.Session, c.Vendor, c.Delivery, c.Tokens, c.JWKS}
	for _, section := range sections {
		if err := validation.Validate(section); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	switch c.Session.Backend {
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("invalid config: REDIS_URL is required for the redis session store")
		}
	case "dynamodb":
		if c.Session.Table == "" {
			return fmt.Errorf("invalid config: SESSION_TABLE is required for the dynamodb session store")
		}
	}
	switch c.Delivery.Backend {
	case "kafka":
		if c.Kafka.Brokers == "" {
			return fmt.Errorf("invalid config: KAFKA_BROKERS is required for kafka delivery")
		}
	case "sqs":
		if c.Delivery.QueueURL == "" {
			return fmt.Errorf("invalid config: DELIVERY_QUEUE_URL is required for sqs delivery")
		}
	}
	if c.Keys.RotationEnabled && c.Keys.EncryptionAliasBase == "" {
		return fmt.Errorf("invalid config: ENCRYPTION_KEY_ALIAS_PREFIX is required when key rotation is enabled")
	}
	seen := make(map[string]bool, len(c.Clients))
	for _, client := range c.Clients {
		if err := validation.Validate(client); err != nil {
			return fmt.Errorf("invalid config: client %q: %w", client.ID, err)
		}
		if seen[client.ID] {
			return fmt.Errorf("invalid config: client %q is listed twice", client.ID)
		}
		seen[client.ID] = true
	}
	return nil
}

// KafkaBrokers splits the comma separated broker list.
func (k Kafka) KafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
