package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"vcissuer/internal/session/models"
	id "vcissuer/pkg/domain"
)

const (
	sessionKeyPrefix = "session:"
	vendorKeyPrefix  = "session_vendor:"
	codeKeyPrefix    = "session_code:"

	defaultSessionTTL = 24 * time.Hour
)

// sessionJSON is the stored representation. Times are Unix nanoseconds and
// zero means unset.
type sessionJSON struct {
	ID                      string `json:"id"`
	ClientID                string `json:"client_id"`
	ClientSessionID         string `json:"client_session_id"`
	RedirectURI             string `json:"redirect_uri"`
	State                   string `json:"state"`
	Subject                 string `json:"subject"`
	AuthSessionState        string `json:"auth_session_state"`
	VendorSessionID         string `json:"vendor_session_id,omitempty"`
	DocumentSelected        string `json:"document_selected,omitempty"`
	PersistentSessionID     string `json:"persistent_session_id"`
	ClientIPAddress         string `json:"client_ip_address"`
	AttemptCount            int    `json:"attempt_count"`
	AuthorizationCode       string `json:"authorization_code,omitempty"`
	AuthorizationCodeExpiry int64  `json:"authorization_code_expiry,omitempty"`
	AccessToken             string `json:"access_token,omitempty"`
	AccessTokenExpiry       int64  `json:"access_token_expiry,omitempty"`
	ExpiresAt               int64  `json:"expires_at"`
	CreatedAt               int64  `json:"created_at"`
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func sessionToJSON(s *models.Session) *sessionJSON {
	return &sessionJSON{
		ID:                      s.ID.String(),
		ClientID:                s.ClientID,
		ClientSessionID:         s.ClientSessionID,
		RedirectURI:             s.RedirectURI,
		State:                   s.OAuthState,
		Subject:                 s.Subject,
		AuthSessionState:        s.AuthState.String(),
		VendorSessionID:         s.VendorSessionID.String(),
		DocumentSelected:        s.DocumentSelected,
		PersistentSessionID:     s.PersistentSessionID,
		ClientIPAddress:         s.ClientIPAddress,
		AttemptCount:            s.AttemptCount,
		AuthorizationCode:       s.AuthorizationCode,
		AuthorizationCodeExpiry: unixNano(s.AuthorizationCodeExpiry),
		AccessToken:             s.AccessToken,
		AccessTokenExpiry:       unixNano(s.AccessTokenExpiry),
		ExpiresAt:               unixNano(s.ExpiresAt),
		CreatedAt:               unixNano(s.CreatedAt),
	}
}

func sessionFromJSON(j *sessionJSON) (*models.Session, error) {
	sessionID, err := uuid.Parse(j.ID)
	if err != nil {
		return nil, fmt.Errorf("parse session id: %w", err)
	}
	state, err := models.ParseAuthState(j.AuthSessionState)
	if err != nil {
		return nil, err
	}
	return &models.Session{
		ID:                      id.SessionID(sessionID),
		ClientID:                j.ClientID,
		ClientSessionID:         j.ClientSessionID,
		RedirectURI:             j.RedirectURI,
		OAuthState:              j.State,
		Subject:                 j.Subject,
		AuthState:               state,
		VendorSessionID:         id.VendorSessionID(j.VendorSessionID),
		DocumentSelected:        j.DocumentSelected,
		PersistentSessionID:     j.PersistentSessionID,
		ClientIPAddress:         j.ClientIPAddress,
		AttemptCount:            j.AttemptCount,
		AuthorizationCode:       j.AuthorizationCode,
		AuthorizationCodeExpiry: fromUnixNano(j.AuthorizationCodeExpiry),
		AccessToken:             j.AccessToken,
		AccessTokenExpiry:       fromUnixNano(j.AccessTokenExpiry),
		ExpiresAt:               fromUnixNano(j.ExpiresAt),
		CreatedAt:               fromUnixNano(j.CreatedAt),
	}, nil
}

// RedisStore keeps each session as one JSON value with secondary index keys
// pointing at it. Updates run under WATCH so a concurrent writer aborts the
// transaction rather than being overwritten.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a store. ttl applies when a session carries no expiry.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID id.SessionID) string { return sessionKeyPrefix + sessionID.String() }
func vendorKey(v id.VendorSessionID) string    { return vendorKeyPrefix + v.String() }
func codeKey(code string) string               { return codeKeyPrefix + code }

func (s *RedisStore) ttlFor(session *models.Session) time.Duration {
	if remaining := time.Until(session.ExpiresAt); !session.ExpiresAt.IsZero() && remaining > 0 {
		return remaining
	}
	return s.ttl
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	if err := validateNew(session); err != nil {
		return err
	}
	data, err := json.Marshal(sessionToJSON(session))
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := s.ttlFor(session)

	created, err := s.client.SetNX(ctx, sessionKey(session.ID), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !created {
		return errSessionExists
	}

	pipe := s.client.Pipeline()
	writeIndexes(ctx, pipe, session, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.load(ctx, s.client, sessionKey(sessionID))
}

func (s *RedisStore) FindByVendorSessionID(ctx context.Context, vendorSessionID id.VendorSessionID) (*models.Session, error) {
	return s.findByIndex(ctx, vendorKey(vendorSessionID))
}

func (s *RedisStore) FindByAuthorizationCode(ctx context.Context, code string) (*models.Session, error) {
	return s.findByIndex(ctx, codeKey(code))
}

func (s *RedisStore) findByIndex(ctx context.Context, indexKey string) (*models.Session, error) {
	sessionID, err := s.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session index: %w", err)
	}
	return s.load(ctx, s.client, sessionKeyPrefix+sessionID)
}

func (s *RedisStore) load(ctx context.Context, getter redis.Cmdable, key string) (*models.Session, error) {
	data, err := getter.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	var j sessionJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return sessionFromJSON(&j)
}

// ConditionalUpdate applies fields under optimistic lock on the session key.
func (s *RedisStore) ConditionalUpdate(ctx context.Context, sessionID id.SessionID, expected []models.AuthState, fields models.Fields) error {
	key := sessionKey(sessionID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		session, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if !stateAllowed(session.AuthState, expected) {
			return errStateMismatch
		}
		if vendorRebind(session.VendorSessionID, fields) {
			return errVendorIDConflict
		}

		oldCode := session.AuthorizationCode
		fields.Apply(session)
		data, err := json.Marshal(sessionToJSON(session))
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		ttl, err := tx.TTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			ttl = s.ttlFor(session)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			if oldCode != "" && oldCode != session.AuthorizationCode {
				pipe.Del(ctx, codeKey(oldCode))
			}
			writeIndexes(ctx, pipe, session, ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return errStateMismatch
	}
	return err
}

func writeIndexes(ctx context.Context, pipe redis.Pipeliner, session *models.Session, ttl time.Duration) {
	sessionID := session.ID.String()
	if !session.VendorSessionID.IsNil() {
		pipe.Set(ctx, vendorKey(session.VendorSessionID), sessionID, ttl)
	}
	if session.AuthorizationCode != "" {
		pipe.Set(ctx, codeKey(session.AuthorizationCode), sessionID, ttl)
	}
}
