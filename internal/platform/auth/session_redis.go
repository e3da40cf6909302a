package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vaxclinic/vaxclinic/internal/platform/apperr"
)

const sessionKeyPrefix = "vaxclinic:session:"

// SessionStore keeps opaque session handles in Redis with a TTL.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

func sessionKey(token string) string { return sessionKeyPrefix + token }

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *SessionStore) Create(ctx context.Context, identityID string) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, sessionKey(token), identityID, s.ttl).Err(); err != nil {
		return nil, apperr.Unavailable("store session", err)
	}
	return &Session{Token: token, IdentityID: identityID, ExpiresAt: time.Now().Add(s.ttl)}, nil
}

func (s *SessionStore) Lookup(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrSessionNotFound
	}
	id, err := s.rdb.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", apperr.Unavailable("lookup session", err)
	}
	return id, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, sessionKey(token)).Err(); err != nil {
		return apperr.Unavailable("delete session", err)
	}
	return nil
}
