package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/defi-health-scanner/internal/models"
)

const (
	sessionKeyPrefix = "session:"
	accessKeyPrefix  = "access:"
	paymentKeyPrefix = "payment:"
)

// SessionStore keeps wallet sessions in Redis with a TTL
type SessionStore struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewSessionStore creates a session store
func NewSessionStore(redis *RedisCache, ttl time.Duration) *SessionStore {
	return &SessionStore{redis: redis, ttl: ttl}
}

// Create opens a new session for wallet
func (s *SessionStore) Create(ctx context.Context, wallet string) (*models.Session, error) {
	now := time.Now().UTC()
	session := &models.Session{
		ID:            uuid.New().String(),
		WalletAddress: strings.ToLower(wallet),
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKeyPrefix+session.ID, data, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// Get resolves a session ID. Expired or unknown sessions return ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := s.redis.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Delete ends a session
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	return s.redis.Del(ctx, sessionKeyPrefix+id)
}

// AccessGrantStore records which wallets paid for report access and which
// payment transactions have been consumed
type AccessGrantStore struct {
	redis *RedisCache
}

// NewAccessGrantStore creates an access grant store
func NewAccessGrantStore(redis *RedisCache) *AccessGrantStore {
	return &AccessGrantStore{redis: redis}
}

// ClaimPayment marks txHash as used. It returns false if it was already claimed.
func (s *AccessGrantStore) ClaimPayment(ctx context.Context, txHash, wallet string) (bool, error) {
	ok, err := s.redis.SetNX(ctx, paymentKeyPrefix+strings.ToLower(txHash), strings.ToLower(wallet), 0)
	if err != nil {
		return false, fmt.Errorf("failed to claim payment: %w", err)
	}
	return ok, nil
}

// ReleasePayment drops the claim on txHash so it can be claimed again
func (s *AccessGrantStore) ReleasePayment(ctx context.Context, txHash string) error {
	if err := s.redis.Del(ctx, paymentKeyPrefix+strings.ToLower(txHash)); err != nil {
		return fmt.Errorf("failed to release payment: %w", err)
	}
	return nil
}

// Grant stores an access grant that expires at grant.ExpiresAt
func (s *AccessGrantStore) Grant(ctx context.Context, grant *models.AccessGrant) error {
	ttl := time.Until(grant.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("access grant already expired")
	}
	grant.WalletAddress = strings.ToLower(grant.WalletAddress)

	data, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("failed to marshal access grant: %w", err)
	}
	return s.redis.Set(ctx, accessKeyPrefix+grant.WalletAddress, data, ttl)
}

// Get returns the wallet's active grant, or ErrNotFound
func (s *AccessGrantStore) Get(ctx context.Context, wallet string) (*models.AccessGrant, error) {
	data, err := s.redis.Get(ctx, accessKeyPrefix+strings.ToLower(wallet))
	if err != nil {
		return nil, err
	}

	var grant models.AccessGrant
	if err := json.Unmarshal([]byte(data), &grant); err != nil {
		return nil, fmt.Errorf("failed to unmarshal access grant: %w", err)
	}
	if !grant.ExpiresAt.After(time.Now()) {
		return nil, ErrNotFound
	}
	return &grant, nil
}

// HasAccess reports whether wallet holds an unexpired grant
func (s *AccessGrantStore) HasAccess(ctx context.Context, wallet string) (bool, error) {
	_, err := s.Get(ctx, wallet)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
