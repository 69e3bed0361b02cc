package service

import (
	"context"
	"time"

	"github.com/defi-health-scanner/internal/adapter"
	apperrors "github.com/defi-health-scanner/internal/errors"
	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/models"
)

// UserStore records wallet visits
type UserStore interface {
	RecordAccess(ctx context.Context, wallet string, at time.Time) (*models.User, error)
}

// Sessions opens and closes wallet sessions
type Sessions interface {
	Create(ctx context.Context, wallet string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

// UserService connects wallets to the dashboard
type UserService struct {
	users    UserStore
	sessions Sessions
}

// NewUserService creates a new user service
func NewUserService(users UserStore, sessions Sessions) *UserService {
	return &UserService{users: users, sessions: sessions}
}

// ConnectWallet records a visit for wallet and opens a session for it
func (s *UserService) ConnectWallet(ctx context.Context, wallet string) (*models.User, *models.Session, error) {
	address, ok := adapter.NormalizeAddress(wallet)
	if !ok {
		return nil, nil, apperrors.NewInvalidAddressError(wallet)
	}

	user, err := s.users.RecordAccess(ctx, address, time.Now().UTC())
	if err != nil {
		return nil, nil, apperrors.NewDatabaseError("record access", err)
	}
	session, err := s.sessions.Create(ctx, address)
	if err != nil {
		return nil, nil, apperrors.NewCacheError("create session", err)
	}

	logging.FromContext(ctx).WithField("wallet", address).Info("wallet connected")
	return user, session, nil
}

// Logout ends a session
func (s *UserService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return apperrors.NewCacheError("delete session", err)
	}
	return nil
}
