package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/defi-health-scanner/internal/models"
)

// UserRepository handles user data persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, wallet_address, access_times, created_at, updated_at`

// RecordAccess creates the user for wallet if needed and appends at to its access times
func (r *UserRepository) RecordAccess(ctx context.Context, wallet string, at time.Time) (*models.User, error) {
	query := `
		INSERT INTO users (id, wallet_address, access_times, created_at, updated_at)
		VALUES ($1, $2, ARRAY[$3::timestamptz], $3, $3)
		ON CONFLICT (wallet_address) DO UPDATE
		SET access_times = array_append(users.access_times, $3::timestamptz),
		    updated_at = $3
		RETURNING ` + userColumns

	row := r.db.Pool().QueryRow(ctx, query, uuid.New().String(), strings.ToLower(wallet), at.UTC())
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to record access: %w", err)
	}
	return user, nil
}

// GetByWallet retrieves a user by wallet address
func (r *UserRepository) GetByWallet(ctx context.Context, wallet string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE wallet_address = $1`

	user, err := scanUser(r.db.Pool().QueryRow(ctx, query, strings.ToLower(wallet)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.WalletAddress,
		&user.AccessTimes,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
