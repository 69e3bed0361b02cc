package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/defi-health-scanner/internal/models"
)

// SwapLogRepository appends executed swaps to ClickHouse
type SwapLogRepository struct {
	db *ClickHouseDB
}

// NewSwapLogRepository creates a new swap log repository
func NewSwapLogRepository(db *ClickHouseDB) *SwapLogRepository {
	return &SwapLogRepository{db: db}
}

// Append writes swaps in one batch
func (r *SwapLogRepository) Append(ctx context.Context, swaps ...*models.ExecutedSwap) error {
	if len(swaps) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO executed_swaps (
			id, run_id, flow_id, wallet_address, from_contract, to_contract,
			from_token, to_token, amount, status, error, executed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare swap batch: %w", err)
	}

	for _, s := range swaps {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		if s.ExecutedAt.IsZero() {
			s.ExecutedAt = time.Now().UTC()
		}
		if err := batch.Append(
			s.ID,
			s.RunID,
			s.FlowID,
			strings.ToLower(s.WalletAddress),
			s.FromContract,
			s.ToContract,
			s.FromToken,
			s.ToToken,
			s.Amount,
			string(s.Status),
			s.Error,
			s.ExecutedAt,
		); err != nil {
			return fmt.Errorf("failed to append swap to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to insert swaps: %w", err)
	}
	return nil
}

// ListByWallet returns the most recent swaps for a wallet, newest first
func (r *SwapLogRepository) ListByWallet(ctx context.Context, wallet string, limit int) ([]*models.ExecutedSwap, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.db.Conn().Query(ctx, `
		SELECT id, run_id, flow_id, wallet_address, from_contract, to_contract,
		       from_token, to_token, amount, status, error, executed_at
		FROM executed_swaps
		WHERE wallet_address = ?
		ORDER BY executed_at DESC
		LIMIT ?
	`, strings.ToLower(wallet), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query swaps: %w", err)
	}
	defer rows.Close()

	swaps := make([]*models.ExecutedSwap, 0)
	for rows.Next() {
		var s models.ExecutedSwap
		var status string
		if err := rows.Scan(
			&s.ID,
			&s.RunID,
			&s.FlowID,
			&s.WalletAddress,
			&s.FromContract,
			&s.ToContract,
			&s.FromToken,
			&s.ToToken,
			&s.Amount,
			&status,
			&s.Error,
			&s.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan swap: %w", err)
		}
		s.Status = models.SwapStatus(status)
		swaps = append(swaps, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating swaps: %w", err)
	}
	return swaps, nil
}
