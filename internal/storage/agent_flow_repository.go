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

// AgentFlowRepository stores rebalancing flows. Rows are never updated.
type AgentFlowRepository struct {
	db *PostgresDB
}

// NewAgentFlowRepository creates a new agent flow repository
func NewAgentFlowRepository(db *PostgresDB) *AgentFlowRepository {
	return &AgentFlowRepository{db: db}
}

// Create inserts a flow, assigning ID and CreatedAt when unset
func (r *AgentFlowRepository) Create(ctx context.Context, flow *models.AgentFlow) error {
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now().UTC()
	}
	flow.WalletAddress = strings.ToLower(flow.WalletAddress)

	query := `
		INSERT INTO agent_flows (id, wallet_address, target_security_score, top_n, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool().Exec(ctx, query,
		flow.ID,
		flow.WalletAddress,
		flow.TargetSecurityScore,
		flow.TopN,
		flow.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create agent flow: %w", err)
	}
	return nil
}

// GetByID retrieves a flow by ID
func (r *AgentFlowRepository) GetByID(ctx context.Context, id string) (*models.AgentFlow, error) {
	query := `
		SELECT id, wallet_address, target_security_score, top_n, created_at
		FROM agent_flows
		WHERE id = $1
	`

	var flow models.AgentFlow
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&flow.ID,
		&flow.WalletAddress,
		&flow.TargetSecurityScore,
		&flow.TopN,
		&flow.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent flow: %w", err)
	}
	return &flow, nil
}

// ListByWallet returns a wallet's flows, newest first
func (r *AgentFlowRepository) ListByWallet(ctx context.Context, wallet string) ([]*models.AgentFlow, error) {
	query := `
		SELECT id, wallet_address, target_security_score, top_n, created_at
		FROM agent_flows
		WHERE wallet_address = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, strings.ToLower(wallet))
	if err != nil {
		return nil, fmt.Errorf("failed to list agent flows: %w", err)
	}
	defer rows.Close()

	flows := make([]*models.AgentFlow, 0)
	for rows.Next() {
		var flow models.AgentFlow
		if err := rows.Scan(
			&flow.ID,
			&flow.WalletAddress,
			&flow.TargetSecurityScore,
			&flow.TopN,
			&flow.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan agent flow: %w", err)
		}
		flows = append(flows, &flow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent flows: %w", err)
	}
	return flows, nil
}
