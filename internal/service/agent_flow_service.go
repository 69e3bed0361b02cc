package service

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/defi-health-scanner/internal/errors"
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/storage"
	"github.com/defi-health-scanner/internal/types"
)

// FlowStore persists agent flows
type FlowStore interface {
	Create(ctx context.Context, flow *models.AgentFlow) error
	GetByID(ctx context.Context, id string) (*models.AgentFlow, error)
	ListByWallet(ctx context.Context, wallet string) ([]*models.AgentFlow, error)
}

// AgentFlowService manages saved rebalancing targets
type AgentFlowService struct {
	flows FlowStore
}

// NewAgentFlowService creates a new agent flow service
func NewAgentFlowService(flows FlowStore) *AgentFlowService {
	return &AgentFlowService{flows: flows}
}

// CreateFlow saves a new flow for wallet
func (s *AgentFlowService) CreateFlow(ctx context.Context, wallet string, target float64, topN int) (*models.AgentFlow, error) {
	if target < 0 || target > 100 {
		return nil, apperrors.NewInvalidParameterError("targetSecurityScore", "must be between 0 and 100")
	}
	if topN < 1 {
		return nil, apperrors.NewInvalidParameterError("topN", "must be at least 1")
	}

	flow := &models.AgentFlow{
		WalletAddress:       wallet,
		TargetSecurityScore: target,
		TopN:                topN,
	}
	if err := s.flows.Create(ctx, flow); err != nil {
		return nil, apperrors.NewDatabaseError("create agent flow", err)
	}
	return flow, nil
}

// ListFlows returns the wallet's flows, newest first
func (s *AgentFlowService) ListFlows(ctx context.Context, wallet string) ([]*models.AgentFlow, error) {
	flows, err := s.flows.ListByWallet(ctx, strings.ToLower(wallet))
	if err != nil {
		return nil, apperrors.NewDatabaseError("list agent flows", err)
	}
	return flows, nil
}

// GetFlow returns one flow. Flows owned by another wallet are reported as missing.
func (s *AgentFlowService) GetFlow(ctx context.Context, wallet, id string) (*models.AgentFlow, error) {
	flow, err := s.flows.GetByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, flowNotFound(id)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("get agent flow", err)
	}
	if !strings.EqualFold(flow.WalletAddress, wallet) {
		return nil, flowNotFound(id)
	}
	return flow, nil
}

func flowNotFound(id string) error {
	return &types.ServiceError{
		Code:    "FLOW_NOT_FOUND",
		Message: "agent flow not found",
		Details: map[string]interface{}{"id": id},
	}
}
