package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/defi-health-scanner/internal/adapter"
	apperrors "github.com/defi-health-scanner/internal/errors"
	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/metrics"
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/portfolio"
	"github.com/defi-health-scanner/internal/scoring"
	"github.com/defi-health-scanner/internal/types"
)

// SwapAgent submits a single signed swap
type SwapAgent interface {
	Swap(ctx context.Context, privateKey string, swap models.SwapInstruction) error
}

// SwapLog is the append-only record of submitted swaps
type SwapLog interface {
	Append(ctx context.Context, swaps ...*models.ExecutedSwap) error
	ListByWallet(ctx context.Context, wallet string, limit int) ([]*models.ExecutedSwap, error)
}

// PortfolioService values wallets and rebalances them
type PortfolioService struct {
	sources DataSources
	scorer  *scoring.SecurityScorer
	policy  portfolio.HoldingsPolicy
	chain   types.ChainID
	agent   SwapAgent
	swapLog SwapLog
}

// NewPortfolioService creates a new portfolio service for chain
func NewPortfolioService(sources DataSources, policy portfolio.HoldingsPolicy, chain types.ChainID, agent SwapAgent, swapLog SwapLog) *PortfolioService {
	return &PortfolioService{
		sources: sources,
		scorer:  scoring.NewSecurityScorer(),
		policy:  policy,
		chain:   chain,
		agent:   agent,
		swapLog: swapLog,
	}
}

// RebalanceInput represents input for executing a rebalance
type RebalanceInput struct {
	WalletAddress       string
	PrivateKey          string
	TargetSecurityScore float64
	TopN                int
	FlowID              string
}

// WalletPortfolio values the tokens wallet holds on chain. An empty chain means the configured one.
func (s *PortfolioService) WalletPortfolio(ctx context.Context, chain types.ChainID, wallet string) (*models.PortfolioSnapshot, error) {
	if chain != "" && chain != s.chain {
		return nil, apperrors.NewInvalidParameterError("chain", fmt.Sprintf("only %s is supported", s.chain))
	}
	address, ok := adapter.NormalizeAddress(wallet)
	if !ok {
		return nil, apperrors.NewInvalidAddressError(wallet)
	}

	transfers, err := s.sources.Holdings.TokenTransfers(ctx, address)
	if err != nil {
		return nil, apperrors.NewProviderError("explorer", err)
	}
	held := portfolio.AccumulateHoldings(address, transfers, s.policy)

	assessments := make(map[string]portfolio.TokenAssessment, len(held))
	for _, token := range held {
		a, err := s.assessToken(ctx, token)
		if err != nil {
			return nil, err
		}
		assessments[token.ContractAddress] = a
	}

	snapshot := portfolio.Valuate(address, held, assessments)
	return &snapshot, nil
}

// assessToken gathers the score, IL risk and price of one held token.
// Audits are looked up by token name, pools and price by symbol.
func (s *PortfolioService) assessToken(ctx context.Context, token models.HeldToken) (portfolio.TokenAssessment, error) {
	audits, err := s.sources.Audits.FindByProject(ctx, token.Name)
	if err != nil {
		return portfolio.TokenAssessment{}, apperrors.NewDatabaseError("load audits", err)
	}
	pools, err := s.sources.Pools.FindBySymbol(ctx, token.Symbol)
	if err != nil {
		return portfolio.TokenAssessment{}, apperrors.NewDatabaseError("load pools", err)
	}

	il := types.Unavailable[float64]()
	if tvl, ok := scoring.AggregatePools(token.Symbol, pools).Get(); ok {
		il = types.Known(tvl.ImpermanentLossRisk)
	}

	price, err := s.sources.Prices.PriceUSD(ctx, token.Symbol)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("symbol", token.Symbol).Warn("price unavailable")
		price = types.Unavailable[float64]()
	}

	return portfolio.TokenAssessment{
		PriceUSD:            price,
		SecurityScore:       s.scorer.Score(token.Name, audits).TotalScore,
		ImpermanentLossRisk: il,
	}, nil
}

// PreviewRebalance plans a rebalance without executing it
func (s *PortfolioService) PreviewRebalance(ctx context.Context, wallet string, target float64, topN int) (*portfolio.Plan, error) {
	snapshot, err := s.WalletPortfolio(ctx, "", wallet)
	if err != nil {
		return nil, err
	}
	return planFor(*snapshot, target, topN)
}

// Rebalance plans and executes a rebalance for the wallet owning in.PrivateKey.
// Swaps run one at a time; the first failure stops the run.
func (s *PortfolioService) Rebalance(ctx context.Context, in RebalanceInput) (*portfolio.Result, error) {
	wallet, ok := adapter.NormalizeAddress(in.WalletAddress)
	if !ok {
		return nil, apperrors.NewInvalidAddressError(in.WalletAddress)
	}
	signer, err := adapter.AddressFromPrivateKey(in.PrivateKey)
	if err != nil {
		return nil, apperrors.NewInvalidParameterError("privateKey", "not a valid private key")
	}
	if signer != wallet {
		return nil, apperrors.NewForbiddenError("private key does not belong to the session wallet")
	}

	snapshot, err := s.WalletPortfolio(ctx, "", wallet)
	if err != nil {
		return nil, err
	}
	plan, err := planFor(*snapshot, in.TargetSecurityScore, in.TopN)
	if err != nil {
		return nil, err
	}
	metrics.RebalanceOutcomes.WithLabelValues(string(plan.Outcome)).Inc()

	switch plan.Outcome {
	case portfolio.OutcomeAlreadyMeetsTarget:
		return nil, apperrors.NewRebalanceOutcomeError(apperrors.CodeAlreadyMeetsTarget,
			"portfolio already meets the target security score", planDetails(plan), nil)
	case portfolio.OutcomeNothingToSwap:
		return nil, apperrors.NewRebalanceOutcomeError(apperrors.CodeNothingToSwap,
			"no holdings below the target security score", planDetails(plan), nil)
	}

	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"wallet": wallet,
		"flowId": in.FlowID,
		"swaps":  len(plan.Swaps),
	})
	logger.Info("executing rebalance")

	executor := &recordingExecutor{
		agent:      s.agent,
		swapLog:    s.swapLog,
		privateKey: in.PrivateKey,
		runID:      uuid.New().String(),
		flowID:     in.FlowID,
		wallet:     wallet,
	}
	result, err := portfolio.Execute(ctx, plan, executor)
	if err != nil {
		var swapErr *portfolio.SwapFailedError
		if errors.As(err, &swapErr) {
			logger.WithError(swapErr.Cause).Warnf("rebalance aborted after %d swaps", len(swapErr.Executed))
			return result, apperrors.NewRebalanceOutcomeError(apperrors.CodeSwapFailed, swapErr.Error(),
				map[string]interface{}{
					"from":     swapErr.From,
					"to":       swapErr.To,
					"executed": swapErr.Executed,
				}, swapErr.Cause)
		}
		return result, apperrors.NewInternalError("rebalance failed", err)
	}

	if plan.Outcome == portfolio.OutcomeNoChanges && len(result.Executed) == 0 {
		return nil, apperrors.NewRebalanceOutcomeError(apperrors.CodeNoChanges,
			"rebalance would not change any holding", planDetails(plan), nil)
	}
	return result, nil
}

// ListSwaps returns the wallet's most recent executed swaps
func (s *PortfolioService) ListSwaps(ctx context.Context, wallet string, limit int) ([]*models.ExecutedSwap, error) {
	swaps, err := s.swapLog.ListByWallet(ctx, strings.ToLower(wallet), limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list swaps", err)
	}
	return swaps, nil
}

func planFor(snapshot models.PortfolioSnapshot, target float64, topN int) (*portfolio.Plan, error) {
	if target < 0 || target > 100 {
		return nil, apperrors.NewInvalidParameterError("targetSecurityScore", "must be between 0 and 100")
	}
	plan, err := portfolio.PlanRebalance(snapshot, target, topN)
	switch {
	case errors.Is(err, portfolio.ErrInvalidTopN):
		return nil, apperrors.NewInvalidParameterError("topN", "must be at least 1")
	case errors.Is(err, portfolio.ErrZeroTotalScore):
		return nil, apperrors.NewRebalanceOutcomeError(apperrors.CodeZeroTotalScore,
			"reinvestment targets have a total security score of zero", nil, err)
	case err != nil:
		return nil, apperrors.NewInternalError("rebalance planning failed", err)
	}
	return plan, nil
}

func planDetails(plan *portfolio.Plan) map[string]interface{} {
	return map[string]interface{}{
		"currentWeightedScore": plan.CurrentWeightedScore,
		"targetSecurityScore":  plan.TargetSecurityScore,
	}
}

// recordingExecutor submits swaps through the agent and appends each attempt to the swap log
type recordingExecutor struct {
	agent      SwapAgent
	swapLog    SwapLog
	privateKey string
	runID      string
	flowID     string
	wallet     string
}

func (e *recordingExecutor) Swap(ctx context.Context, swap models.SwapInstruction) error {
	err := e.agent.Swap(ctx, e.privateKey, swap)

	entry := &models.ExecutedSwap{
		ID:            uuid.New().String(),
		RunID:         e.runID,
		FlowID:        e.flowID,
		WalletAddress: e.wallet,
		FromContract:  swap.FromContract,
		ToContract:    swap.ToContract,
		FromToken:     swap.FromToken,
		ToToken:       swap.ToToken,
		Amount:        swap.Amount,
		Status:        models.SwapStatusSucceeded,
		ExecutedAt:    time.Now().UTC(),
	}
	if err != nil {
		entry.Status = models.SwapStatusFailed
		entry.Error = err.Error()
	}
	metrics.SwapsExecuted.WithLabelValues(string(entry.Status)).Inc()

	// The swap has already happened on-chain; a log write failure must not hide that.
	if logErr := e.swapLog.Append(ctx, entry); logErr != nil {
		logging.FromContext(ctx).WithError(logErr).WithFields(map[string]interface{}{
			"runId": e.runID,
			"from":  swap.FromToken,
			"to":    swap.ToToken,
		}).Error("failed to record swap")
	}
	return err
}
