package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-health-scanner/internal/models"
)

func valued(contract, symbol string, score, percent float64, balance int64) models.ValuedToken {
	return models.ValuedToken{
		HeldToken: models.HeldToken{
			Symbol:          symbol,
			ContractAddress: contract,
			Balance:         decimal.NewFromInt(balance),
		},
		SecurityScore:  score,
		HoldingPercent: percent,
	}
}

func snapshotOf(tokens ...models.ValuedToken) models.PortfolioSnapshot {
	return models.PortfolioSnapshot{WalletAddress: wallet, Tokens: tokens}
}

type recordingExecutor struct {
	calls  []models.SwapInstruction
	failOn int // 1-based call index to fail, 0 never
}

func (r *recordingExecutor) Swap(_ context.Context, swap models.SwapInstruction) error {
	r.calls = append(r.calls, swap)
	if r.failOn == len(r.calls) {
		return errors.New("agent returned 500")
	}
	return nil
}

func TestPlanRebalance_ConvergesAndIsIdempotent(t *testing.T) {
	snap := snapshotOf(
		valued(anon, "A", 30, 60, 600),
		valued(beets, "B", 90, 40, 400),
	)

	plan, err := PlanRebalance(snap, 70, 1)
	require.NoError(t, err)

	assert.Equal(t, OutcomeRebalanced, plan.Outcome)
	assert.InDelta(t, 54, plan.CurrentWeightedScore, 1e-9)
	assert.InDelta(t, 60, plan.SwapOutHoldings, 1e-9)
	require.Len(t, plan.Swaps, 1)
	assert.Equal(t, anon, plan.Swaps[0].FromContract)
	assert.Equal(t, beets, plan.Swaps[0].ToContract)
	assert.True(t, plan.Swaps[0].Amount.Equal(decimal.NewFromInt(600)))
	assert.InDelta(t, 0, plan.Allocations[0].After, 1e-9)
	assert.InDelta(t, 100, plan.Allocations[1].After, 1e-9)
	assert.InDelta(t, 90, plan.ProjectedWeightedScore, 1e-9)

	// input untouched
	assert.Equal(t, 60.0, snap.Tokens[0].HoldingPercent)

	again, err := PlanRebalance(plan.Apply(snap), 70, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMeetsTarget, again.Outcome)
	assert.Empty(t, again.Swaps)
}

func TestPlanRebalance_AlreadyMeetsTarget(t *testing.T) {
	plan, err := PlanRebalance(snapshotOf(valued(beets, "B", 90, 100, 1)), 90, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMeetsTarget, plan.Outcome)
	assert.Empty(t, plan.Swaps)
}

func TestPlanRebalance_NothingToSwap(t *testing.T) {
	// Value sits in a high-score token but the weighted score is dragged down by
	// zero-valued holdings, so nothing scores below target.
	snap := snapshotOf(
		valued(anon, "A", 80, 50, 1),
		valued(beets, "B", 80, 0, 1),
	)
	plan, err := PlanRebalance(snap, 70, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToSwap, plan.Outcome)
	assert.Empty(t, plan.Swaps)
	assert.Equal(t, 50.0, plan.Allocations[0].After)
}

func TestPlanRebalance_ZeroTotalScore(t *testing.T) {
	snap := snapshotOf(
		valued(anon, "A", 0, 70, 1),
		valued(beets, "B", 0, 30, 1),
	)
	_, err := PlanRebalance(snap, 50, 2)
	assert.ErrorIs(t, err, ErrZeroTotalScore)
}

func TestPlanRebalance_InvalidTopN(t *testing.T) {
	_, err := PlanRebalance(snapshotOf(valued(anon, "A", 10, 100, 1)), 50, 0)
	assert.ErrorIs(t, err, ErrInvalidTopN)
}

func TestPlanRebalance_SingleTokenReportsNoChanges(t *testing.T) {
	plan, err := PlanRebalance(snapshotOf(valued(anon, "A", 30, 100, 5)), 70, 1)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoChanges, plan.Outcome)
	assert.Empty(t, plan.Swaps)
}

func TestPlanRebalance_SwapRoutesToBestButRedistributesAcrossTopN(t *testing.T) {
	c := "0xcccc000000000000000000000000000000000003"
	snap := snapshotOf(
		valued(anon, "A", 20, 50, 10),
		valued(beets, "B", 90, 25, 10),
		valued(c, "C", 60, 25, 10),
	)

	plan, err := PlanRebalance(snap, 70, 2)
	require.NoError(t, err)

	// A and C are below target; both swap into B only
	require.Len(t, plan.Swaps, 2)
	assert.Equal(t, "A", plan.Swaps[0].FromToken)
	assert.Equal(t, "C", plan.Swaps[1].FromToken)
	for _, s := range plan.Swaps {
		assert.Equal(t, "B", s.ToToken)
	}

	// 75 points redistributed by score share over B (90) and C (60)
	assert.Equal(t, []string{"B", "C"}, plan.Targets)
	assert.InDelta(t, 0, plan.Allocations[0].After, 1e-9)
	assert.InDelta(t, 25+75*0.6, plan.Allocations[1].After, 1e-9)
	assert.InDelta(t, 0+75*0.4, plan.Allocations[2].After, 1e-9)
}

func TestExecute_Sequential(t *testing.T) {
	snap := snapshotOf(
		valued(anon, "A", 10, 30, 1),
		valued("0xcccc", "C", 20, 30, 1),
		valued(beets, "B", 95, 40, 1),
	)
	plan, err := PlanRebalance(snap, 80, 1)
	require.NoError(t, err)

	exec := &recordingExecutor{}
	result, err := Execute(context.Background(), plan, exec)
	require.NoError(t, err)
	assert.Len(t, exec.calls, 2)
	assert.Equal(t, exec.calls, result.Executed)
}

func TestExecute_AbortsOnFirstFailureWithoutRollback(t *testing.T) {
	snap := snapshotOf(
		valued(anon, "A", 10, 20, 1),
		valued("0xcccc", "C", 20, 20, 1),
		valued("0xdddd", "D", 30, 20, 1),
		valued(beets, "B", 95, 40, 1),
	)
	plan, err := PlanRebalance(snap, 80, 1)
	require.NoError(t, err)
	require.Len(t, plan.Swaps, 3)

	exec := &recordingExecutor{failOn: 2}
	result, err := Execute(context.Background(), plan, exec)

	var failed *SwapFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "C", failed.From)
	assert.Equal(t, "B", failed.To)
	assert.Len(t, failed.Executed, 1)
	assert.Len(t, exec.calls, 2, "no swap after the failure")
	assert.Len(t, result.Executed, 1)
	assert.Contains(t, err.Error(), "swap failed for C → B")

	require.NotSame(t, plan, result.Plan)
	for i, a := range result.Plan.Allocations {
		assert.Equal(t, a.Before, a.After, "allocation %d", i)
		assert.False(t, a.Divested)
	}
	assert.Equal(t, plan.CurrentWeightedScore, result.Plan.ProjectedWeightedScore)
	assert.True(t, plan.Allocations[0].Divested, "the caller's plan is untouched")
	assert.Zero(t, plan.Allocations[0].After)
}

func TestExecute_NoOpOutcomesSkipExecutor(t *testing.T) {
	plan, err := PlanRebalance(snapshotOf(valued(beets, "B", 90, 100, 1)), 50, 1)
	require.NoError(t, err)

	exec := &recordingExecutor{}
	_, err = Execute(context.Background(), plan, exec)
	require.NoError(t, err)
	assert.Empty(t, exec.calls)
}
