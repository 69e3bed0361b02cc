package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/defi-health-scanner/internal/models"
)

// Outcome names how a rebalance ended
type Outcome string

const (
	// OutcomeRebalanced means swaps were planned (or executed) and holdings moved
	OutcomeRebalanced Outcome = "rebalanced"
	// OutcomeAlreadyMeetsTarget means the weighted score is already at or above target
	OutcomeAlreadyMeetsTarget Outcome = "already_meets_target"
	// OutcomeNothingToSwap means the target is unmet but no token scores below it
	OutcomeNothingToSwap Outcome = "nothing_to_swap"
	// OutcomeNoChanges means the redistribution reproduced the original holdings
	OutcomeNoChanges Outcome = "no_changes"
)

var (
	// ErrInvalidTopN is returned when fewer than one reinvestment target is requested
	ErrInvalidTopN = errors.New("top_n must be at least 1")
	// ErrZeroTotalScore is returned when every reinvestment target scores zero
	ErrZeroTotalScore = errors.New("cannot rebalance, zero total score")
)

// SwapFailedError aborts a rebalance. Swaps in Executed already went through and are not rolled back.
type SwapFailedError struct {
	From     string
	To       string
	Executed []models.SwapInstruction
	Cause    error
}

func (e *SwapFailedError) Error() string {
	return fmt.Sprintf("swap failed for %s → %s: %v", e.From, e.To, e.Cause)
}

func (e *SwapFailedError) Unwrap() error {
	return e.Cause
}

// Allocation is one token's holding percentage before and after the rebalance
type Allocation struct {
	ContractAddress string  `json:"contract_address"`
	Symbol          string  `json:"symbol"`
	SecurityScore   float64 `json:"audit_security_score"`
	Before          float64 `json:"holding_percent_before"`
	After           float64 `json:"holding_percent_after"`
	Divested        bool    `json:"divested"`
}

// Plan is the outcome of planning a rebalance. Swaps is empty unless Outcome is
// OutcomeRebalanced or OutcomeNoChanges.
type Plan struct {
	Outcome                Outcome                  `json:"outcome"`
	TargetSecurityScore    float64                  `json:"target_security_score"`
	TopN                   int                      `json:"top_n"`
	CurrentWeightedScore   float64                  `json:"current_weighted_score"`
	ProjectedWeightedScore float64                  `json:"projected_weighted_score"`
	SwapOutHoldings        float64                  `json:"swap_out_holdings"`
	Targets                []string                 `json:"reinvestment_targets,omitempty"`
	Swaps                  []models.SwapInstruction `json:"swaps"`
	Allocations            []Allocation             `json:"allocations"`
}

// SwapExecutor submits one swap. Implementations block until the swap is accepted or rejected.
type SwapExecutor interface {
	Swap(ctx context.Context, swap models.SwapInstruction) error
}

// SwapExecutorFunc adapts a function to SwapExecutor
type SwapExecutorFunc func(ctx context.Context, swap models.SwapInstruction) error

func (f SwapExecutorFunc) Swap(ctx context.Context, swap models.SwapInstruction) error {
	return f(ctx, swap)
}

// Result is a plan together with the swaps that were executed for it
type Result struct {
	Plan     *Plan                    `json:"plan"`
	Executed []models.SwapInstruction `json:"executed"`
}

// PlanRebalance decides which tokens to divest and where the proceeds go.
// It never mutates snapshot.
func PlanRebalance(snapshot models.PortfolioSnapshot, target float64, topN int) (*Plan, error) {
	if topN < 1 {
		return nil, ErrInvalidTopN
	}

	tokens := snapshot.Tokens
	plan := &Plan{
		TargetSecurityScore: target,
		TopN:                topN,
		Swaps:               []models.SwapInstruction{},
		Allocations:         make([]Allocation, len(tokens)),
	}
	for i, t := range tokens {
		plan.Allocations[i] = Allocation{
			ContractAddress: t.ContractAddress,
			Symbol:          t.Symbol,
			SecurityScore:   t.SecurityScore,
			Before:          t.HoldingPercent,
			After:           t.HoldingPercent,
		}
	}

	plan.CurrentWeightedScore = weightedScore(plan.Allocations, func(a Allocation) float64 { return a.Before })
	plan.ProjectedWeightedScore = plan.CurrentWeightedScore
	if plan.CurrentWeightedScore >= target {
		plan.Outcome = OutcomeAlreadyMeetsTarget
		return plan, nil
	}

	ascending := indicesByScore(tokens, false)
	var divested []int
	for _, i := range ascending {
		if tokens[i].SecurityScore < target {
			divested = append(divested, i)
			plan.SwapOutHoldings += plan.Allocations[i].After
			plan.Allocations[i].After = 0
			plan.Allocations[i].Divested = true
		}
	}

	if plan.SwapOutHoldings == 0 {
		for i := range plan.Allocations {
			plan.Allocations[i].After = plan.Allocations[i].Before
			plan.Allocations[i].Divested = false
		}
		plan.Outcome = OutcomeNothingToSwap
		return plan, nil
	}

	descending := indicesByScore(tokens, true)
	if len(descending) > topN {
		descending = descending[:topN]
	}
	totalScore := 0.0
	for _, i := range descending {
		totalScore += tokens[i].SecurityScore
		plan.Targets = append(plan.Targets, tokens[i].Symbol)
	}
	if totalScore == 0 {
		return nil, ErrZeroTotalScore
	}

	// The on-chain swap always routes into the single best target; only the
	// percentage redistribution below spreads across all top_n.
	best := tokens[descending[0]]
	for _, i := range divested {
		from := tokens[i]
		if from.ContractAddress == best.ContractAddress {
			continue
		}
		plan.Swaps = append(plan.Swaps, models.SwapInstruction{
			FromToken:    from.Symbol,
			ToToken:      best.Symbol,
			FromContract: from.ContractAddress,
			ToContract:   best.ContractAddress,
			Amount:       from.Balance,
		})
	}

	for _, i := range descending {
		plan.Allocations[i].After += plan.SwapOutHoldings * (tokens[i].SecurityScore / totalScore)
	}
	plan.ProjectedWeightedScore = weightedScore(plan.Allocations, func(a Allocation) float64 { return a.After })

	plan.Outcome = OutcomeNoChanges
	for _, a := range plan.Allocations {
		if a.After != a.Before {
			plan.Outcome = OutcomeRebalanced
			break
		}
	}
	return plan, nil
}

// Execute submits the plan's swaps one at a time and stops at the first failure.
// Earlier swaps are not rolled back; the returned *SwapFailedError lists them.
// On failure Result.Plan carries the holdings as they were before the rebalance.
func Execute(ctx context.Context, plan *Plan, executor SwapExecutor) (*Result, error) {
	result := &Result{Plan: plan, Executed: []models.SwapInstruction{}}
	if plan.Outcome != OutcomeRebalanced && plan.Outcome != OutcomeNoChanges {
		return result, nil
	}

	for _, swap := range plan.Swaps {
		if err := executor.Swap(ctx, swap); err != nil {
			result.Plan = plan.unapplied()
			return result, &SwapFailedError{
				From:     swap.FromToken,
				To:       swap.ToToken,
				Executed: result.Executed,
				Cause:    err,
			}
		}
		result.Executed = append(result.Executed, swap)
	}
	return result, nil
}

// unapplied returns a copy of p whose allocations keep their starting percentages
func (p *Plan) unapplied() *Plan {
	out := *p
	out.Allocations = make([]Allocation, len(p.Allocations))
	for i, a := range p.Allocations {
		a.After = a.Before
		a.Divested = false
		out.Allocations[i] = a
	}
	out.ProjectedWeightedScore = p.CurrentWeightedScore
	return &out
}

// Apply returns a copy of snapshot with the plan's projected holdings
func (p *Plan) Apply(snapshot models.PortfolioSnapshot) models.PortfolioSnapshot {
	out := snapshot
	out.Tokens = make([]models.ValuedToken, len(snapshot.Tokens))
	copy(out.Tokens, snapshot.Tokens)
	for i := range out.Tokens {
		if i < len(p.Allocations) && p.Allocations[i].ContractAddress == out.Tokens[i].ContractAddress {
			out.Tokens[i].HoldingPercent = p.Allocations[i].After
		}
	}
	out.WeightedRisk, out.WeightedSecurityScore = weighted(out.Tokens)
	return out
}

func weightedScore(allocs []Allocation, percent func(Allocation) float64) float64 {
	score := 0.0
	for _, a := range allocs {
		score += percent(a) / 100 * a.SecurityScore
	}
	return score
}

// indicesByScore orders token indices by security score, keeping input order on ties
func indicesByScore(tokens []models.ValuedToken, descending bool) []int {
	idx := make([]int, len(tokens))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if descending {
			return tokens[idx[a]].SecurityScore > tokens[idx[b]].SecurityScore
		}
		return tokens[idx[a]].SecurityScore < tokens[idx[b]].SecurityScore
	})
	return idx
}
