package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/defi-health-scanner/internal/adapter"
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/storage"
	"github.com/defi-health-scanner/internal/types"
)

type fakeAudits map[string][]models.AuditRecord

func (f fakeAudits) FindByProject(_ context.Context, project string) ([]models.AuditRecord, error) {
	return f[project], nil
}

type fakeIncidents map[string][]models.IncidentRecord

func (f fakeIncidents) FindByProject(_ context.Context, project string) ([]models.IncidentRecord, error) {
	return f[project], nil
}

type fakePools map[string][]models.LiquidityPool

func (f fakePools) FindBySymbol(_ context.Context, symbol string) ([]models.LiquidityPool, error) {
	return f[symbol], nil
}

type fakeMarket struct {
	stats map[string]models.RawTokenStats
	err   error
}

func (f *fakeMarket) TokenStats(_ context.Context, symbol string) (models.RawTokenStats, error) {
	if f.err != nil {
		return models.RawTokenStats{}, f.err
	}
	stats, ok := f.stats[symbol]
	if !ok {
		return models.RawTokenStats{}, adapter.ErrNoData
	}
	return stats, nil
}

type fakePrices map[string]float64

func (f fakePrices) PriceUSD(_ context.Context, symbol string) (types.Optional[float64], error) {
	price, ok := f[symbol]
	if !ok {
		return types.Unavailable[float64](), errors.New("no quote")
	}
	return types.Known(price), nil
}

type fakeHoldings struct {
	transfers []types.TokenTransfer
	err       error
}

func (f *fakeHoldings) TokenTransfers(context.Context, string) ([]types.TokenTransfer, error) {
	return f.transfers, f.err
}

type errAudits struct{ err error }

func (e errAudits) FindByProject(context.Context, string) ([]models.AuditRecord, error) {
	return nil, e.err
}

// gatedAudits blocks every lookup until release is closed or ctx ends
type gatedAudits struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *gatedAudits) FindByProject(ctx context.Context, _ string) ([]models.AuditRecord, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return []models.AuditRecord{{Source: "Cyfrin", FileName: "beets-v2.pdf"}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeAgent struct {
	failOn string
	calls  []models.SwapInstruction
	keys   []string
}

func (f *fakeAgent) Swap(_ context.Context, privateKey string, swap models.SwapInstruction) error {
	f.keys = append(f.keys, privateKey)
	if swap.FromToken == f.failOn {
		return errors.New("insufficient liquidity")
	}
	f.calls = append(f.calls, swap)
	return nil
}

type fakeSwapLog struct {
	entries []*models.ExecutedSwap
	err     error
}

func (f *fakeSwapLog) Append(_ context.Context, swaps ...*models.ExecutedSwap) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, swaps...)
	return nil
}

func (f *fakeSwapLog) ListByWallet(_ context.Context, wallet string, limit int) ([]*models.ExecutedSwap, error) {
	var out []*models.ExecutedSwap
	for _, e := range f.entries {
		if e.WalletAddress == wallet && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeFlows struct {
	flows map[string]*models.AgentFlow
}

func (f *fakeFlows) Create(_ context.Context, flow *models.AgentFlow) error {
	if f.flows == nil {
		f.flows = make(map[string]*models.AgentFlow)
	}
	flow.ID = "flow-" + string(rune('a'+len(f.flows)))
	flow.WalletAddress = strings.ToLower(flow.WalletAddress)
	flow.CreatedAt = time.Now()
	f.flows[flow.ID] = flow
	return nil
}

func (f *fakeFlows) GetByID(_ context.Context, id string) (*models.AgentFlow, error) {
	flow, ok := f.flows[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return flow, nil
}

func (f *fakeFlows) ListByWallet(_ context.Context, wallet string) ([]*models.AgentFlow, error) {
	var out []*models.AgentFlow
	for _, flow := range f.flows {
		if flow.WalletAddress == wallet {
			out = append(out, flow)
		}
	}
	return out, nil
}

type fakeUsers struct {
	visits map[string][]time.Time
	err    error
}

func (f *fakeUsers) RecordAccess(_ context.Context, wallet string, at time.Time) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.visits == nil {
		f.visits = make(map[string][]time.Time)
	}
	f.visits[wallet] = append(f.visits[wallet], at)
	return &models.User{ID: "user-1", WalletAddress: wallet, AccessTimes: f.visits[wallet]}, nil
}

type fakeSessions struct {
	open map[string]string
}

func (f *fakeSessions) Create(_ context.Context, wallet string) (*models.Session, error) {
	if f.open == nil {
		f.open = make(map[string]string)
	}
	id := "session-" + wallet[len(wallet)-4:]
	f.open[id] = wallet
	return &models.Session{ID: id, WalletAddress: wallet}, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	delete(f.open, id)
	return nil
}

type fakeReports struct {
	saved []*models.AIReport
}

func (f *fakeReports) Save(_ context.Context, report *models.AIReport) error {
	f.saved = append(f.saved, report)
	return nil
}

func (f *fakeReports) Latest(_ context.Context, project string) (*models.AIReport, error) {
	for i := len(f.saved) - 1; i >= 0; i-- {
		if f.saved[i].ProjectName == project {
			return f.saved[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

type fakeAccess struct {
	claimed   map[string]bool
	grants    map[string]*models.AccessGrant
	grantErrs []error
}

func (f *fakeAccess) ClaimPayment(_ context.Context, txHash, _ string) (bool, error) {
	if f.claimed == nil {
		f.claimed = make(map[string]bool)
	}
	if f.claimed[txHash] {
		return false, nil
	}
	f.claimed[txHash] = true
	return true, nil
}

func (f *fakeAccess) ReleasePayment(_ context.Context, txHash string) error {
	delete(f.claimed, txHash)
	return nil
}

func (f *fakeAccess) Grant(_ context.Context, grant *models.AccessGrant) error {
	if len(f.grantErrs) > 0 {
		err := f.grantErrs[0]
		f.grantErrs = f.grantErrs[1:]
		return err
	}
	if f.grants == nil {
		f.grants = make(map[string]*models.AccessGrant)
	}
	f.grants[grant.WalletAddress] = grant
	return nil
}

func (f *fakeAccess) HasAccess(_ context.Context, wallet string) (bool, error) {
	_, ok := f.grants[wallet]
	return ok, nil
}

type fakePayments struct {
	paid map[string]string
}

func (f *fakePayments) Verify(_ context.Context, txHash, payer string) (bool, error) {
	return f.paid[txHash] == payer, nil
}

type fakeGenerator struct {
	prompt string
	model  string
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt, _, model string) (string, error) {
	f.prompt, f.model = prompt, model
	return "Moderate risk.", nil
}
