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
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/storage"
	"github.com/defi-health-scanner/internal/types"
)

const reportSystemPrompt = "You are a DeFi security expert."

// ReportStore persists generated reports
type ReportStore interface {
	Save(ctx context.Context, report *models.AIReport) error
	Latest(ctx context.Context, project string) (*models.AIReport, error)
}

// AccessStore tracks paid report access
type AccessStore interface {
	ClaimPayment(ctx context.Context, txHash, wallet string) (bool, error)
	ReleasePayment(ctx context.Context, txHash string) error
	Grant(ctx context.Context, grant *models.AccessGrant) error
	HasAccess(ctx context.Context, wallet string) (bool, error)
}

// PaymentChecker confirms an on-chain report payment
type PaymentChecker interface {
	Verify(ctx context.Context, txHash, payer string) (bool, error)
}

// TextGenerator produces report text from a prompt
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, systemPrompt, model string) (string, error)
}

// ProjectAssessor scores a single project
type ProjectAssessor interface {
	AssessProject(ctx context.Context, name, symbol string) (*models.ProjectAssessment, error)
}

// ReportService generates AI reports and gates them behind payment
type ReportService struct {
	reports        ReportStore
	access         AccessStore
	payments       PaymentChecker
	generator      TextGenerator
	assessor       ProjectAssessor
	model          string
	accessDuration time.Duration
}

// ReportServiceOptions configures a ReportService
type ReportServiceOptions struct {
	Reports        ReportStore
	Access         AccessStore
	Payments       PaymentChecker
	Generator      TextGenerator
	Assessor       ProjectAssessor
	Model          string
	AccessDuration time.Duration
}

// NewReportService creates a new report service
func NewReportService(opts ReportServiceOptions) *ReportService {
	if opts.AccessDuration <= 0 {
		opts.AccessDuration = 30 * 24 * time.Hour
	}
	return &ReportService{
		reports:        opts.Reports,
		access:         opts.Access,
		payments:       opts.Payments,
		generator:      opts.Generator,
		assessor:       opts.Assessor,
		model:          opts.Model,
		accessDuration: opts.AccessDuration,
	}
}

// GetReport returns the latest report for project if wallet has paid access
func (s *ReportService) GetReport(ctx context.Context, wallet, project string) (*models.AIReport, error) {
	ok, err := s.access.HasAccess(ctx, wallet)
	if err != nil {
		return nil, apperrors.NewCacheError("check report access", err)
	}
	if !ok {
		return nil, apperrors.NewPaymentRequiredError(wallet)
	}

	report, err := s.reports.Latest(ctx, project)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &types.ServiceError{
			Code:    "REPORT_NOT_FOUND",
			Message: "no report has been generated for this project",
			Details: map[string]interface{}{"project": project},
		}
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("load report", err)
	}
	return report, nil
}

// UnlockReports verifies a payment transaction and grants wallet report access.
// Each transaction unlocks access once.
func (s *ReportService) UnlockReports(ctx context.Context, wallet, txHash string) (*models.AccessGrant, error) {
	if !adapter.IsTxHash(txHash) {
		return nil, apperrors.NewInvalidParameterError("txHash", "must be a 32-byte hex transaction hash")
	}
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"wallet": wallet,
		"txHash": txHash,
	})

	verified, err := s.payments.Verify(ctx, txHash, wallet)
	if err != nil {
		return nil, apperrors.NewProviderError("payment-rpc", err)
	}
	if !verified {
		logger.Info("payment not verified")
		return nil, apperrors.NewPaymentNotVerifiedError(txHash)
	}

	claimed, err := s.access.ClaimPayment(ctx, txHash, wallet)
	if err != nil {
		return nil, apperrors.NewCacheError("claim payment", err)
	}
	if !claimed {
		logger.Warn("payment already used")
		return nil, apperrors.NewPaymentNotVerifiedError(txHash)
	}

	now := time.Now().UTC()
	grant := &models.AccessGrant{
		WalletAddress: wallet,
		TxHash:        strings.ToLower(txHash),
		GrantedAt:     now,
		ExpiresAt:     now.Add(s.accessDuration),
	}
	if err := s.access.Grant(ctx, grant); err != nil {
		// an unclaimed hash lets the wallet retry with the same payment
		if releaseErr := s.access.ReleasePayment(ctx, txHash); releaseErr != nil {
			logger.WithError(releaseErr).Error("failed to release payment claim")
		}
		return nil, apperrors.NewCacheError("grant report access", err)
	}
	logger.Info("report access granted")
	return grant, nil
}

// GenerateReport asks the agent for a risk analysis of project and stores it
func (s *ReportService) GenerateReport(ctx context.Context, project string) (*models.AIReport, error) {
	assessment, err := s.assessor.AssessProject(ctx, project, "")
	if err != nil {
		return nil, err
	}

	text, err := s.generator.GenerateText(ctx, ReportPrompt(assessment), reportSystemPrompt, s.model)
	if err != nil {
		return nil, apperrors.NewProviderError("agent", err)
	}

	report := &models.AIReport{
		ID:          strings.ReplaceAll(uuid.New().String(), "-", ""),
		ProjectName: assessment.ProjectName,
		Report:      text,
		Model:       s.model,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.reports.Save(ctx, report); err != nil {
		return nil, apperrors.NewDatabaseError("save report", err)
	}
	logging.FromContext(ctx).WithField("project", report.ProjectName).Info("report generated")
	return report, nil
}

// ReportPrompt renders the analysis request for one assessment
func ReportPrompt(a *models.ProjectAssessment) string {
	auditedBy := "None"
	if len(a.Security.AuditedBy) > 0 {
		auditedBy = strings.Join(a.Security.AuditedBy, ", ")
	}
	hacks := "None reported"
	if a.HacksReported {
		var parts []string
		for _, channel := range []models.IncidentChannel{a.Incidents.SlowMist, a.Incidents.RektNews} {
			for _, r := range channel.Incidents {
				parts = append(parts, fmt.Sprintf("%s %s (%s, lost %s)", r.Date, r.Protocol, r.AttackMethod, r.AmountLost))
			}
		}
		hacks = strings.Join(parts, "; ")
	}

	var b strings.Builder
	b.WriteString("Analyze the following DeFi project and provide a security and risk assessment:\n\n")
	fmt.Fprintf(&b, "**Project Name:** %s\n", a.ProjectName)
	fmt.Fprintf(&b, "**Audit Security Score:** %g\n", a.Security.TotalScore)
	fmt.Fprintf(&b, "**Total Audits Conducted:** %d\n", a.Security.TotalAudits)
	fmt.Fprintf(&b, "**Audited By:** %s\n", auditedBy)
	fmt.Fprintf(&b, "**Past Hacks:** %s\n\n", hacks)

	b.WriteString("**Token Statistics:**\n")
	fmt.Fprintf(&b, "- Token Symbol: %s\n", a.Symbol)
	fmt.Fprintf(&b, "- Price (USD): %s\n", optionalString(a.MarketStats.PriceUSD))
	fmt.Fprintf(&b, "- 24h Trading Volume: %s\n", optionalString(a.MarketStats.TotalVolume24h))
	fmt.Fprintf(&b, "- Liquidity Risk: %s\n", a.MarketStats.LiquidityRisk)
	fmt.Fprintf(&b, "- Market Sentiment: %s\n\n", a.MarketStats.MarketSentiment)

	b.WriteString("**Key Metrics:**\n")
	if tvl, ok := a.Tvl.Get(); ok {
		fmt.Fprintf(&b, "- TVL (Total Value Locked): $%.2f\n", tvl.TotalTvl)
		fmt.Fprintf(&b, "- Average APY: %.2f%%\n", tvl.AvgApy)
		fmt.Fprintf(&b, "- Impermanent Loss Risk: %.2f\n", tvl.ImpermanentLossRisk)
		fmt.Fprintf(&b, "- Number of Pools: %d\n", tvl.NumPools)
		fmt.Fprintf(&b, "- Predicted Probability of Decline: %.2f%%\n", tvl.PredictedProbability)
	} else {
		b.WriteString("- No liquidity pool data available\n")
	}

	b.WriteString("\nProvide an expert-level risk analysis for users interacting with this protocol, ")
	b.WriteString("including security insights, investment risks, and any potential red flags.\n")
	b.WriteString("If the audit count is 0, there is no audit data; it does not mean the project was never audited.\n")
	return b.String()
}

func optionalString(o types.Optional[float64]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprintf("%g", v)
	}
	return "Unknown"
}
