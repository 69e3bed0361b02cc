package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/defi-health-scanner/internal/adapter"
	"github.com/defi-health-scanner/internal/config"
	apperrors "github.com/defi-health-scanner/internal/errors"
	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/metrics"
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/scoring"
	"github.com/defi-health-scanner/internal/types"
)

const (
	// dashboardConcurrency bounds parallel project assessments
	dashboardConcurrency = 4

	// assessTimeout bounds a shared assessment once it is detached from its callers
	assessTimeout = 30 * time.Second
)

// AssessmentService builds project assessments from the data sources.
// Nothing is kept between requests: concurrent requests for the same project
// share one in-flight computation and every later request recomputes.
type AssessmentService struct {
	sources  DataSources
	catalog  *config.Catalog
	scorer   *scoring.SecurityScorer
	inflight singleflight.Group
}

// NewAssessmentService creates an assessment service
func NewAssessmentService(sources DataSources, catalog *config.Catalog) *AssessmentService {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &AssessmentService{
		sources: sources,
		catalog: catalog,
		scorer:  scoring.NewSecurityScorer(),
	}
}

// Catalog returns the tracked projects
func (s *AssessmentService) Catalog() *config.Catalog {
	return s.catalog
}

// AssessProject scores one project. An empty symbol is resolved through the catalog.
func (s *AssessmentService) AssessProject(ctx context.Context, name, symbol string) (*models.ProjectAssessment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &types.ServiceError{Code: "INVALID_INPUT", Message: "project name is required"}
	}
	if symbol == "" {
		project, ok := s.catalog.Lookup(name)
		if !ok {
			return nil, &types.ServiceError{
				Code:    "PROJECT_NOT_FOUND",
				Message: "project is not tracked and no symbol was given",
				Details: map[string]interface{}{"project": name},
			}
		}
		name, symbol = project.Name, project.Symbol
	}
	symbol = strings.ToUpper(symbol)

	// the computation runs detached so one caller leaving does not fail the others
	key := strings.ToLower(name) + ":" + strings.ToLower(symbol)
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), assessTimeout)
		defer cancel()
		return s.assess(loadCtx, name, symbol)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		assessment := *res.Val.(*models.ProjectAssessment)
		return &assessment, nil
	}
}

// Dashboard assesses every catalog project, in catalog order
func (s *AssessmentService) Dashboard(ctx context.Context) ([]*models.ProjectAssessment, error) {
	projects := s.catalog.Projects
	results := make([]*models.ProjectAssessment, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardConcurrency)
	for i, p := range projects {
		g.Go(func() error {
			assessment, err := s.AssessProject(gctx, p.Name, p.Symbol)
			if err != nil {
				return err
			}
			results[i] = assessment
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *AssessmentService) assess(ctx context.Context, name, symbol string) (*models.ProjectAssessment, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"project": name,
		"symbol":  symbol,
	})

	audits, err := s.sources.Audits.FindByProject(ctx, name)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load audits", err)
	}
	incidents, err := s.sources.Incidents.FindByProject(ctx, name)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load incidents", err)
	}
	pools, err := s.sources.Pools.FindBySymbol(ctx, symbol)
	if err != nil {
		return nil, apperrors.NewDatabaseError("load pools", err)
	}

	security := s.scorer.Score(name, audits)
	report := scoring.ClassifyIncidents(name, incidents)
	stats := s.marketStats(ctx, logger, symbol)
	health := scoring.HealthScore(security, report, stats)
	metrics.HealthScores.Observe(health.HealthScore)

	logger.WithFields(map[string]interface{}{
		"securityScore": security.TotalScore,
		"healthScore":   health.HealthScore,
	}).Debug("project assessed")

	return &models.ProjectAssessment{
		ProjectName:   name,
		Symbol:        symbol,
		Security:      security,
		Incidents:     report,
		HacksReported: report.HacksReported(),
		MarketStats:   stats,
		Tvl:           scoring.AggregatePools(symbol, pools),
		Health:        health,
	}, nil
}

// marketStats never fails: a missing or failing upstream yields all-NA stats
func (s *AssessmentService) marketStats(ctx context.Context, logger *logging.Logger, symbol string) models.TokenMarketStats {
	raw, err := s.sources.MarketStats.TokenStats(ctx, symbol)
	switch {
	case errors.Is(err, adapter.ErrNoData):
		logger.Debug("no market stats for token")
		return models.UnavailableMarketStats(symbol)
	case err != nil:
		logger.WithError(err).Warn("market stats unavailable")
		return models.UnavailableMarketStats(symbol)
	}
	return scoring.NormalizeMarketStats(symbol, raw)
}
