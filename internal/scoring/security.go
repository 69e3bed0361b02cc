// Package scoring turns raw research data into security, market and health scores.
// Every function here is pure: missing inputs degrade to NA or zero, never to an error.
package scoring

import (
	"math"

	"github.com/defi-health-scanner/internal/models"
)

const (
	// SecurityScoreCap is awarded to any project with at least CapAuditCount effective audits
	SecurityScoreCap = 99.0
	// CapAuditCount is the effective audit count at which the cap applies
	CapAuditCount = 8
	// UnknownSourceWeight is the credibility of an auditor missing from the table
	UnknownSourceWeight = 50.0
	// UnknownSource labels audit records without a source
	UnknownSource = "Unknown"
)

// DefaultSourceWeights is the credibility table for known auditors
var DefaultSourceWeights = map[string]float64{
	"Code4rena":           93,
	"Sherlock":            90,
	"Solidproof":          20,
	"Pashov":              78,
	"Cyfrin":              95,
	"Cantina":             95,
	"Zokyo":               75,
	"AuditOne":            80,
	"Certik":              30,
	"PaladinSec":          75,
	"HashEx":              69,
	"Quantstamp":          77,
	"Solidity Finance":    74,
	"Certora":             79,
	"Salus":               71,
	"Hacken":              73,
	"Sigma Prime":         76,
	"Consensys Diligence": 82,
}

// DefaultHalfWeightSources count each record as half an audit (floored per source)
var DefaultHalfWeightSources = map[string]bool{
	"Sherlock":  true,
	"Code4rena": true,
}

// SecurityScorer scores audit coverage
type SecurityScorer struct {
	weights    map[string]float64
	halfWeight map[string]bool
}

// NewSecurityScorer returns a scorer over the default credibility table
func NewSecurityScorer() *SecurityScorer {
	return &SecurityScorer{weights: DefaultSourceWeights, halfWeight: DefaultHalfWeightSources}
}

// Weight returns the credibility of a source, or UnknownSourceWeight
func (s *SecurityScorer) Weight(source string) float64 {
	if w, ok := s.weights[source]; ok {
		return w
	}
	return UnknownSourceWeight
}

// Score computes the security score of a project from its audit records.
//
// AuditedBy lists every source with at least one record in first-seen order,
// including half-weight sources whose single record floors to zero audits.
// Only sources with a non-zero effective count take part in the weight lookup.
func (s *SecurityScorer) Score(projectName string, records []models.AuditRecord) models.SecurityScore {
	counts := make(map[string]int)
	auditedBy := []string{}
	for _, r := range records {
		source := r.Source
		if source == "" {
			source = UnknownSource
		}
		if _, seen := counts[source]; !seen {
			auditedBy = append(auditedBy, source)
		}
		counts[source]++
	}

	total := 0
	var contributing []string
	for _, source := range auditedBy {
		n := counts[source]
		if s.halfWeight[source] {
			n /= 2
		}
		if n > 0 {
			contributing = append(contributing, source)
		}
		total += n
	}

	result := models.SecurityScore{
		ProjectName: projectName,
		AuditedBy:   auditedBy,
		TotalAudits: total,
	}

	switch {
	case total == 0:
		result.TotalScore = 0
	case total >= CapAuditCount:
		result.TotalScore = SecurityScoreCap
	case total == 1:
		result.TotalScore = s.Weight(contributing[0])
	default:
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, source := range contributing {
			w := s.Weight(source)
			lo = math.Min(lo, w)
			hi = math.Max(hi, w)
		}
		result.TotalScore = round(0.8*hi+0.2*lo, 2)
	}

	return result
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
