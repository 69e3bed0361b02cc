package scoring

import (
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/defi-health-scanner/internal/models"
)

func audits(sources ...string) []models.AuditRecord {
	out := make([]models.AuditRecord, len(sources))
	for i, s := range sources {
		out[i] = models.AuditRecord{Source: s, FileName: "Beets-" + s + ".pdf"}
	}
	return out
}

func TestSecurityScorer_Score(t *testing.T) {
	scorer := NewSecurityScorer()

	tests := []struct {
		name       string
		records    []models.AuditRecord
		wantTotal  int
		wantScore  float64
		wantSource []string
	}{
		{
			name:       "no audits",
			records:    nil,
			wantTotal:  0,
			wantScore:  0,
			wantSource: []string{},
		},
		{
			name:       "single known source",
			records:    audits("Cyfrin"),
			wantTotal:  1,
			wantScore:  95,
			wantSource: []string{"Cyfrin"},
		},
		{
			name:       "single unknown source",
			records:    audits("Some Auditor"),
			wantTotal:  1,
			wantScore:  50,
			wantSource: []string{"Some Auditor"},
		},
		{
			name:       "missing source is unknown",
			records:    []models.AuditRecord{{FileName: "x.pdf"}},
			wantTotal:  1,
			wantScore:  50,
			wantSource: []string{"Unknown"},
		},
		{
			name:       "max/min blend",
			records:    audits("Cyfrin", "Certik"),
			wantTotal:  2,
			wantScore:  82, // 0.8*95 + 0.2*30
			wantSource: []string{"Cyfrin", "Certik"},
		},
		{
			name:       "half weight floors single record to zero",
			records:    audits("Sherlock"),
			wantTotal:  0,
			wantScore:  0,
			wantSource: []string{"Sherlock"},
		},
		{
			name:       "half weight source next to one full audit",
			records:    audits("Sherlock", "Certik"),
			wantTotal:  1,
			wantScore:  30,
			wantSource: []string{"Sherlock", "Certik"},
		},
		{
			name:       "half weight pairs count once",
			records:    audits("Code4rena", "Code4rena", "Code4rena", "Pashov"),
			wantTotal:  2,
			wantScore:  90, // 0.8*93 + 0.2*78
			wantSource: []string{"Code4rena", "Pashov"},
		},
		{
			name:       "cap",
			records:    audits("Certik", "Certik", "Certik", "Certik", "Certik", "Certik", "Certik", "Certik"),
			wantTotal:  8,
			wantScore:  SecurityScoreCap,
			wantSource: []string{"Certik"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score("Beets", tt.records)
			assert.Equal(t, "Beets", got.ProjectName)
			assert.Equal(t, tt.wantTotal, got.TotalAudits)
			assert.InDelta(t, tt.wantScore, got.TotalScore, 1e-9)
			assert.Equal(t, tt.wantSource, got.AuditedBy)
		})
	}
}

func fullWeightSources() []string {
	var names []string
	for s := range DefaultSourceWeights {
		if !DefaultHalfWeightSources[s] {
			names = append(names, s)
		}
	}
	sort.Strings(names)
	return names
}

// Property: eight or more effective audits always score the cap
func TestSecurityScorer_CapProperty(t *testing.T) {
	scorer := NewSecurityScorer()
	names := append(fullWeightSources(), "Unlisted Auditor")

	properties := gopter.NewProperties(nil)
	properties.Property("total >= 8 scores 99", prop.ForAll(
		func(n, offset int) bool {
			picked := make([]string, n)
			for i := range picked {
				picked[i] = names[(offset+i)%len(names)]
			}
			got := scorer.Score("p", audits(picked...))
			return got.TotalAudits == n && got.TotalScore == SecurityScoreCap
		},
		gen.IntRange(CapAuditCount, 60),
		gen.IntRange(0, len(names)-1),
	))

	properties.TestingRun(t)
}

// Property: a single audit from a known full-weight source scores exactly its table weight
func TestSecurityScorer_SingleSourceProperty(t *testing.T) {
	scorer := NewSecurityScorer()
	names := fullWeightSources()

	properties := gopter.NewProperties(nil)
	properties.Property("one audit scores its weight", prop.ForAll(
		func(idx int) bool {
			source := names[idx]
			return scorer.Score("p", audits(source)).TotalScore == DefaultSourceWeights[source]
		},
		gen.IntRange(0, len(names)-1),
	))

	properties.TestingRun(t)
}
