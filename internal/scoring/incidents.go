package scoring

import (
	"github.com/defi-health-scanner/internal/models"
	"github.com/defi-health-scanner/internal/types"
)

// ClassifyIncidents splits a project's incident records into per-source channels.
// Records from other sources are dropped; missing fields get display defaults.
func ClassifyIncidents(projectName string, records []models.IncidentRecord) models.IncidentReport {
	report := models.IncidentReport{ProjectName: projectName}
	for _, r := range records {
		switch r.SourceType {
		case types.SourceSlowMist:
			report.SlowMist.Incidents = append(report.SlowMist.Incidents, withDefaults(r))
		case types.SourceRektNews:
			report.RektNews.Incidents = append(report.RektNews.Incidents, withDefaults(r))
		}
	}
	return report
}

func withDefaults(r models.IncidentRecord) models.IncidentRecord {
	orDefault := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	r.Date = orDefault(r.Date, "Unknown Date")
	r.Protocol = orDefault(r.Protocol, "Unknown Protocol")
	r.AmountLost = orDefault(r.AmountLost, "N/A")
	r.AttackMethod = orDefault(r.AttackMethod, "Unknown")
	r.Description = orDefault(r.Description, "No description available")
	r.Source = orDefault(r.Source, "No link available")
	return r
}
