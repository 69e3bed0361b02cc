package models

import (
	"encoding/json"
	"time"

	"github.com/defi-health-scanner/internal/types"
)

// AuditRecord is one published security review of a project
type AuditRecord struct {
	Source   string `json:"source" bson:"source"`
	FileName string `json:"fileName" bson:"fileName"`
}

// IncidentRecord is one reported exploit. Source holds the report link.
type IncidentRecord struct {
	Date         string               `json:"date" bson:"date"`
	Protocol     string               `json:"protocol" bson:"protocol"`
	AmountLost   string               `json:"amountLost" bson:"amountLost"`
	AttackMethod string               `json:"attackMethod" bson:"attackMethod"`
	Description  string               `json:"description" bson:"description"`
	Source       string               `json:"source" bson:"source"`
	SourceType   types.IncidentSource `json:"-" bson:"sourceType"`
}

// NoHacksFound is the sentinel message for an incident channel without incidents
const NoHacksFound = "No hacks found"

// IncidentChannel holds the incidents reported by one source.
// An empty channel serializes as {"message": "No hacks found"}.
type IncidentChannel struct {
	Incidents []IncidentRecord
}

// HasIncidents reports whether the channel holds at least one real incident
func (c IncidentChannel) HasIncidents() bool {
	return len(c.Incidents) > 0
}

func (c IncidentChannel) MarshalJSON() ([]byte, error) {
	if !c.HasIncidents() {
		return json.Marshal(map[string]string{"message": NoHacksFound})
	}
	return json.Marshal(c.Incidents)
}

func (c *IncidentChannel) UnmarshalJSON(data []byte) error {
	var incidents []IncidentRecord
	if err := json.Unmarshal(data, &incidents); err == nil {
		c.Incidents = incidents
		return nil
	}
	var sentinel map[string]string
	if err := json.Unmarshal(data, &sentinel); err != nil {
		return err
	}
	c.Incidents = nil
	return nil
}

// IncidentReport is the per-project split of incidents by source
type IncidentReport struct {
	ProjectName string          `json:"projectName"`
	SlowMist    IncidentChannel `json:"slowmist"`
	RektNews    IncidentChannel `json:"rekt_news"`
}

// HacksReported is true iff either channel holds a real incident
func (r IncidentReport) HacksReported() bool {
	return r.SlowMist.HasIncidents() || r.RektNews.HasIncidents()
}

// LiquidityPool is a yield pool as published by DeFi Llama
type LiquidityPool struct {
	Pool        string           `json:"pool" bson:"_id"`
	Chain       string           `json:"chain" bson:"chain"`
	Project     string           `json:"project" bson:"project"`
	Symbol      string           `json:"symbol" bson:"symbol"`
	TvlUsd      float64          `json:"tvlUsd" bson:"tvlUsd"`
	ApyBase     *float64         `json:"apyBase" bson:"apyBase"`
	Sigma       *float64         `json:"sigma" bson:"sigma"`
	IlRisk      string           `json:"ilRisk" bson:"ilRisk"`
	VolumeUsd1d *float64         `json:"volumeUsd1d" bson:"volumeUsd1d"`
	VolumeUsd7d *float64         `json:"volumeUsd7d" bson:"volumeUsd7d"`
	Predictions *PoolPredictions `json:"predictions" bson:"predictions"`
	UpdatedAt   time.Time        `json:"-" bson:"updatedAt"`
}

// PoolPredictions is DeFi Llama's APY outlook for a pool
type PoolPredictions struct {
	PredictedClass       string   `json:"predictedClass" bson:"predictedClass"`
	PredictedProbability *float64 `json:"predictedProbability" bson:"predictedProbability"`
}

// AIReport is a generated risk narrative for a project
type AIReport struct {
	ID          string    `json:"id" bson:"_id"`
	ProjectName string    `json:"projectName" bson:"project"`
	Report      string    `json:"report" bson:"aiReport"`
	Model       string    `json:"model" bson:"model"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// RawTokenStats is the unnormalized token snapshot returned by the market agent.
// Nil fields were absent from the upstream payload.
type RawTokenStats struct {
	Token             string   `json:"token"`
	PriceUSD          *float64 `json:"priceUsd"`
	TotalVolume24h    *float64 `json:"totalVolume24h"`
	TotalLiquidityUSD *float64 `json:"totalLiquidityUsd"`
	TotalMarketCap    *float64 `json:"totalMarketCap"`
	TotalBuys         *float64 `json:"totalBuys"`
	TotalSells        *float64 `json:"totalSells"`
}
