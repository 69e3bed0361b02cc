package adapter

import (
	"context"
	"strings"

	"github.com/defi-health-scanner/internal/models"
)

// DefiLlamaClient reads the DeFi Llama yields feed
type DefiLlamaClient struct {
	baseURL string
	http    *HTTPClient
}

// NewDefiLlamaClient creates a yields client for baseURL (e.g. https://yields.llama.fi)
func NewDefiLlamaClient(baseURL string, http *HTTPClient) *DefiLlamaClient {
	return &DefiLlamaClient{baseURL: strings.TrimRight(baseURL, "/"), http: http}
}

// Pools returns every pool on chain (case-insensitive, e.g. "Sonic")
func (c *DefiLlamaClient) Pools(ctx context.Context, chain string) ([]models.LiquidityPool, error) {
	var resp struct {
		Status string                 `json:"status"`
		Data   []models.LiquidityPool `json:"data"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/pools", nil, &resp); err != nil {
		return nil, err
	}

	pools := make([]models.LiquidityPool, 0)
	for _, p := range resp.Data {
		if strings.EqualFold(p.Chain, chain) {
			pools = append(pools, p)
		}
	}
	return pools, nil
}
