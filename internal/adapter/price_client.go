package adapter

import (
	"context"
	"net/url"
	"strings"

	"github.com/defi-health-scanner/internal/types"
)

// CoinMarketCapClient looks up latest USD quotes
type CoinMarketCapClient struct {
	baseURL string
	apiKey  string
	http    *HTTPClient
}

// NewCoinMarketCapClient creates a quote client
func NewCoinMarketCapClient(baseURL, apiKey string, http *HTTPClient) *CoinMarketCapClient {
	return &CoinMarketCapClient{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: http}
}

// PriceUSD returns the latest USD price of symbol, or Unavailable when CoinMarketCap does not list it
func (c *CoinMarketCapClient) PriceUSD(ctx context.Context, symbol string) (types.Optional[float64], error) {
	symbol = strings.ToUpper(symbol)
	var resp struct {
		Data map[string]struct {
			Quote map[string]struct {
				Price *float64 `json:"price"`
			} `json:"quote"`
		} `json:"data"`
	}

	endpoint := c.baseURL + "/v1/cryptocurrency/quotes/latest?symbol=" + url.QueryEscape(symbol)
	headers := map[string]string{"X-CMC_PRO_API_KEY": c.apiKey}
	if err := c.http.GetJSON(ctx, endpoint, headers, &resp); err != nil {
		return types.Unavailable[float64](), err
	}

	entry, ok := resp.Data[symbol]
	if !ok {
		return types.Unavailable[float64](), nil
	}
	usd, ok := entry.Quote["USD"]
	if !ok || usd.Price == nil {
		return types.Unavailable[float64](), nil
	}
	return types.Known(*usd.Price), nil
}
