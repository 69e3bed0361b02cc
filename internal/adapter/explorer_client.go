package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/types"
)

// ExplorerClient reads ERC-20 transfer history from an Etherscan-compatible explorer API
type ExplorerClient struct {
	baseURL string
	apiKey  string
	http    *HTTPClient
}

// explorerTokenTransfer is one row of the tokentx action
type explorerTokenTransfer struct {
	Hash            string `json:"hash"`
	TimeStamp       string `json:"timeStamp"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	ContractAddress string `json:"contractAddress"`
	TokenName       string `json:"tokenName"`
	TokenSymbol     string `json:"tokenSymbol"`
	TokenDecimal    string `json:"tokenDecimal"`
}

// NewExplorerClient creates a client for the explorer at baseURL (e.g. https://api.sonicscan.org/api)
func NewExplorerClient(baseURL, apiKey string, http *HTTPClient) *ExplorerClient {
	return &ExplorerClient{baseURL: baseURL, apiKey: apiKey, http: http}
}

// TokenTransfers returns every ERC-20 transfer touching address, newest first
func (c *ExplorerClient) TokenTransfers(ctx context.Context, address string) ([]types.TokenTransfer, error) {
	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "tokentx")
	q.Set("address", address)
	q.Set("sort", "desc")
	q.Set("apikey", c.apiKey)

	var raw struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	if raw.Status != "1" {
		if raw.Message == "No transactions found" || raw.Message == "No records found" {
			return []types.TokenTransfer{}, nil
		}
		return nil, &UpstreamError{Service: "explorer", StatusCode: 200, Body: raw.Message}
	}

	// Some explorers return a string result instead of an empty list
	if len(raw.Result) > 0 && raw.Result[0] == '"' {
		return []types.TokenTransfer{}, nil
	}

	var rows []explorerTokenTransfer
	if err := json.Unmarshal(raw.Result, &rows); err != nil {
		return nil, &UpstreamError{Service: "explorer", StatusCode: 200, Cause: fmt.Errorf("failed to parse token transfers: %w", err)}
	}

	transfers := make([]types.TokenTransfer, 0, len(rows))
	for _, row := range rows {
		decimals, err := strconv.Atoi(row.TokenDecimal)
		if err != nil {
			logging.FromContext(ctx).WithField("contract", row.ContractAddress).Debug("skipping transfer without decimals")
			continue
		}
		ts, _ := strconv.ParseInt(row.TimeStamp, 10, 64)
		transfers = append(transfers, types.TokenTransfer{
			Hash:            row.Hash,
			ContractAddress: row.ContractAddress,
			From:            row.From,
			To:              row.To,
			Value:           row.Value,
			TokenName:       row.TokenName,
			TokenSymbol:     row.TokenSymbol,
			TokenDecimal:    decimals,
			Timestamp:       ts,
		})
	}
	return transfers, nil
}
