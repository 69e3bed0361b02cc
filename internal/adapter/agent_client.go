package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/defi-health-scanner/internal/models"
)

// AgentClient talks to the on-chain agent service that serves token stats,
// executes swaps and generates report text.
type AgentClient struct {
	baseURL    string
	agentName  string
	connection string
	http       *HTTPClient
}

type agentAction struct {
	Connection string        `json:"connection"`
	Action     string        `json:"action"`
	Params     []interface{} `json:"params"`
}

type agentResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// NewAgentClient creates an agent client. connection selects the chain plugin (e.g. "sonic").
func NewAgentClient(baseURL, agentName, connection string, http *HTTPClient) *AgentClient {
	return &AgentClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		agentName:  agentName,
		connection: connection,
		http:       http,
	}
}

// Load makes sure the agent is loaded before actions are sent
func (c *AgentClient) Load(ctx context.Context) error {
	return c.http.PostJSON(ctx, fmt.Sprintf("%s/agents/%s/load", c.baseURL, c.agentName), nil, nil)
}

// TokenStats fetches the raw market snapshot for a token symbol.
// An agent-level error status is reported as ErrNoData.
func (c *AgentClient) TokenStats(ctx context.Context, symbol string) (models.RawTokenStats, error) {
	if err := c.Load(ctx); err != nil {
		return models.RawTokenStats{}, err
	}

	var resp agentResponse
	action := agentAction{Connection: c.connection, Action: "get-token-stats", Params: []interface{}{symbol}}
	if err := c.http.PostJSON(ctx, c.baseURL+"/agent/action", action, &resp); err != nil {
		return models.RawTokenStats{}, err
	}
	if resp.Status == "error" || len(resp.Result) == 0 || string(resp.Result) == "null" {
		return models.RawTokenStats{}, ErrNoData
	}

	var raw models.RawTokenStats
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return models.RawTokenStats{}, &UpstreamError{Service: "agent", StatusCode: 200, Cause: fmt.Errorf("malformed token stats: %w", err)}
	}
	if raw.Token == "" {
		raw.Token = symbol
	}
	return raw, nil
}

// Swap submits one swap signed with privateKey. It is attempted exactly once.
func (c *AgentClient) Swap(ctx context.Context, privateKey string, swap models.SwapInstruction) error {
	action := agentAction{
		Connection: c.connection,
		Action:     "swap",
		Params:     []interface{}{privateKey, swap.FromContract, swap.ToContract, swap.Amount.String()},
	}
	var resp agentResponse
	if err := c.http.PostJSONOnce(ctx, c.baseURL+"/agent/action", action, &resp); err != nil {
		return err
	}
	if resp.Status == "error" {
		return &UpstreamError{Service: "agent", StatusCode: 200, Body: resp.Error}
	}
	return nil
}

// GenerateText asks the agent's language model connection for a completion
func (c *AgentClient) GenerateText(ctx context.Context, prompt, systemPrompt, model string) (string, error) {
	action := agentAction{
		Connection: "openai",
		Action:     "generate-text",
		Params:     []interface{}{prompt, systemPrompt, model},
	}
	var resp agentResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/agent/action", action, &resp); err != nil {
		return "", err
	}
	if resp.Status == "error" {
		return "", &UpstreamError{Service: "agent", StatusCode: 200, Body: resp.Error}
	}

	var text string
	if err := json.Unmarshal(resp.Result, &text); err == nil {
		return text, nil
	}
	return string(resp.Result), nil
}
