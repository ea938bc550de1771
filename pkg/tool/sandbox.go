package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tarsy-labs/mlm/pkg/llm"
)

// ExecResult is SandboxService's response to a tool execution.
type ExecResult struct {
	Success       bool    `json:"success"`
	Output        string  `json:"output"`
	Error         string  `json:"error"`
	ExecutionTime float64 `json:"execution_time"`
	ExecID        string  `json:"exec_id"`
}

// SandboxClient calls the collaborator SandboxService (spec §6).
type SandboxClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewSandboxClient(baseURL string, timeout time.Duration) *SandboxClient {
	return &SandboxClient{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

// ListTools calls GET /api/tools-openai and returns the tool manifest in
// the same ToolDefinition shape the model endpoint expects.
func (c *SandboxClient) ListTools(ctx context.Context) ([]llm.ToolDefinition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tools-openai", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox: list tools: %w", llm.ClassifyTransportErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("sandbox: list tools: status %d", resp.StatusCode)
		return nil, fmt.Errorf("%w", llm.ClassifyStatusErr(statusErr))
	}

	var defs []llm.ToolDefinition
	if err := json.NewDecoder(resp.Body).Decode(&defs); err != nil {
		return nil, fmt.Errorf("sandbox: decode tool manifest: %w", err)
	}
	return defs, nil
}

// Execute calls POST /api/execute/{tool} {args, session_id}.
func (c *SandboxClient) Execute(ctx context.Context, tool, sessionID string, args json.RawMessage) (ExecResult, error) {
	body, err := json.Marshal(struct {
		Args      json.RawMessage `json:"args"`
		SessionID string          `json:"session_id"`
	}{Args: args, SessionID: sessionID})
	if err != nil {
		return ExecResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/execute/"+tool, bytes.NewReader(body))
	if err != nil {
		return ExecResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: execute %s: %w", tool, llm.ClassifyTransportErr(err))
	}
	defer resp.Body.Close()

	var result ExecResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ExecResult{}, fmt.Errorf("sandbox: decode execute response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && result.Error == "" {
		result.Error = fmt.Sprintf("sandbox returned status %d", resp.StatusCode)
	}
	return result, nil
}
