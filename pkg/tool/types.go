// Package tool implements the bounded tool-calling loop that drives a chat
// request through web-search and sandboxed code execution, grounded on
// tarsy's IteratingController (pkg/agent/controller/iterating.go) but
// collapsed to a single synchronous HTTP call per iteration instead of a
// streamed gRPC response.
package tool

import (
	"errors"
	"time"

	"github.com/tarsy-labs/mlm/pkg/llm"
)

// ErrModelNotReady is returned when chat is requested against a model
// whose runtime is not in the Running state (spec §4.7 step 1).
var ErrModelNotReady = errors.New("tool: model is not ready")

// Config bounds the orchestration loop. Each field corresponds to a
// config.Defaults entry (MaxIterations to MaxToolIterations, SearchTimeout
// to SearchCallTimeout, and so on); cmd/mlm wires them from the catalog.
type Config struct {
	MaxIterations           int
	ResultTruncateChars     int
	CompactionRatio         float64
	SummaryKeepLastMessages int
	SearchTimeout           time.Duration
	SandboxTimeout          time.Duration
	// MaxOutputTokens is an administrator-configured ceiling on every
	// chat completion's requested output size, independent of the
	// model's context window (spec §4.7's ConfiguredCap term). Zero
	// means no administrator ceiling is applied.
	MaxOutputTokens int
}

// ChatResult is what ToolOrchestrator.Chat returns (spec §4.7's public
// contract).
type ChatResult struct {
	FinalContent    string
	SearchResults   []SearchResult
	SandboxOutputs  []ExecResult
	Iterations      int
	HitIterationCap bool
}

// ModelResolver looks up a Running model's chat endpoint and context
// window. It narrows lifecycle.Engine down to what the orchestrator needs,
// so pkg/tool does not import pkg/lifecycle.
type ModelResolver interface {
	ResolveRunning(modelID string) (baseURL string, maxContextTokens uint, err error)
}

const webSearchToolName = "web_search"

func webSearchToolDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionSchema{
			Name:        webSearchToolName,
			Description: "Search the web for current information.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
	}
}
