package api

import (
	"github.com/tarsy-labs/mlm/pkg/lifecycle"
	"github.com/tarsy-labs/mlm/pkg/llm"
	"github.com/tarsy-labs/mlm/pkg/tool"
)

// modelResponse is the JSON shape spec §6 defines for GET /api/models and
// GET /api/models/{id}.
type modelResponse struct {
	ID                string                     `json:"id"`
	Name              string                     `json:"name"`
	Engine            string                     `json:"engine"`
	Port              uint16                     `json:"port"`
	ContainerName     string                     `json:"container_name"`
	Status            string                     `json:"status"`
	EstimatedMemoryGB *float64                   `json:"estimated_memory_gb,omitempty"`
	MaxContextLength  uint                       `json:"max_context_length,omitempty"`
	SupportsTools     bool                       `json:"supports_tools,omitempty"`
	ToolCallParser    string                     `json:"tool_call_parser,omitempty"`
	StartupProgress   *lifecycle.StartupProgress `json:"startup_progress,omitempty"`
	LastFailureReason string                     `json:"last_failure_reason,omitempty"`
	InstanceID        string                     `json:"instance_id,omitempty"`
}

func toModelResponse(v lifecycle.RuntimeView) modelResponse {
	return modelResponse{
		ID:                v.ID,
		Name:              v.DisplayName,
		Engine:            v.EngineKind,
		Port:              v.Port,
		ContainerName:     v.ContainerName,
		Status:            string(v.State),
		EstimatedMemoryGB: v.EstimatedMemoryGB,
		MaxContextLength:  v.MaxContextTokens,
		SupportsTools:     v.SupportsTools,
		ToolCallParser:    v.ToolCallParser,
		StartupProgress:   v.StartupProgress,
		LastFailureReason: v.LastFailureReason,
		InstanceID:        v.InstanceID,
	}
}

// chatRequest is the inbound OpenAI-style body for POST /v1/chat/completions.
// Tools names the tool kinds the caller wants available this turn
// ("web_search", "sandbox:<name>") — MLM has no persisted per-session tool
// configuration, so the caller states it on every call.
type chatRequest struct {
	Model    string        `json:"model" binding:"required"`
	Messages []llm.Message `json:"messages" binding:"required"`
	Tools    []string      `json:"tools,omitempty"`
}

// chatResponseBody mirrors the OpenAI chat/completions response shape,
// extended with the optional search_results/sandbox_outputs arrays spec
// §6 calls for.
type chatResponseBody struct {
	ID             string              `json:"id"`
	Object         string              `json:"object"`
	Model          string              `json:"model"`
	Choices        []chatChoice        `json:"choices"`
	SearchResults  []tool.SearchResult `json:"search_results,omitempty"`
	SandboxOutputs []tool.ExecResult   `json:"sandbox_outputs,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      llm.Message `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

func finishReasonFor(r tool.ChatResult) string {
	if r.HitIterationCap {
		return "length"
	}
	return "stop"
}
