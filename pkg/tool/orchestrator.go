package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tarsy-labs/mlm/pkg/llm"
)

const (
	defaultSafetyPadTokens = 256
	minOutputTokens        = 256
	charsPerTokenEstimate  = 4
)

// Orchestrator drives the bounded model/tool loop spec §4.7 describes.
type Orchestrator struct {
	resolver ModelResolver
	search   *SearchClient
	sandbox  *SandboxClient
	cfg      Config
}

func New(resolver ModelResolver, search *SearchClient, sandbox *SandboxClient, cfg Config) *Orchestrator {
	return &Orchestrator{resolver: resolver, search: search, sandbox: sandbox, cfg: cfg}
}

// Chat executes a chat request, fanning out tool calls until the model
// returns plain content or MaxIterations is reached. At the cap,
// FinalContent holds the content of the last model response.
func (o *Orchestrator) Chat(ctx context.Context, modelID string, messages []llm.Message, toolsRequested []string) (ChatResult, error) {
	baseURL, maxContextTokens, err := o.resolver.ResolveRunning(modelID)
	if err != nil {
		return ChatResult{}, err
	}

	client := llm.NewClient(baseURL, 30*time.Minute)

	tools, err := o.buildToolList(ctx, toolsRequested)
	if err != nil {
		return ChatResult{}, fmt.Errorf("tool: build tool list: %w", err)
	}

	result := ChatResult{}
	maxIterations := o.cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 10
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		result.Iterations = iteration + 1

		messages = o.compactIfNeeded(ctx, client, modelID, messages, maxContextTokens)
		maxOutput := safeMaxOutputTokens(maxContextTokens, estimateTokens(messages), o.cfg.MaxOutputTokens)

		message, finishReason, err := client.ChatCompletion(ctx, llm.ChatRequest{
			Model:           modelID,
			Messages:        messages,
			Tools:           tools,
			MaxOutputTokens: maxOutput,
		})
		if err != nil {
			return ChatResult{}, fmt.Errorf("tool: model call failed: %w", err)
		}
		_ = finishReason
		result.FinalContent = message.Content

		calls := message.ToolCalls
		if len(calls) == 0 {
			calls = parseLegacyToolCalls(message.Content)
		}
		if len(calls) == 0 {
			return result, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: message.Content, ToolCalls: calls})
		outcomes := o.dispatchToolCalls(ctx, calls, &result)
		for i, tc := range calls {
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    truncate(outcomes[i], o.cfg.ResultTruncateChars),
				ToolCallID: tc.ID,
				Name:       tc.Function.Name,
			})
		}
	}

	result.HitIterationCap = true
	slog.Warn("tool orchestration hit iteration cap", "model", modelID, "iterations", result.Iterations)
	return result, nil
}

func (o *Orchestrator) buildToolList(ctx context.Context, requested []string) ([]llm.ToolDefinition, error) {
	var defs []llm.ToolDefinition
	wantsSandbox := false
	for _, r := range requested {
		if r == webSearchToolName {
			defs = append(defs, webSearchToolDefinition())
		}
		if strings.HasPrefix(r, "sandbox:") {
			wantsSandbox = true
		}
	}
	if wantsSandbox && o.sandbox != nil {
		sandboxDefs, err := o.sandbox.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		defs = append(defs, sandboxDefs...)
	}
	return defs, nil
}

// dispatchToolCalls runs every call in calls concurrently and returns their
// string results in the same order, re-assembled after the fan-out (spec
// §5: "results re-assembled in the original call order").
func (o *Orchestrator) dispatchToolCalls(ctx context.Context, calls []llm.ToolCall, result *ChatResult) []string {
	outcomes := make([]string, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	searchResults := make([]*SearchResult, len(calls))
	sandboxResults := make([]*ExecResult, len(calls))

	for i, tc := range calls {
		i, tc := i, tc
		g.Go(func() error {
			outcomes[i] = o.runOneTool(gctx, tc, &searchResults[i], &sandboxResults[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, sr := range searchResults {
		if sr != nil {
			result.SearchResults = append(result.SearchResults, *sr)
		}
	}
	for _, er := range sandboxResults {
		if er != nil {
			result.SandboxOutputs = append(result.SandboxOutputs, *er)
		}
	}
	return outcomes
}

func (o *Orchestrator) runOneTool(ctx context.Context, tc llm.ToolCall, searchOut **SearchResult, sandboxOut **ExecResult) string {
	name := tc.Function.Name

	switch {
	case name == webSearchToolName:
		var args struct {
			Query      string `json:"query"`
			MaxResults int    `json:"max_results"`
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return formatToolError(name, "invalid arguments: "+err.Error())
		}
		if args.MaxResults <= 0 {
			args.MaxResults = 5
		}
		searchCtx, cancel := context.WithTimeout(ctx, o.searchTimeout())
		defer cancel()
		results, err := o.search.Search(searchCtx, args.Query, args.MaxResults)
		if err != nil {
			return formatToolError(name, err.Error())
		}
		data, _ := json.Marshal(results)
		if len(results) > 0 {
			*searchOut = &results[0]
		}
		return string(data)

	case o.sandbox != nil:
		sandboxCtx, cancel := context.WithTimeout(ctx, o.sandboxTimeout())
		defer cancel()
		res, err := o.sandbox.Execute(sandboxCtx, name, "", json.RawMessage(tc.Function.Arguments))
		if err != nil {
			return formatToolError(name, err.Error())
		}
		*sandboxOut = &res
		data, _ := json.Marshal(res)
		return string(data)

	default:
		return formatToolError(name, "unknown tool")
	}
}

func (o *Orchestrator) searchTimeout() time.Duration {
	if o.cfg.SearchTimeout > 0 {
		return o.cfg.SearchTimeout
	}
	return 30 * time.Second
}

func (o *Orchestrator) sandboxTimeout() time.Duration {
	if o.cfg.SandboxTimeout > 0 {
		return o.cfg.SandboxTimeout
	}
	return 60 * time.Second
}

// estimateTokens is a deterministic, model-agnostic heuristic: roughly
// 4 characters per token (spec §4.7: "any deterministic token-ish
// heuristic").
func estimateTokens(messages []llm.Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content) / charsPerTokenEstimate
	}
	return total
}

// safeMaxOutputTokens computes the per-call output budget as the minimum of
// three independent ceilings (spec §4.7): an administrator-configured cap,
// a fraction of the model's context window, and whatever room is left in
// the context window once the estimated input and a safety pad are
// subtracted. configuredCap of 0 means no administrator ceiling applies.
func safeMaxOutputTokens(maxContextTokens uint, estimatedInput int, configuredCap int) int {
	if maxContextTokens == 0 {
		return minOutputTokens
	}
	capByFraction := int(float64(maxContextTokens) * 0.4)
	capByRemaining := int(maxContextTokens) - estimatedInput - defaultSafetyPadTokens

	budget := capByFraction
	if capByRemaining < budget {
		budget = capByRemaining
	}
	if configuredCap > 0 && configuredCap < budget {
		budget = configuredCap
	}
	if budget < minOutputTokens {
		budget = minOutputTokens
	}
	return budget
}
