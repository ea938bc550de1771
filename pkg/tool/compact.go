package tool

import (
	"context"
	"log/slog"
	"strings"

	"github.com/tarsy-labs/mlm/pkg/llm"
)

const defaultCompactionRatio = 0.7
const defaultSummaryKeepLast = 6

// compactIfNeeded applies the summarization compaction spec §4.7
// describes when the estimated input size crosses the configured ratio of
// the model's context window. It keeps the system message and the last N
// messages verbatim and replaces everything between them with a summary.
func (o *Orchestrator) compactIfNeeded(ctx context.Context, client *llm.Client, modelID string, messages []llm.Message, maxContextTokens uint) []llm.Message {
	if maxContextTokens == 0 {
		return messages
	}

	ratio := o.cfg.CompactionRatio
	if ratio <= 0 {
		ratio = defaultCompactionRatio
	}
	keepLast := o.cfg.SummaryKeepLastMessages
	if keepLast <= 0 {
		keepLast = defaultSummaryKeepLast
	}

	if float64(estimateTokens(messages)) <= ratio*float64(maxContextTokens) {
		return messages
	}

	var system *llm.Message
	rest := messages
	if len(messages) > 0 && messages[0].Role == llm.RoleSystem {
		system = &messages[0]
		rest = messages[1:]
	}

	if len(rest) <= keepLast {
		return messages
	}

	middle := rest[:len(rest)-keepLast]
	tail := rest[len(rest)-keepLast:]

	summary := o.summarizeMiddle(ctx, client, modelID, middle)

	compacted := make([]llm.Message, 0, len(tail)+2)
	if system != nil {
		compacted = append(compacted, *system)
	}
	compacted = append(compacted, llm.Message{Role: llm.RoleUser, Content: summary})
	compacted = append(compacted, tail...)
	return compacted
}

// summarizeMiddle asks the same model for a short summary of the messages
// being dropped. On failure it falls back to a plain textual digest built
// from the user messages and the last assistant reply — no further model
// calls, so it cannot fail.
func (o *Orchestrator) summarizeMiddle(ctx context.Context, client *llm.Client, modelID string, middle []llm.Message) string {
	prompt := "Summarize the key facts and decisions from this conversation excerpt in a few sentences:\n\n" + renderMessages(middle)

	msg, _, err := client.ChatCompletion(ctx, llm.ChatRequest{
		Model:           modelID,
		Messages:        []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxOutputTokens: 512,
	})
	if err != nil {
		slog.Warn("summarization compaction call failed, falling back to truncation digest", "error", err)
		return fallbackSummary(middle)
	}
	return "Summary of earlier conversation: " + msg.Content
}

func renderMessages(messages []llm.Message) string {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func fallbackSummary(middle []llm.Message) string {
	var b strings.Builder
	b.WriteString("Summary of earlier conversation (auxiliary summarization unavailable):\n")
	var lastAssistant string
	for _, m := range middle {
		switch m.Role {
		case llm.RoleUser:
			b.WriteString("- user asked: ")
			b.WriteString(truncate(m.Content, 200))
			b.WriteString("\n")
		case llm.RoleAssistant:
			lastAssistant = m.Content
		}
	}
	if lastAssistant != "" {
		b.WriteString("- last assistant reply: ")
		b.WriteString(truncate(lastAssistant, 300))
		b.WriteString("\n")
	}
	return b.String()
}
