package tool

import (
	"encoding/json"
	"regexp"

	"github.com/tarsy-labs/mlm/pkg/llm"
)

// legacyToolCallPattern matches the <tool_call>{...}</tool_call> fragments
// some older engines emit as plain text instead of structured tool_calls
// (spec §4.7 step 4b). Each fragment's JSON body carries "name" and
// "arguments".
var legacyToolCallPattern = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

type legacyToolCallBody struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// parseLegacyToolCalls scans content for tagged fragments and synthesizes
// structured ToolCalls with a deterministic id per position.
func parseLegacyToolCalls(content string) []llm.ToolCall {
	matches := legacyToolCallPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	calls := make([]llm.ToolCall, 0, len(matches))
	for i, m := range matches {
		var body legacyToolCallBody
		if err := json.Unmarshal([]byte(m[1]), &body); err != nil {
			continue
		}
		args := string(body.Arguments)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, llm.ToolCall{
			ID:   legacyCallID(i),
			Type: "function",
			Function: llm.FunctionCall{
				Name:      body.Name,
				Arguments: args,
			},
		})
	}
	return calls
}

func legacyCallID(index int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	return "legacy_" + string(alphabet[index%len(alphabet)])
}
