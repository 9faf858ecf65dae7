package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

func toToolRequest(call schema.ToolCall) (contractx.ToolRequest, error) {
	tool := strings.TrimSpace(call.Function.Name)
	if tool == "" {
		return contractx.ToolRequest{}, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
	}

	args := map[string]any{}
	rawArgs := strings.TrimSpace(call.Function.Arguments)
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return contractx.ToolRequest{}, fmt.Errorf("invalid arguments for tool=%s: %v", tool, err)
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	return contractx.ToolRequest{
		CallID: call.ID,
		Tool:   tool,
		Args:   args,
	}, nil
}

// assistantMessage keeps only what the next model call needs.
func assistantMessage(msg *schema.Message) *schema.Message {
	out := schema.AssistantMessage(msg.Content, nil)
	if len(msg.ToolCalls) > 0 {
		out.ToolCalls = append([]schema.ToolCall(nil), msg.ToolCalls...)
	}
	return out
}
