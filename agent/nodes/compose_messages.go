package orchestratornode

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
	promptx "github.com/tanpawarit/device-reservation-agent/agent/prompt"
)

type actionSummary struct {
	Action        contractx.ActionType `json:"action"`
	StartTime     *string              `json:"start_time"`
	ReservationID *string              `json:"reservation_id"`
	Result        any                  `json:"result"`
}

// ComposeActionMessages builds the synthetic human input of the action turn:
// a machine-readable summary followed by the instruction for the action.
func ComposeActionMessages(in *ActionState, prompts promptx.PromptSet) (*ActionState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: action state is nil", contractx.ErrValidation)
	}

	instruction, err := prompts.ActionInstruction(in.Action)
	if err != nil {
		return nil, err
	}
	if instruction == "" {
		return nil, fmt.Errorf("%w: instruction for action=%s", contractx.ErrPromptMissing, in.Action)
	}

	summary := actionSummary{
		Action: in.Action,
		Result: in.Result,
	}
	if in.StartTime != "" {
		summary.StartTime = &in.StartTime
	}
	if in.ReservationID != "" {
		summary.ReservationID = &in.ReservationID
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal action summary: %w", err)
	}

	in.Messages = []*schema.Message{
		schema.UserMessage(string(raw)),
		schema.UserMessage(instruction),
	}
	return in, nil
}
