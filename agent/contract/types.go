package contract

type ActionType string

const (
	ActionConfirm ActionType = "confirm"
	ActionCancel  ActionType = "cancel"
)

func (a ActionType) Valid() bool {
	return a == ActionConfirm || a == ActionCancel
}

// TurnContext travels with every tool invocation of one turn.
// Tools fall back to SessionID when the model omits an explicit session.
type TurnContext struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
}

type ToolRequest struct {
	CallID string         `json:"call_id,omitempty"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	CallID string `json:"call_id,omitempty"`
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ActionRequest struct {
	SessionID     string     `json:"session_id"`
	Action        ActionType `json:"action"`
	StartTime     string     `json:"start_time,omitempty"`
	ReservationID string     `json:"reservation_id,omitempty"`
}

type ActionResponse struct {
	Scheduler        any    `json:"scheduler"`
	AssistantMessage string `json:"assistant_message"`
}
