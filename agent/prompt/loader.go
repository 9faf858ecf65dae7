package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

var (
	//go:embed template/system.txt
	systemRaw string

	//go:embed template/confirm_action.txt
	confirmActionRaw string

	//go:embed template/cancel_action.txt
	cancelActionRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	System        string
	ConfirmAction string
	CancelAction  string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		System:        strings.TrimSpace(systemRaw),
		ConfirmAction: strings.TrimSpace(confirmActionRaw),
		CancelAction:  strings.TrimSpace(cancelActionRaw),
	}
}

func (p PromptSet) Validate() error {
	if strings.TrimSpace(p.System) == "" {
		return fmt.Errorf("%w: system", contractx.ErrPromptMissing)
	}
	if strings.TrimSpace(p.ConfirmAction) == "" {
		return fmt.Errorf("%w: confirm_action", contractx.ErrPromptMissing)
	}
	if strings.TrimSpace(p.CancelAction) == "" {
		return fmt.Errorf("%w: cancel_action", contractx.ErrPromptMissing)
	}
	return nil
}

// ActionInstruction is the instruction that follows a direct action summary.
func (p PromptSet) ActionInstruction(action contractx.ActionType) (string, error) {
	switch action {
	case contractx.ActionConfirm:
		return p.ConfirmAction, nil
	case contractx.ActionCancel:
		return p.CancelAction, nil
	default:
		return "", fmt.Errorf("%w: unknown action=%s", contractx.ErrValidation, action)
	}
}
