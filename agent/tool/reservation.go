package tool

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

func executeCheckAvailability(
	scheduler contractx.ReservationService,
	parser TimeParser,
	tool string,
	args map[string]any,
) contractx.ToolResult {
	rawStart, err := requiredString(args, "start_time")
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}

	start, err := parser.Parse(rawStart)
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}

	return contractx.ToolResult{
		Tool:   tool,
		Result: scheduler.CheckAvailability(start),
	}
}

func executeUpdateReservation(
	scheduler contractx.ReservationService,
	parser TimeParser,
	turn contractx.TurnContext,
	tool string,
	args map[string]any,
) contractx.ToolResult {
	if _, err := requiredString(args, "action"); err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}
	// matched verbatim: "Confirm" or " cancel" are rejected
	rawAction, _ := args["action"].(string)
	action := contractx.ActionType(rawAction)
	if !action.Valid() {
		return contractx.ToolResult{Tool: tool, Error: "action must be either 'confirm' or 'cancel'"}
	}

	sessionID, err := optionalString(args, "session_id")
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}
	}
	if sessionID == "" {
		sessionID = turn.SessionID
	}
	if sessionID == "" {
		return contractx.ToolResult{Tool: tool, Error: "session_id is required"}
	}

	switch action {
	case contractx.ActionConfirm:
		rawStart, err := optionalString(args, "start_time")
		if err != nil {
			return contractx.ToolResult{Tool: tool, Error: err.Error()}
		}
		if rawStart == "" {
			return contractx.ToolResult{Tool: tool, Error: "start_time is required to confirm a reservation"}
		}
		start, err := parser.Parse(rawStart)
		if err != nil {
			return contractx.ToolResult{Tool: tool, Error: err.Error()}
		}
		return contractx.ToolResult{
			Tool:   tool,
			Result: scheduler.BookReservation(sessionID, start),
		}
	default:
		reservationID, err := optionalString(args, "reservation_id")
		if err != nil {
			return contractx.ToolResult{Tool: tool, Error: err.Error()}
		}
		if reservationID == "" {
			return contractx.ToolResult{Tool: tool, Error: "reservation_id is required to cancel a reservation"}
		}
		return contractx.ToolResult{
			Tool:   tool,
			Result: scheduler.CancelReservation(reservationID, sessionID),
		}
	}
}

func requiredString(args map[string]any, key string) (string, error) {
	value, err := optionalString(args, key)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

// optionalString treats a missing key and JSON null alike.
func optionalString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(value), nil
}
