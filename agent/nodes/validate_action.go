package orchestratornode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

var (
	ErrInvalidSession       = errors.New("session_id is required")
	ErrStartTimeRequired    = errors.New("start_time is required when confirming a reservation")
	ErrReservationIDMissing = errors.New("reservation_id is required when cancelling a reservation")
)

// ActionState flows through the direct-action graph.
type ActionState struct {
	SessionID     string
	Action        contractx.ActionType
	StartTime     string
	ReservationID string

	Start  time.Time
	Result any

	Messages []*schema.Message
	Reply    string
}

func ValidateAction(in contractx.ActionRequest) (*ActionState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidSession)
	}

	action := in.Action
	if !action.Valid() {
		return nil, fmt.Errorf("%w: action must be either 'confirm' or 'cancel'", contractx.ErrValidation)
	}

	st := &ActionState{
		SessionID:     sessionID,
		Action:        action,
		StartTime:     strings.TrimSpace(in.StartTime),
		ReservationID: strings.TrimSpace(in.ReservationID),
	}
	switch action {
	case contractx.ActionConfirm:
		if st.StartTime == "" {
			return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrStartTimeRequired)
		}
	case contractx.ActionCancel:
		if st.ReservationID == "" {
			return nil, fmt.Errorf("%w: %w", contractx.ErrValidation, ErrReservationIDMissing)
		}
	}
	return st, nil
}
