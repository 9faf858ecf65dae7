package orchestratornode

import (
	"fmt"
	"time"

	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

// ApplyAction calls the scheduler directly; the request was validated by ValidateAction.
func ApplyAction(
	in *ActionState,
	scheduler contractx.ReservationService,
	parse func(string) (time.Time, error),
) (*ActionState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: action state is nil", contractx.ErrValidation)
	}

	switch in.Action {
	case contractx.ActionConfirm:
		start, err := parse(in.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contractx.ErrValidation, err)
		}
		in.Start = start
		in.Result = scheduler.BookReservation(in.SessionID, start)
	case contractx.ActionCancel:
		in.Result = scheduler.CancelReservation(in.ReservationID, in.SessionID)
	default:
		return nil, fmt.Errorf("%w: unsupported action=%s", contractx.ErrValidation, in.Action)
	}
	return in, nil
}
