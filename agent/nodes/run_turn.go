package orchestratornode

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

// TurnRunner runs one complete non-streaming turn for the given human input.
type TurnRunner func(ctx context.Context, sessionID string, input ...*schema.Message) (string, error)

func RunActionTurn(ctx context.Context, in *ActionState, run TurnRunner) (*ActionState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: action state is nil", contractx.ErrValidation)
	}
	if len(in.Messages) == 0 {
		return nil, fmt.Errorf("%w: action messages are empty", contractx.ErrValidation)
	}

	reply, err := run(ctx, in.SessionID, in.Messages...)
	if err != nil {
		return nil, err
	}
	in.Reply = reply
	return in, nil
}
