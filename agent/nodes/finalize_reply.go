package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

func FinalizeReply(in *ActionState) (contractx.ActionResponse, error) {
	if in == nil {
		return contractx.ActionResponse{}, fmt.Errorf("%w: action state is nil", contractx.ErrValidation)
	}
	return contractx.ActionResponse{
		Scheduler:        in.Result,
		AssistantMessage: strings.TrimSpace(in.Reply),
	}, nil
}
