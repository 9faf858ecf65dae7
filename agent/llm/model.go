package llm

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
	openrouterx "github.com/tanpawarit/device-reservation-agent/pkg/openrouter"
)

// NewChatModel builds the tool-calling model. When VerifyModel is set the model id
// is looked up first; a failed lookup is only logged.
func NewChatModel(ctx context.Context, cfg Config) (einomodel.ToolCallingChatModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	orCfg := cfg.OpenRouter()

	if cfg.VerifyModel {
		if client := openrouterx.NewClient(orCfg); client != nil {
			if err := openrouterx.VerifyModel(ctx, client, orCfg.Model); err != nil {
				log.Warn().Err(err).Str("model", orCfg.Model).Msg("model preflight failed")
			}
		}
	}

	m, err := orCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return m, nil
}
