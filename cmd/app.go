package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	orchestratorx "github.com/tanpawarit/device-reservation-agent/agent/agents/orchestrator"
	llmx "github.com/tanpawarit/device-reservation-agent/agent/llm"
	promptx "github.com/tanpawarit/device-reservation-agent/agent/prompt"
	schedulerx "github.com/tanpawarit/device-reservation-agent/agent/scheduler"
	statex "github.com/tanpawarit/device-reservation-agent/agent/state"
	toolx "github.com/tanpawarit/device-reservation-agent/agent/tool"
	configx "github.com/tanpawarit/device-reservation-agent/pkg/config"
)

// agentConfig is read with the AGENT prefix.
type agentConfig struct {
	MaxToolRounds int    `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"10"`
	LocalTimezone string `envconfig:"LOCAL_TIMEZONE" split_words:"true"`
}

// errModelDisabled is returned by buildEngine when no API key is configured.
var errModelDisabled = errors.New("model credentials are not configured")

func buildEngine(ctx context.Context) (*orchestratorx.Orchestrator, error) {
	llmCfg, err := configx.New[llmx.Config]("LLM")
	if err != nil {
		return nil, fmt.Errorf("load llm config: %w", err)
	}
	agentCfg, err := configx.New[agentConfig]("AGENT")
	if err != nil {
		return nil, fmt.Errorf("load agent config: %w", err)
	}

	if !llmCfg.Enabled() {
		return nil, errModelDisabled
	}

	parser, err := timeParser(agentCfg.LocalTimezone)
	if err != nil {
		return nil, err
	}

	scheduler := schedulerx.New()
	catalog, err := toolx.NewCatalog(scheduler, toolx.WithTimeParser(parser))
	if err != nil {
		return nil, err
	}

	chatModel, err := llmx.NewChatModel(ctx, *llmCfg)
	if err != nil {
		return nil, err
	}

	orch, err := orchestratorx.New(
		statex.NewMemoryStore(),
		chatModel,
		catalog,
		scheduler,
		promptx.LoadPromptSet(),
		orchestratorx.Config{
			MaxToolRounds: agentCfg.MaxToolRounds,
			TimeParser:    &parser,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	log.Info().
		Str("model", llmCfg.Model).
		Int("max_tool_rounds", agentCfg.MaxToolRounds).
		Str("local_timezone", parser.Location.String()).
		Msg("agent ready")
	return orch, nil
}

// timeParser reads offset-less timestamps in name, or in the process zone when name is empty.
func timeParser(name string) (toolx.TimeParser, error) {
	parser := toolx.DefaultTimeParser()
	name = strings.TrimSpace(name)
	if name == "" {
		return parser, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return toolx.TimeParser{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	parser.Location = loc
	return parser, nil
}
