package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
	promptx "github.com/tanpawarit/device-reservation-agent/agent/prompt"
	statex "github.com/tanpawarit/device-reservation-agent/agent/state"
	toolx "github.com/tanpawarit/device-reservation-agent/agent/tool"
	logx "github.com/tanpawarit/device-reservation-agent/pkg/logger"
)

const DefaultMaxToolRounds = 10

var ErrInvalidMessage = errors.New("message is empty")

type Config struct {
	MaxToolRounds int
	TimeParser    *toolx.TimeParser
}

type Orchestrator struct {
	store     statex.Store
	model     einomodel.ToolCallingChatModel
	tools     contractx.ToolGateway
	scheduler contractx.ReservationService
	prompts   promptx.PromptSet

	actionRunner compose.Runnable[contractx.ActionRequest, contractx.ActionResponse]

	maxToolRounds int
	parser        toolx.TimeParser
	newTurnID     func() string
	logger        zerolog.Logger
}

func New(
	store statex.Store,
	chatModel einomodel.ToolCallingChatModel,
	tools contractx.ToolGateway,
	scheduler contractx.ReservationService,
	prompts promptx.PromptSet,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("conversation store is required")
	}
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}
	if scheduler == nil {
		return nil, errors.New("reservation service is required")
	}
	if err := prompts.Validate(); err != nil {
		return nil, err
	}

	bound, err := chatModel.WithTools(tools.Infos())
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrModelInvoke, err)
	}

	maxToolRounds := cfg.MaxToolRounds
	if maxToolRounds <= 0 {
		maxToolRounds = DefaultMaxToolRounds
	}
	parser := toolx.DefaultTimeParser()
	if cfg.TimeParser != nil {
		parser = *cfg.TimeParser
	}

	o := &Orchestrator{
		store:         store,
		model:         bound,
		tools:         tools,
		scheduler:     scheduler,
		prompts:       prompts,
		maxToolRounds: maxToolRounds,
		parser:        parser,
		newTurnID:     uuid.NewString,
		logger:        logx.Component("orchestrator"),
	}

	actionRunner, err := o.compileApplyActionGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.actionRunner = actionRunner

	return o, nil
}

// StreamTurn answers one user message, delivering events to sink as they happen.
// The returned error is the turn's outcome; sink failures only stop delivery.
func (o *Orchestrator) StreamTurn(ctx context.Context, sessionID, message string, sink EventSink) error {
	text := strings.TrimSpace(message)
	if text == "" {
		return fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage)
	}
	_, err := o.runTurn(ctx, sessionID, newEmitter(sink, o.logger), true, schema.UserMessage(text))
	return err
}

// HandleMessage answers one user message without streaming.
func (o *Orchestrator) HandleMessage(ctx context.Context, sessionID, message string) (string, error) {
	text := strings.TrimSpace(message)
	if text == "" {
		return "", fmt.Errorf("%w: %w", contractx.ErrValidation, ErrInvalidMessage)
	}
	return o.runTurn(ctx, sessionID, nil, false, schema.UserMessage(text))
}

// ApplyAction books or cancels directly and lets the model phrase the outcome.
func (o *Orchestrator) ApplyAction(ctx context.Context, req contractx.ActionRequest) (contractx.ActionResponse, error) {
	o.logger.Debug().
		Str("session_id", req.SessionID).
		Str("action", string(req.Action)).
		Str("reservation_id", req.ReservationID).
		Str("start_time", req.StartTime).
		Msg("apply action")

	out, err := o.actionRunner.Invoke(ctx, req)
	if err != nil {
		return contractx.ActionResponse{}, err
	}
	return out, nil
}

func (o *Orchestrator) runActionTurn(ctx context.Context, sessionID string, input ...*schema.Message) (string, error) {
	return o.runTurn(ctx, sessionID, nil, false, input...)
}

func (o *Orchestrator) runTurn(
	ctx context.Context,
	sessionID string,
	emit *emitter,
	streaming bool,
	input ...*schema.Message,
) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", fmt.Errorf("%w: %w", contractx.ErrValidation, statex.ErrInvalidSession)
	}

	unlock, err := o.store.Lock(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer unlock()

	turn := contractx.TurnContext{SessionID: sessionID, TurnID: o.newTurnID()}
	started := time.Now()
	o.logger.Debug().
		Str("session_id", turn.SessionID).
		Str("turn_id", turn.TurnID).
		Bool("streaming", streaming).
		Msg("turn start")

	first, err := o.store.EnsureInitialized(sessionID)
	if err != nil {
		return "", err
	}
	msgs := make([]*schema.Message, 0, len(input)+1)
	if first {
		msgs = append(msgs, schema.SystemMessage(o.prompts.System))
	}
	msgs = append(msgs, input...)
	if err := o.store.Append(sessionID, msgs...); err != nil {
		return "", err
	}

	reply, err := o.runLoop(ctx, turn, emit, streaming)
	ev := o.logger.Debug()
	if err != nil {
		ev = o.logger.Error().Err(err)
	}
	ev.Str("session_id", turn.SessionID).
		Str("turn_id", turn.TurnID).
		Dur("latency", time.Since(started)).
		Msg("turn end")
	return reply, err
}
