package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
)

const (
	ToolCheckAvailability = "check_device_availability"
	ToolUpdateReservation = "update_reservation_status"
)

type Executor func(ctx context.Context, turn contractx.TurnContext, req contractx.ToolRequest) contractx.ToolResult

var _ contractx.ToolGateway = (*Catalog)(nil)

// Catalog exposes the scheduler to the model as two named tools.
type Catalog struct {
	scheduler contractx.ReservationService
	parser    TimeParser
	logger    zerolog.Logger
	execute   Executor
}

type CatalogOption func(*Catalog)

func WithTimeParser(parser TimeParser) CatalogOption {
	return func(c *Catalog) {
		c.parser = parser
	}
}

func WithCatalogLogger(logger zerolog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

func NewCatalog(scheduler contractx.ReservationService, opts ...CatalogOption) (*Catalog, error) {
	if scheduler == nil {
		return nil, fmt.Errorf("%w: reservation service is required", contractx.ErrValidation)
	}
	c := &Catalog{
		scheduler: scheduler,
		parser:    DefaultTimeParser(),
		logger:    log.Logger.With().Str("component", "tool_catalog").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.execute = NewExecutor(c.scheduler, c.parser)
	return c, nil
}

func (c *Catalog) Infos() []*schema.ToolInfo {
	return Infos()
}

// Execute runs the requests in order. A failing tool yields a ToolResult with Error set;
// the returned error is reserved for a cancelled context before any work started.
func (c *Catalog) Execute(ctx context.Context, turn contractx.TurnContext, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		c.logger.Debug().
			Str("session_id", turn.SessionID).
			Str("turn_id", turn.TurnID).
			Str("tool_name", req.Tool).
			Str("call_id", req.CallID).
			Msg("tool call start")

		out := c.execute(ctx, turn, req)
		out.CallID = req.CallID

		ev := c.logger.Debug()
		if out.Error != "" {
			ev = c.logger.Info().Str("tool_error", out.Error)
		}
		ev.Str("session_id", turn.SessionID).
			Str("turn_id", turn.TurnID).
			Str("tool_name", req.Tool).
			Str("call_id", req.CallID).
			Msg("tool call result")

		results = append(results, out)
	}
	return results, nil
}

func NewExecutor(scheduler contractx.ReservationService, parser TimeParser) Executor {
	fallback := DefaultExecutor()
	return func(ctx context.Context, turn contractx.TurnContext, req contractx.ToolRequest) contractx.ToolResult {
		switch req.Tool {
		case ToolCheckAvailability:
			return executeCheckAvailability(scheduler, parser, req.Tool, req.Args)
		case ToolUpdateReservation:
			return executeUpdateReservation(scheduler, parser, turn, req.Tool, req.Args)
		default:
			return fallback(ctx, turn, req)
		}
	}
}

func DefaultExecutor() Executor {
	return func(_ context.Context, _ contractx.TurnContext, req contractx.ToolRequest) contractx.ToolResult {
		return contractx.ToolResult{
			Tool:  req.Tool,
			Error: fmt.Sprintf("tool=%s is unavailable", req.Tool),
		}
	}
}

// EncodeResult renders a tool result as the content of a tool message.
func EncodeResult(res contractx.ToolResult) string {
	var payload any = res.Result
	if res.Error != "" {
		payload = map[string]string{"error": res.Error}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw, _ = json.Marshal(map[string]string{"error": fmt.Sprintf("encode tool result: %v", err)})
	}
	return string(raw)
}

func Infos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: ToolCheckAvailability,
			Desc: "Check if a device is available at the requested ISO 8601 start_time.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"start_time": {Type: schema.String, Desc: "ISO 8601 start time; without an offset it is the user's local time", Required: true},
			}),
		},
		{
			Name: ToolUpdateReservation,
			Desc: "Confirm or cancel a reservation. action must be either 'confirm' or 'cancel'.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"action":         {Type: schema.String, Desc: "confirm or cancel", Enum: []string{"confirm", "cancel"}, Required: true},
				"start_time":     {Type: schema.String, Desc: "ISO 8601 start time, required to confirm"},
				"reservation_id": {Type: schema.String, Desc: "Reservation id, required to cancel"},
				"session_id":     {Type: schema.String, Desc: "Owning session, defaults to the current conversation"},
			}),
		},
	}
}
