package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
	toolx "github.com/tanpawarit/device-reservation-agent/agent/tool"
)

type turnState int

const (
	stateAwaitingModel turnState = iota
	stateAwaitingTools
	stateDone
)

func (s turnState) String() string {
	switch s {
	case stateAwaitingModel:
		return "awaiting_model"
	case stateAwaitingTools:
		return "awaiting_tools"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("turn_state(%d)", int(s))
	}
}

// runLoop drives one turn over the history already stored for the session.
// The caller holds the session lock.
func (o *Orchestrator) runLoop(ctx context.Context, turn contractx.TurnContext, emit *emitter, streaming bool) (string, error) {
	state := stateAwaitingModel
	var pending *schema.Message
	var reply string
	rounds := 0

	for state != stateDone {
		switch state {
		case stateAwaitingModel:
			history, err := o.store.History(turn.SessionID)
			if err != nil {
				return "", err
			}
			msg, err := o.callModel(ctx, history, emit, streaming)
			if err != nil {
				return "", err
			}
			if len(msg.ToolCalls) == 0 {
				reply = msg.Content
				if err := o.store.Append(turn.SessionID, assistantMessage(msg)); err != nil {
					return "", err
				}
				state = stateDone
				continue
			}
			if rounds >= o.maxToolRounds {
				o.logger.Warn().
					Str("session_id", turn.SessionID).
					Str("turn_id", turn.TurnID).
					Int("max_tool_rounds", o.maxToolRounds).
					Msg("tool round limit reached")
				return "", fmt.Errorf("%w: max=%d", contractx.ErrMaxToolRounds, o.maxToolRounds)
			}
			rounds++
			pending = msg
			state = stateAwaitingTools

		case stateAwaitingTools:
			// committed scheduler effects and their history entries must outlive the caller
			if err := o.runTools(context.WithoutCancel(ctx), turn, pending, emit); err != nil {
				return "", err
			}
			pending = nil
			state = stateAwaitingModel

		default:
			return "", fmt.Errorf("unexpected turn state %s", state)
		}
	}

	emit.notify(notice{kind: noticeTurnEnd})
	return reply, nil
}

func (o *Orchestrator) callModel(ctx context.Context, history []*schema.Message, emit *emitter, streaming bool) (*schema.Message, error) {
	var msg *schema.Message
	if streaming {
		streamed, err := o.streamModel(ctx, history, emit)
		if err != nil {
			return nil, err
		}
		msg = streamed
	} else {
		generated, err := o.model.Generate(ctx, history)
		if err != nil {
			return nil, fmt.Errorf("%w: generate: %v", contractx.ErrModelInvoke, err)
		}
		msg = generated
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
	}

	emit.notify(notice{kind: noticeModelEnd, text: msg.Content})
	return msg, nil
}

func (o *Orchestrator) streamModel(ctx context.Context, history []*schema.Message, emit *emitter) (*schema.Message, error) {
	sr, err := o.model.Stream(ctx, history)
	if err != nil {
		return nil, fmt.Errorf("%w: stream: %v", contractx.ErrModelInvoke, err)
	}
	defer sr.Close()

	chunks := make([]*schema.Message, 0, 32)
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: stream recv: %v", contractx.ErrModelInvoke, err)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		emit.notify(notice{kind: noticeModelChunk, text: chunk.Content})
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: empty model stream", contractx.ErrSchemaViolation)
	}

	msg, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: concat stream: %v", contractx.ErrSchemaViolation, err)
	}
	return msg, nil
}

// runTools executes one round in request order and stores the assistant tool-call
// message together with one tool message per call.
func (o *Orchestrator) runTools(ctx context.Context, turn contractx.TurnContext, msg *schema.Message, emit *emitter) error {
	calls := msg.ToolCalls
	results := make([]contractx.ToolResult, len(calls))
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	positions := make([]int, 0, len(calls))

	for i, call := range calls {
		req, err := toToolRequest(call)
		if err != nil {
			results[i] = contractx.ToolResult{CallID: call.ID, Tool: strings.TrimSpace(call.Function.Name), Error: err.Error()}
			continue
		}
		reqs = append(reqs, req)
		positions = append(positions, i)
	}

	if len(reqs) > 0 {
		out, err := o.tools.Execute(ctx, turn, reqs)
		if err != nil {
			return fmt.Errorf("execute tools: %w", err)
		}
		if len(out) != len(reqs) {
			return fmt.Errorf("%w: tool results=%d requests=%d", contractx.ErrSchemaViolation, len(out), len(reqs))
		}
		for j, res := range out {
			results[positions[j]] = res
		}
	}

	toolMsgs := make([]*schema.Message, 0, len(calls)+1)
	toolMsgs = append(toolMsgs, assistantMessage(msg))
	for i, call := range calls {
		content := toolx.EncodeResult(results[i])
		toolMsgs = append(toolMsgs, schema.ToolMessage(content, call.ID))
		// the name as executed, not as the model spelled it
		name := results[i].Tool
		if name == "" {
			name = strings.TrimSpace(call.Function.Name)
		}
		emit.notify(notice{kind: noticeToolEnd, tool: name, output: content})
	}
	return o.store.Append(turn.SessionID, toolMsgs...)
}
