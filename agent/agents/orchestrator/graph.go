package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/tanpawarit/device-reservation-agent/agent/contract"
	nodex "github.com/tanpawarit/device-reservation-agent/agent/nodes"
)

func (o *Orchestrator) compileApplyActionGraph(
	ctx context.Context,
) (compose.Runnable[contractx.ActionRequest, contractx.ActionResponse], error) {
	graph := compose.NewGraph[contractx.ActionRequest, contractx.ActionResponse]()

	if err := graph.AddLambdaNode("validate_action",
		compose.InvokableLambda(func(ctx context.Context, in contractx.ActionRequest) (*nodex.ActionState, error) {
			return nodex.ValidateAction(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_action: %w", err)
	}

	if err := graph.AddLambdaNode("apply_action",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.ActionState) (*nodex.ActionState, error) {
			return nodex.ApplyAction(in, o.scheduler, o.parser.Parse)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node apply_action: %w", err)
	}

	if err := graph.AddLambdaNode("compose_messages",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.ActionState) (*nodex.ActionState, error) {
			return nodex.ComposeActionMessages(in, o.prompts)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node compose_messages: %w", err)
	}

	if err := graph.AddLambdaNode("run_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.ActionState) (*nodex.ActionState, error) {
			return nodex.RunActionTurn(ctx, in, o.runActionTurn)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_turn: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.ActionState) (contractx.ActionResponse, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_action"},
		{"validate_action", "apply_action"},
		{"apply_action", "compose_messages"},
		{"compose_messages", "run_turn"},
		{"run_turn", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.apply_action"))
	if err != nil {
		return nil, fmt.Errorf("compile apply action graph: %w", err)
	}
	return runner, nil
}
