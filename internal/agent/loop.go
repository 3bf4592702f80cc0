// Package agent runs the tool-augmented conversation turn: it polls
// the model, executes requested tool calls against the built-in
// registry, feeds results back, and repeats until the model answers
// with text or the iteration budget runs out.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chuanqi87/agent/internal/gateway"
	"github.com/chuanqi87/agent/internal/providers"
	"github.com/chuanqi87/agent/internal/tools"
	"github.com/chuanqi87/agent/internal/upstream"
)

// DefaultMaxIterations bounds the poll/execute cycle so a model that
// keeps requesting tools cannot loop forever.
const DefaultMaxIterations = 3

// iterationLimitReply is returned when the budget is exhausted while
// the model is still asking for tools.
const iterationLimitReply = "Stopped after reaching the tool iteration limit without a final answer."

// Loop drives one tool-augmented turn end to end.
type Loop struct {
	dispatcher    *upstream.Dispatcher
	registry      *tools.Registry
	logger        *slog.Logger
	maxIterations int
}

// NewLoop builds a loop over the given dispatcher and tool registry.
// A zero iteration budget selects the default.
func NewLoop(dispatcher *upstream.Dispatcher, registry *tools.Registry, logger *slog.Logger, maxIterations int) *Loop {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Loop{
		dispatcher:    dispatcher,
		registry:      registry,
		logger:        logger,
		maxIterations: maxIterations,
	}
}

// Run executes the turn and returns the model's final text. The
// canonical request is not mutated; the loop works on its own message
// list. Upstream failures propagate unwrapped so the facade can map
// them to the client envelope.
func (l *Loop) Run(ctx context.Context, cfg providers.Config, req *gateway.CanonicalRequest) (string, error) {
	working := *req
	working.Stream = false
	working.Messages = append([]gateway.Message(nil), req.Messages...)

	if l.registry.Len() > 0 {
		working.Tools = l.registry.Schemas()
		working.ToolChoice = "auto"
	}

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		body, err := l.dispatcher.Do(ctx, cfg, &working)
		if err != nil {
			return "", err
		}

		resp, err := gateway.Assemble(body, gateway.NewCompletionID(), gateway.Now(), working.Model, nil)
		if err != nil {
			return "", err
		}

		message := resp.Choices[0].Message
		if len(message.ToolCalls) == 0 {
			return message.Text(), nil
		}

		working.Messages = append(working.Messages, message)

		for _, call := range message.ToolCalls {
			result := l.executeCall(ctx, call)
			working.Messages = append(working.Messages, gateway.ToolMessage(call.ID, result))
		}
	}

	l.logger.Warn("tool loop hit iteration limit",
		"max_iterations", l.maxIterations,
		"model", working.Model,
	)
	return iterationLimitReply, nil
}

// executeCall runs one tool call. Failures become result text instead
// of aborting the turn, so the model can recover or apologize.
func (l *Loop) executeCall(ctx context.Context, call gateway.ToolCall) string {
	l.logger.Debug("executing tool call",
		"tool", call.Function.Name,
		"call_id", call.ID,
	)

	result, err := l.registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
	if err != nil {
		l.logger.Warn("tool execution failed",
			"tool", call.Function.Name,
			"error", err,
		)
		return fmt.Sprintf("tool error: %v", err)
	}
	return result
}
