package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ApologyReply is the fixed line used whenever the engine cannot
// produce a real answer. It is also the canned text for the degraded
// synthesis path.
const ApologyReply = "Disculpa, tuve un problema técnico. ¿Podrías repetir tu pregunta?"

// HistoryWindow caps how much conversation history goes to the model
const HistoryWindow = 10

// ToolExecutor runs one tool request from the model. The returned
// string is the tool_result payload (JSON or plain text). A non-nil
// error means the tool infrastructure itself failed; business-level
// failures ("order not found") belong inside the payload.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input json.RawMessage) (string, error)
}

// Tool-loop states. The loop is a small state machine so the iteration
// cap and termination conditions are explicit rather than implied by
// loop shape.
type loopState int

const (
	stateAwaitingModel loopState = iota
	stateAwaitingTools
	stateDone
)

// Engine runs one tool-augmented model exchange per caller turn
type Engine struct {
	llm           LLM
	tools         ToolExecutor
	catalog       []Tool
	maxIterations int
	maxTokens     int
	logger        *zap.Logger
}

// NewEngine creates a dialogue engine. maxIterations bounds how many
// model round-trips one turn may take; the zero value gets the default.
func NewEngine(llm LLM, tools ToolExecutor, catalog []Tool, maxIterations, maxTokens int, logger *zap.Logger) *Engine {
	if maxIterations <= 0 {
		maxIterations = 3
	}
	if maxTokens <= 0 {
		maxTokens = 300
	}
	return &Engine{
		llm:           llm,
		tools:         tools,
		catalog:       catalog,
		maxIterations: maxIterations,
		maxTokens:     maxTokens,
		logger:        logger,
	}
}

// Respond produces the assistant reply for one caller turn. The reply
// is always speakable: on any model or tool failure it is the fixed
// apology and the error reports what went wrong, so the caller can mark
// the turn as failed while still playing audio.
func (e *Engine) Respond(ctx context.Context, turnText string, history []Message, cust CustomerContext) (string, error) {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	system := BuildSystemPrompt(cust)
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, TextMessage("user", turnText))

	var replyParts []string
	state := stateAwaitingModel

	for iteration := 0; state != stateDone; iteration++ {
		if iteration >= e.maxIterations {
			e.logger.Warn("Tool loop iteration cap reached",
				zap.Int("max_iterations", e.maxIterations),
			)
			break
		}

		resp, err := e.llm.CreateMessage(ctx, system, messages, e.catalog, e.maxTokens)
		if err != nil {
			e.logger.Error("Model call failed", zap.Error(err))
			return ApologyReply, fmt.Errorf("model call: %w", err)
		}

		var toolUses []ContentBlock
		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				if t := strings.TrimSpace(block.Text); t != "" {
					replyParts = append(replyParts, t)
				}
			case "tool_use":
				toolUses = append(toolUses, block)
			}
		}

		if resp.StopReason != "tool_use" || len(toolUses) == 0 {
			state = stateDone
			break
		}

		state = stateAwaitingTools
		messages = append(messages, Message{Role: "assistant", Content: resp.Content})

		results := make([]ContentBlock, 0, len(toolUses))
		for _, tu := range toolUses {
			out, err := e.tools.Execute(ctx, tu.Name, tu.Input)
			if err != nil {
				e.logger.Error("Tool execution failed",
					zap.String("tool", tu.Name),
					zap.Error(err),
				)
				return ApologyReply, fmt.Errorf("tool %s: %w", tu.Name, err)
			}
			results = append(results, ContentBlock{
				Type:      "tool_result",
				ToolUseID: tu.ID,
				Content:   out,
			})
		}

		messages = append(messages, Message{Role: "user", Content: results})
		state = stateAwaitingModel
	}

	reply := strings.TrimSpace(strings.Join(replyParts, " "))
	if reply == "" {
		return ApologyReply, fmt.Errorf("model produced no speakable text")
	}

	return reply, nil
}
