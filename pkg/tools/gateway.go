package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/audit"
	"github.com/extractoseum/voice-agent/pkg/client"
	"github.com/extractoseum/voice-agent/pkg/metrics"
	"github.com/extractoseum/voice-agent/pkg/mongo"
)

// Context identifies the call a tool runs on behalf of
type Context struct {
	CallSID    string
	CustomerID string
	Phone      string
}

// Result is the uniform tool outcome handed back to the model
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Gateway dispatches model tool requests to their implementations.
// Business failures ("order not found") come back as unsuccessful
// Results for the model to phrase; only infrastructure failures return
// an error.
type Gateway struct {
	db          *mongo.Client
	messaging   *client.HTTPClient
	whatsappURL string
	logger      *zap.Logger
}

func NewGateway(db *mongo.Client, whatsappURL string, logger *zap.Logger) *Gateway {
	return &Gateway{
		db:          db,
		messaging:   client.NewHTTPClient("whatsapp", 10*time.Second),
		whatsappURL: whatsappURL,
		logger:      logger,
	}
}

// Execute runs one named tool. Every invocation lands in the call's
// audit trail regardless of outcome.
func (g *Gateway) Execute(ctx context.Context, name string, args json.RawMessage, call Context) (Result, error) {
	var result Result
	var err error

	switch name {
	case "search_products":
		result, err = g.searchProducts(ctx, args)
	case "lookup_order":
		result, err = g.lookupOrder(ctx, args, call)
	case "get_coa":
		result, err = g.getCOA(ctx, args)
	case "send_whatsapp":
		result, err = g.sendWhatsApp(ctx, args, call)
	case "escalate_to_human":
		result, err = g.escalate(ctx, args, call)
	default:
		// Unknown tool is a model mistake, not an outage: tell the model
		result = Result{Success: false, Error: fmt.Sprintf("herramienta desconocida: %s", name)}
	}

	metrics.RecordToolInvocation(name, err == nil && result.Success)

	auditMeta := map[string]interface{}{
		"args":    string(args),
		"success": err == nil && result.Success,
	}
	if err != nil {
		auditMeta["error"] = err.Error()
	} else if result.Error != "" {
		auditMeta["error"] = result.Error
	}
	// Best effort; a broken audit write must not break the turn
	_ = audit.Log(g.db, call.CallSID, audit.ActionToolInvoke, name, auditMeta)

	if err != nil {
		g.logger.Error("Tool infrastructure failure",
			zap.String("tool", name),
			zap.String("call_sid", call.CallSID),
			zap.Error(err),
		)
		return result, err
	}

	return result, nil
}

// Bind fixes the call context so the dialogue engine can execute tools
// without knowing which call it serves.
func (g *Gateway) Bind(call Context) *Bound {
	return &Bound{gw: g, call: call}
}

// Bound adapts the gateway to the dialogue engine's executor boundary
type Bound struct {
	gw   *Gateway
	call Context
}

// Execute implements the engine's ToolExecutor: the Result is
// serialized into the tool_result payload.
func (b *Bound) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	result, err := b.gw.Execute(ctx, name, input, b.call)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return string(payload), nil
}
