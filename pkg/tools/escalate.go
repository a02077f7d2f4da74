package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/extractoseum/voice-agent/pkg/mongo"
	"github.com/extractoseum/voice-agent/pkg/otel"
)

type escalateArgs struct {
	Reason string `json:"reason"`
}

func (g *Gateway) escalate(ctx context.Context, args json.RawMessage, call Context) (Result, error) {
	var in escalateArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Result{Success: false, Error: "argumentos inválidos para escalate_to_human"}, nil
	}
	if in.Reason == "" {
		return Result{Success: false, Error: "falta el motivo de la escalación"}, nil
	}

	doc := map[string]interface{}{
		"call_sid":    call.CallSID,
		"customer_id": call.CustomerID,
		"phone":       call.Phone,
		"reason":      in.Reason,
		"channel":     "voice",
		"status":      "pending",
	}
	mongo.AddTimestamps(doc)

	err := otel.WithDBSpan(ctx, "escalations", "insert", func(ctx context.Context) error {
		_, insertErr := g.db.NewQuery("escalations").Insert(ctx, doc)
		return insertErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("escalation insert: %w", err)
	}

	return Result{
		Success: true,
		Message: "Escalación registrada; un compañero humano contactará al cliente en breve",
	}, nil
}
