package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/extractoseum/voice-agent/pkg/otel"
	"github.com/extractoseum/voice-agent/pkg/utils"
)

type lookupOrderArgs struct {
	OrderNumber string `json:"order_number"`
}

func (g *Gateway) lookupOrder(ctx context.Context, args json.RawMessage, call Context) (Result, error) {
	var in lookupOrderArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Result{Success: false, Error: "argumentos inválidos para lookup_order"}, nil
	}

	if in.OrderNumber == "" && call.Phone == "" {
		return Result{Success: false, Error: "necesito un número de pedido o el teléfono del cliente"}, nil
	}

	var order map[string]interface{}
	err := otel.WithDBSpan(ctx, "orders", "findOne", func(ctx context.Context) error {
		q := g.db.NewQuery("orders").
			Select("order_number", "status", "total", "items", "eta", "created_at").
			Sort("created_at", false)

		if in.OrderNumber != "" {
			q = q.Eq("order_number", in.OrderNumber)
		} else {
			// Fall back to the caller's phone: most recent order wins
			q = q.Eq("phone_last10", utils.LastDigits(call.Phone, 10))
		}

		var findErr error
		order, findErr = q.FindOne(ctx)
		return findErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("order lookup: %w", err)
	}

	if order == nil {
		return Result{
			Success: false,
			Message: "No encontré pedidos con esos datos",
		}, nil
	}

	return Result{
		Success: true,
		Message: "Pedido encontrado",
		Data:    order,
	}, nil
}
