package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/extractoseum/voice-agent/pkg/otel"
)

type getCOAArgs struct {
	Product string `json:"product"`
	Batch   string `json:"batch"`
}

func (g *Gateway) getCOA(ctx context.Context, args json.RawMessage) (Result, error) {
	var in getCOAArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Result{Success: false, Error: "argumentos inválidos para get_coa"}, nil
	}
	if in.Product == "" && in.Batch == "" {
		return Result{Success: false, Error: "necesito el producto o el número de lote"}, nil
	}

	var doc map[string]interface{}
	err := otel.WithDBSpan(ctx, "coa_documents", "findOne", func(ctx context.Context) error {
		q := g.db.NewQuery("coa_documents").
			Select("product", "batch", "url", "issued_at").
			Sort("issued_at", false)

		if in.Batch != "" {
			q = q.Eq("batch", in.Batch)
		} else {
			q = q.Regex("product", in.Product)
		}

		var findErr error
		doc, findErr = q.FindOne(ctx)
		return findErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("coa lookup: %w", err)
	}

	if doc == nil {
		return Result{
			Success: false,
			Message: "No encontré un COA para esos datos",
		}, nil
	}

	return Result{
		Success: true,
		Message: "COA disponible; ofrécelo por WhatsApp",
		Data:    doc,
	}, nil
}
