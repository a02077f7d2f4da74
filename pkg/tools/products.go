package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/extractoseum/voice-agent/pkg/otel"
)

type searchProductsArgs struct {
	Query    string `json:"query"`
	Category string `json:"category"`
}

func (g *Gateway) searchProducts(ctx context.Context, args json.RawMessage) (Result, error) {
	var in searchProductsArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return Result{Success: false, Error: "argumentos inválidos para search_products"}, nil
	}
	if in.Query == "" {
		return Result{Success: false, Error: "falta el texto de búsqueda"}, nil
	}

	var products []map[string]interface{}
	err := otel.WithDBSpan(ctx, "products", "find", func(ctx context.Context) error {
		q := g.db.NewQuery("products").
			Regex("name", in.Query).
			Eq("active", true).
			Select("name", "category", "presentation", "price", "stock").
			Sort("name", true).
			Limit(5)
		if in.Category != "" {
			q = q.Eq("category", in.Category)
		}

		var findErr error
		products, findErr = q.Find(ctx)
		return findErr
	})
	if err != nil {
		return Result{}, fmt.Errorf("product search: %w", err)
	}

	if len(products) == 0 {
		return Result{
			Success: false,
			Message: fmt.Sprintf("No encontré productos para %q", in.Query),
		}, nil
	}

	return Result{
		Success: true,
		Message: fmt.Sprintf("%d productos encontrados", len(products)),
		Data:    products,
	}, nil
}
