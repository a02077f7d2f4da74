package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/logger"
)

func init() {
	// audit falls back to the global logger when mongo is absent
	logger.Log = zap.NewNop()
}

func testGateway() *Gateway {
	return NewGateway(nil, "", zap.NewNop())
}

func TestExecuteUnknownTool(t *testing.T) {
	g := testGateway()

	result, err := g.Execute(context.Background(), "delete_everything", json.RawMessage(`{}`), Context{CallSID: "CA1"})
	if err != nil {
		t.Fatalf("unknown tool must not be an infrastructure error: %v", err)
	}
	if result.Success {
		t.Error("unknown tool reported success")
	}
	if !strings.Contains(result.Error, "delete_everything") {
		t.Errorf("result.Error = %q, want tool name", result.Error)
	}
}

func TestSendWhatsAppValidation(t *testing.T) {
	g := testGateway()

	tests := []struct {
		name    string
		args    string
		call    Context
		wantErr string
	}{
		{"missing message", `{}`, Context{Phone: "+5215512345678"}, "contenido"},
		{"missing phone", `{"message":"hola"}`, Context{}, "teléfono"},
		{"not configured", `{"message":"hola"}`, Context{Phone: "+5215512345678"}, "configurado"},
		{"bad json", `{`, Context{}, "inválidos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := g.Execute(context.Background(), "send_whatsapp", json.RawMessage(tt.args), tt.call)
			if err != nil {
				t.Fatalf("business validation must not return error: %v", err)
			}
			if result.Success {
				t.Error("invalid request reported success")
			}
			if !strings.Contains(result.Error, tt.wantErr) {
				t.Errorf("result.Error = %q, want substring %q", result.Error, tt.wantErr)
			}
		})
	}
}

func TestSearchProductsValidation(t *testing.T) {
	g := testGateway()

	result, err := g.Execute(context.Background(), "search_products", json.RawMessage(`{"query":""}`), Context{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "búsqueda") {
		t.Errorf("result = %+v", result)
	}
}

func TestLookupOrderRequiresCriteria(t *testing.T) {
	g := testGateway()

	result, err := g.Execute(context.Background(), "lookup_order", json.RawMessage(`{}`), Context{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success || !strings.Contains(result.Error, "pedido") {
		t.Errorf("result = %+v", result)
	}
}

func TestBoundSerializesResult(t *testing.T) {
	g := testGateway()
	bound := g.Bind(Context{CallSID: "CA1", Phone: "+5215512345678"})

	payload, err := bound.Execute(context.Background(), "nope", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if result.Success {
		t.Error("unknown tool serialized as success")
	}
}

func TestCatalogMatchesDispatcher(t *testing.T) {
	known := map[string]bool{
		"search_products":   true,
		"lookup_order":      true,
		"get_coa":           true,
		"send_whatsapp":     true,
		"escalate_to_human": true,
	}

	catalog := Catalog()
	if len(catalog) != len(known) {
		t.Fatalf("catalog has %d tools, want %d", len(catalog), len(known))
	}
	for _, tool := range catalog {
		if !known[tool.Name] {
			t.Errorf("catalog tool %q has no dispatcher case", tool.Name)
		}
		if tool.Description == "" || tool.InputSchema == nil {
			t.Errorf("tool %q missing description or schema", tool.Name)
		}
	}
}
