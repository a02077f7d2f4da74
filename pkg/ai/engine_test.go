package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
)

// fakeLLM replays scripted responses in order
type fakeLLM struct {
	responses []*ModelResponse
	err       error
	calls     int
	lastTools []Tool
	lastMsgs  []Message
}

func (f *fakeLLM) CreateMessage(ctx context.Context, system string, messages []Message, tools []Tool, maxTokens int) (*ModelResponse, error) {
	f.calls++
	f.lastTools = tools
	f.lastMsgs = messages
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

type fakeTools struct {
	results map[string]string
	err     error
	calls   []string
}

func (f *fakeTools) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", f.err
	}
	return f.results[name], nil
}

func textResponse(text string) *ModelResponse {
	return &ModelResponse{
		Content:    []ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
	}
}

func toolUseResponse(preText, id, name string, input string) *ModelResponse {
	blocks := []ContentBlock{}
	if preText != "" {
		blocks = append(blocks, ContentBlock{Type: "text", Text: preText})
	}
	blocks = append(blocks, ContentBlock{
		Type: "tool_use", ID: id, Name: name, Input: json.RawMessage(input),
	})
	return &ModelResponse{Content: blocks, StopReason: "tool_use"}
}

func TestRespondPlainAnswer(t *testing.T) {
	llm := &fakeLLM{responses: []*ModelResponse{textResponse("Tenemos gomitas desde $350.")}}
	e := NewEngine(llm, &fakeTools{}, nil, 3, 300, zap.NewNop())

	reply, err := e.Respond(context.Background(), "hola quiero gomitas", nil, CustomerContext{})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "Tenemos gomitas desde $350." {
		t.Errorf("reply = %q", reply)
	}
	if llm.calls != 1 {
		t.Errorf("model calls = %d, want 1", llm.calls)
	}
}

func TestRespondRunsToolThenAnswers(t *testing.T) {
	llm := &fakeLLM{responses: []*ModelResponse{
		toolUseResponse("Déjame buscar.", "tu_1", "search_products", `{"query":"gomitas"}`),
		textResponse("Encontré las Gomitas Relax de 30 piezas en $350."),
	}}
	tools := &fakeTools{results: map[string]string{
		"search_products": `{"success":true,"products":[{"name":"Gomitas Relax","price":350}]}`,
	}}
	e := NewEngine(llm, tools, nil, 3, 300, zap.NewNop())

	reply, err := e.Respond(context.Background(), "¿qué gomitas tienen?", nil, CustomerContext{Identified: true, Name: "Ana"})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if !strings.Contains(reply, "Gomitas Relax") {
		t.Errorf("reply missing product name: %q", reply)
	}
	// Pre-tool text is kept and concatenated with the final answer
	if !strings.HasPrefix(reply, "Déjame buscar.") {
		t.Errorf("pre-tool text dropped: %q", reply)
	}
	if len(tools.calls) != 1 || tools.calls[0] != "search_products" {
		t.Errorf("tool calls = %v", tools.calls)
	}

	// tool_result must be wired back to the tool_use id
	foundResult := false
	for _, msg := range llm.lastMsgs {
		for _, block := range msg.Content {
			if block.Type == "tool_result" && block.ToolUseID == "tu_1" {
				foundResult = true
			}
		}
	}
	if !foundResult {
		t.Error("tool_result for tu_1 not sent back to model")
	}
}

func TestRespondBoundsToolLoop(t *testing.T) {
	// Model asks for a tool on every response, forever
	loop := toolUseResponse("", "tu_x", "search_products", `{}`)
	llm := &fakeLLM{responses: []*ModelResponse{loop}}
	tools := &fakeTools{results: map[string]string{"search_products": `{"success":true}`}}
	e := NewEngine(llm, tools, nil, 3, 300, zap.NewNop())

	reply, err := e.Respond(context.Background(), "hola", nil, CustomerContext{})
	if llm.calls != 3 {
		t.Errorf("model calls = %d, want exactly the iteration cap (3)", llm.calls)
	}
	// No text was ever produced, so the caller hears the apology
	if reply != ApologyReply {
		t.Errorf("reply = %q, want apology", reply)
	}
	if err == nil {
		t.Error("expected error marker when the loop produced no text")
	}
}

func TestRespondModelFailure(t *testing.T) {
	llm := &fakeLLM{err: errors.New("api down")}
	e := NewEngine(llm, &fakeTools{}, nil, 3, 300, zap.NewNop())

	reply, err := e.Respond(context.Background(), "hola", nil, CustomerContext{})
	if reply != ApologyReply {
		t.Errorf("reply = %q, want apology", reply)
	}
	if err == nil {
		t.Error("expected error marker on model failure")
	}
}

func TestRespondToolFailure(t *testing.T) {
	llm := &fakeLLM{responses: []*ModelResponse{
		toolUseResponse("", "tu_1", "lookup_order", `{"order_number":"EUM-1001"}`),
	}}
	tools := &fakeTools{err: errors.New("mongo timeout")}
	e := NewEngine(llm, tools, nil, 3, 300, zap.NewNop())

	reply, err := e.Respond(context.Background(), "¿dónde está mi pedido?", nil, CustomerContext{})
	if reply != ApologyReply {
		t.Errorf("reply = %q, want apology", reply)
	}
	if err == nil || !strings.Contains(err.Error(), "lookup_order") {
		t.Errorf("err = %v, want tool name in error marker", err)
	}
}

func TestRespondTrimsHistoryWindow(t *testing.T) {
	llm := &fakeLLM{responses: []*ModelResponse{textResponse("ok")}}
	e := NewEngine(llm, &fakeTools{}, nil, 3, 300, zap.NewNop())

	history := make([]Message, 0, 14)
	for i := 0; i < 14; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, TextMessage(role, fmt.Sprintf("mensaje %d", i)))
	}

	if _, err := e.Respond(context.Background(), "hola", history, CustomerContext{}); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	// 10 history messages + the current turn
	if len(llm.lastMsgs) != HistoryWindow+1 {
		t.Errorf("messages sent = %d, want %d", len(llm.lastMsgs), HistoryWindow+1)
	}
	first := llm.lastMsgs[0].Content[0].Text
	if first != "mensaje 4" {
		t.Errorf("history window starts at %q, want %q", first, "mensaje 4")
	}
}

func TestBuildSystemPromptUnidentified(t *testing.T) {
	prompt := BuildSystemPrompt(CustomerContext{})
	if !strings.Contains(prompt, "no identificado") {
		t.Error("unidentified caller note missing from system prompt")
	}

	identified := BuildSystemPrompt(CustomerContext{Identified: true, Name: "Ana López", Tier: "VIP", Tags: []string{"mayorista"}})
	for _, want := range []string{"Ana López", "VIP", "mayorista"} {
		if !strings.Contains(identified, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestGreetingFor(t *testing.T) {
	if got := GreetingFor("Ana"); !strings.Contains(got, "Ana") || !strings.Contains(got, "Extractos EUM") {
		t.Errorf("personalized greeting = %q", got)
	}
	if got := GreetingFor(""); !strings.Contains(got, "¿Con quién tengo el gusto?") {
		t.Errorf("generic greeting = %q", got)
	}
}

func TestClassifyMood(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"estoy muy molesto con mi pedido", "enojado"},
		{"lo necesito urgente para hoy", "urgente"},
		{"me preocupa la dosis", "preocupado"},
		{"gracias, quedó perfecto", "satisfecho"},
		{"quiero gomitas", ""},
	}

	for _, tt := range tests {
		if got := ClassifyMood(tt.text); got != tt.want {
			t.Errorf("ClassifyMood(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
