package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/extractoseum/voice-agent/pkg/circuitbreaker"
	"github.com/extractoseum/voice-agent/pkg/metrics"
)

// ContentBlock is one block of an Anthropic message. Text blocks carry
// the reply; tool_use blocks carry tool requests from the model;
// tool_result blocks carry what we send back.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Message is one conversation entry in the messages API format
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// TextMessage builds a plain-text message
func TextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

// Tool describes one entry of the tool catalog sent to the model
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ModelResponse is the parsed result of one messages call
type ModelResponse struct {
	Content    []ContentBlock
	StopReason string
}

// LLM is the model boundary the dialogue engine talks to
type LLM interface {
	CreateMessage(ctx context.Context, system string, messages []Message, tools []Tool, maxTokens int) (*ModelResponse, error)
}

// AnthropicClient implements LLM against the Anthropic messages API
type AnthropicClient struct {
	apiKey  string
	model   string
	timeout time.Duration
	logger  *zap.Logger
	baseURL string
	breaker *circuitbreaker.CircuitBreaker
}

// NewAnthropicClient creates a new Anthropic client
func NewAnthropicClient(apiKey, model string, timeout time.Duration, logger *zap.Logger) *AnthropicClient {
	if apiKey == "" {
		return &AnthropicClient{logger: logger}
	}

	return &AnthropicClient{
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		logger:  logger,
		baseURL: "https://api.anthropic.com/v1",
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

// IsAvailable checks if the client is configured
func (c *AnthropicClient) IsAvailable() bool {
	return c.apiKey != ""
}

// CreateMessage performs one messages call with the given tool catalog
func (c *AnthropicClient) CreateMessage(ctx context.Context, system string, messages []Message, tools []Tool, maxTokens int) (*ModelResponse, error) {
	if !c.IsAvailable() {
		return nil, fmt.Errorf("Anthropic provider not available")
	}

	requestBody := map[string]interface{}{
		"model":      c.model,
		"max_tokens": maxTokens,
		"system":     system,
		"messages":   messages,
	}
	if len(tools) > 0 {
		requestBody["tools"] = tools
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result *ModelResponse
	start := time.Now()
	err = c.breaker.Execute(ctx, func() error {
		httpReq, reqErr := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/messages", bytes.NewBuffer(jsonData))
		if reqErr != nil {
			return fmt.Errorf("failed to create request: %w", reqErr)
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-api-key", c.apiKey)
		httpReq.Header.Set("anthropic-version", "2023-06-01")

		client := &http.Client{Timeout: c.timeout}
		resp, doErr := client.Do(httpReq)
		if doErr != nil {
			return fmt.Errorf("failed to execute request: %w", doErr)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("Anthropic API error: %d - %s", resp.StatusCode, string(body))
		}

		var anthropicResp struct {
			Content    []ContentBlock `json:"content"`
			StopReason string         `json:"stop_reason"`
		}
		if decErr := json.NewDecoder(resp.Body).Decode(&anthropicResp); decErr != nil {
			return fmt.Errorf("failed to decode response: %w", decErr)
		}

		if len(anthropicResp.Content) == 0 {
			return fmt.Errorf("no content in response")
		}

		result = &ModelResponse{
			Content:    anthropicResp.Content,
			StopReason: anthropicResp.StopReason,
		}
		return nil
	})

	metrics.RecordServiceCall("anthropic", err == nil, time.Since(start))
	stats := c.breaker.GetStats()
	metrics.UpdateCircuitBreaker("anthropic", stats["state"].(string), int64(stats["failures"].(int)))

	if err != nil {
		return nil, err
	}
	return result, nil
}
