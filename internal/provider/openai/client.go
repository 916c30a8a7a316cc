// Package openai adapts the OpenAI Chat Completions streaming API to the
// provider.Provider contract. Unlike Anthropic, OpenAI typically returns a
// tool call's JSON arguments in one or a few deltas rather than token by
// token; the adapter still emits one ToolCallStart per new tool-call index
// and one or more ToolCallArgDelta fragments, per §4.1's "single field"
// vendor case.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"cueso/internal/model"
	"cueso/internal/provider"
)

// StreamClient captures the subset of the go-openai client the adapter uses.
type StreamClient interface {
	CreateChatCompletionStream(ctx context.Context, request openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Options configures the adapter's request defaults.
type Options struct {
	DefaultModel string
	Temperature  float64

	// RequestsPerSecond throttles outbound completion calls client-side.
	// Defaults to 5/s, burst 2.
	RequestsPerSecond float64
}

// Client implements provider.Provider on top of OpenAI Chat Completions.
type Client struct {
	chat         StreamClient
	defaultModel string
	temperature  float64
	limiter      *rate.Limiter
}

// New builds an adapter from a go-openai client.
func New(chat StreamClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai: chat client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("openai: default model is required")
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		chat:         chat,
		defaultModel: modelID,
		temperature:  opts.Temperature,
		limiter:      rate.NewLimiter(rate.Limit(rps), 2),
	}, nil
}

// NewFromAPIKey constructs a client against the real OpenAI API.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	return New(openai.NewClient(apiKey), Options{DefaultModel: defaultModel})
}

// Stream opens an OpenAI Chat Completions stream and adapts it into the
// normalized event sequence.
func (c *Client) Stream(ctx context.Context, req provider.Request) (provider.Stream, error) {
	request, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai: rate limit wait: %w", err)
	}
	raw, err := c.chat.CreateChatCompletionStream(ctx, request)
	if err != nil {
		if isRateLimited(err) {
			return nil, fmt.Errorf("%w: %w", provider.ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai: create chat completion stream: %w", err)
	}
	return newStreamAdapter(ctx, raw), nil
}

func (c *Client) prepareRequest(req provider.Request) (openai.ChatCompletionRequest, error) {
	if len(req.Messages) == 0 {
		return openai.ChatCompletionRequest{}, errors.New("openai: messages are required")
	}
	messages := encodeMessages(req.Messages, req.SystemPrompt)
	tools, err := encodeTools(req.Tools)
	if err != nil {
		return openai.ChatCompletionRequest{}, err
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	temp := req.Temperature
	if temp <= 0 {
		temp = c.temperature
	}
	return openai.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: float32(temp),
		MaxTokens:   req.MaxTokens,
		Tools:       tools,
		Stream:      true,
	}, nil
}

func encodeMessages(msgs []model.Message, systemPrompt string) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs)+1)
	if systemPrompt != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt})
	}
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case model.RoleUser:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		case model.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		case model.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		}
	}
	return out
}

func encodeTools(defs []model.ToolDefinition) ([]openai.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	out := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		params, err := json.Marshal(def.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("openai: marshal tool %s schema: %w", def.Name, err)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  json.RawMessage(params),
			},
		})
	}
	return out, nil
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}
