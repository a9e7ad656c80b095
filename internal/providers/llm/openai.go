package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/sandevgo/tutorbot/internal/core"
)

// OpenAIClient talks to the completion service through the OpenAI chat
// completions API. Any OpenAI-compatible endpoint works via the BaseURL
// override.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

type OpenAIClientConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

func NewOpenAIClient(cfg OpenAIClientConfig) *OpenAIClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

var _ core.CompletionClient = (*OpenAIClient)(nil)

func (c *OpenAIClient) Complete(ctx context.Context, req core.CompletionRequest) (core.CompletionResult, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toChatMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.ResponseFormat == "json_object" {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return core.CompletionResult{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return core.CompletionResult{}, core.NewPermanentServiceError(0, "completion returned no choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return core.CompletionResult{}, core.NewPermanentServiceError(0, "completion returned empty content")
	}
	return core.CompletionResult{Content: content}, nil
}

func toChatMessages(messages []core.PromptMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return out
}

// mapError translates API failures into the typed service errors the
// queue classifies; transport-level errors pass through untouched so the
// network classifier can see them.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return mapStatus(apiErr.HTTPStatusCode, fmt.Sprintf("completion api: %s", apiErr.Message))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return mapStatus(reqErr.HTTPStatusCode, fmt.Sprintf("completion request: %v", reqErr.Err))
	}
	return err
}

func mapStatus(status int, msg string) error {
	if core.RetryableStatus(status) {
		return core.NewTransientServiceError(status, msg)
	}
	return core.NewPermanentServiceError(status, msg)
}
