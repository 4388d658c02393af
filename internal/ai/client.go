// internal/ai/client.go

// Package ai talks to an OpenAI-compatible chat completion gateway.
package ai

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	custom_errors "spygit/internal/errors"
)

var ErrNotConfigured = errors.New("AI_API_KEY not configured")

// ErrEmptyResponse is returned when the gateway answers without any choices.
var ErrEmptyResponse = errors.New("AI response contained no choices")

type Client struct {
	api   *openai.Client
	model string
}

// NewClient returns a client for the gateway at baseURL. An empty apiKey yields a client
// whose calls fail with ErrNotConfigured.
func NewClient(baseURL, apiKey, model string) *Client {
	c := &Client{model: model}
	if apiKey == "" {
		return c
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// Complete sends a system and a user message and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if c.api == nil {
		return "", ErrNotConfigured
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", translateError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func translateError(err error) error {
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return err
	}

	switch status {
	case http.StatusTooManyRequests:
		return custom_errors.ErrRateLimited
	case http.StatusPaymentRequired:
		return custom_errors.ErrCreditsExhausted
	default:
		return &custom_errors.AnalysisFailedError{StatusCode: status}
	}
}
