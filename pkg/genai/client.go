// Package genai calls an OpenAI-compatible chat completion endpoint to generate
// short texts (titles, descriptions) from a prompt.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrEmptyCompletion is returned when the endpoint answers without usable text.
var ErrEmptyCompletion = errors.New("empty completion")

// Config holds endpoint settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client generates text through chat completions.
type Client struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewClient creates a text generation client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger,
	}
}

// Generate sends prompt as a single user message and returns the first choice's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	c.logger.Debug("completion generated", zap.String("model", c.model), zap.Int("prompt_len", len(prompt)), zap.Int("text_len", len(text)))
	return text, nil
}
