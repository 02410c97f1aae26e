package moonshot

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is the Moonshot OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.moonshot.cn/v1"
	defaultModel   = "moonshot-v1-8k"
	requestTimeout = 30 * time.Second
)

// Client is the Moonshot API client using OpenAI-compatible interface
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new Moonshot client. Empty model and baseURL use the
// defaults.
func NewClient(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Model returns the chat model in use
func (c *Client) Model() string {
	return c.model
}

// Chat sends a message and returns the response
func (c *Client) Chat(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: 0.1, // Low temperature for deterministic responses
		MaxTokens:   10,  // YES/NO only
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}
