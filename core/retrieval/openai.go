package retrieval

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/legalrag/model"
	"golang.org/x/time/rate"
)

const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 1024
)

// OpenAIGenerator generates answers with an OpenAI compatible chat
// completions endpoint. Requests are throttled to a fixed rate.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	limiter     *rate.Limiter
	Temperature float32
	MaxTokens   int
}

// NewOpenAIGenerator creates a generator for chatModel. baseURL may be empty
// for the public API. rps limits the requests per second.
func NewOpenAIGenerator(apiKey string, baseURL string, chatModel string, rps float64) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", model.ErrServiceUnavailable)
	}
	if chatModel == "" {
		return nil, fmt.Errorf("%w: chat model is empty", model.ErrInvalidSettings)
	}
	if rps <= 0 {
		return nil, fmt.Errorf("%w: requests per second must be positive, got %v", model.ErrInvalidSettings, rps)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(config),
		model:       chatModel,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	system, user := BuildPrompt(req)
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: g.Temperature,
		MaxTokens:   g.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", g.model)
	}

	return resp.Choices[0].Message.Content, nil
}
