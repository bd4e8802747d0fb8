package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/v0xg/pickmode/internal/style"
)

// OpenAI implements Describer using OpenAI chat completions.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI describer.
func NewOpenAI(apiKey, model string) *OpenAI {
	return NewOpenAIWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewOpenAIWithConfig creates an OpenAI describer from a client config,
// for proxies and compatible endpoints.
func NewOpenAIWithConfig(cfg openai.ClientConfig, model string) *OpenAI {
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Describe implements Describer.
func (p *OpenAI) Describe(ctx context.Context, snaps []style.Snapshot, question string) (*Description, error) {
	userPrompt, err := buildUserPrompt(snaps, question)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("ai: empty response from OpenAI")
	}

	responseText := resp.Choices[0].Message.Content
	d, err := parseDescription(responseText)
	if err != nil {
		return nil, fmt.Errorf("ai: parse OpenAI response: %w\nResponse: %s", err, responseText)
	}
	return d, nil
}
