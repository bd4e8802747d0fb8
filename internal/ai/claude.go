package ai

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/v0xg/pickmode/internal/style"
)

// Claude implements Describer using Anthropic's Claude.
type Claude struct {
	client *anthropic.Client
	model  string
}

// NewClaude creates a Claude describer. Extra options are passed to the
// client.
func NewClaude(apiKey, model string, opts ...option.RequestOption) *Claude {
	client := anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &Claude{client: &client, model: model}
}

// Describe implements Describer.
func (p *Claude) Describe(ctx context.Context, snaps []style.Snapshot, question string) (*Description, error) {
	userPrompt, err := buildUserPrompt(snaps, question)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ai: claude: %w", err)
	}

	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return nil, fmt.Errorf("ai: empty response from Claude")
	}

	d, err := parseDescription(responseText)
	if err != nil {
		return nil, fmt.Errorf("ai: parse Claude response: %w\nResponse: %s", err, responseText)
	}
	return d, nil
}
