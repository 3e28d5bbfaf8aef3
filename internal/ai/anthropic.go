package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type claudeClient struct {
	client *anthropic.Client
	model  string
}

func newClaudeClient(model string) (*claudeClient, error) {
	key, err := apiKeyFromEnv("BROWSERUSE_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}

	client := anthropic.NewClient(option.WithAPIKey(key))

	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}

	return &claudeClient{
		client: &client,
		model:  model,
	}, nil
}

func (c *claudeClient) Name() string { return "claude" }

func (c *claudeClient) Generate(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, anthropic.NewTextBlock(user))
}

func (c *claudeClient) GenerateVision(ctx context.Context, system, user string, screenshotPNG []byte) (string, error) {
	image := anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(screenshotPNG))
	return c.complete(ctx, system, image, anthropic.NewTextBlock(user))
}

func (c *claudeClient) complete(ctx context.Context, system string, blocks ...anthropic.ContentBlockParamUnion) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", fmt.Errorf("Claude API error: %w", err)
	}

	// Extract text content
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("empty response from Claude")
	}

	return sb.String(), nil
}
