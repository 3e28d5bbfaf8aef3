package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

type openAIClient struct {
	client *openai.Client
	model  string
}

// newOpenAIClient also serves OpenAI-compatible endpoints such as DeepSeek:
// set BROWSERUSE_OPENAI_BASE_URL to point the client elsewhere.
func newOpenAIClient(model string) (*openAIClient, error) {
	key, err := apiKeyFromEnv("BROWSERUSE_OPENAI_KEY", "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = "gpt-4o"
	}

	c := &openAIClient{model: model}
	if baseURL := os.Getenv("BROWSERUSE_OPENAI_BASE_URL"); baseURL != "" {
		cfg := openai.DefaultConfig(key)
		cfg.BaseURL = baseURL
		c.client = openai.NewClientWithConfig(cfg)
	} else {
		c.client = openai.NewClient(key)
	}
	return c, nil
}

func (c *openAIClient) Name() string { return "openai" }

func (c *openAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})
}

func (c *openAIClient) GenerateVision(ctx context.Context, system, user string, screenshotPNG []byte) (string, error) {
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(screenshotPNG)
	return c.complete(ctx, system, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: user},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
		},
	})
}

func (c *openAIClient) complete(ctx context.Context, system string, user openai.ChatCompletionMessage) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				user,
			},
			MaxTokens: 4096,
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}
