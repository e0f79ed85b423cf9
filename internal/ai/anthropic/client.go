// Package anthropic adapts the Anthropic Messages API to ai.Generator.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel     = anthropic.ModelClaudeSonnet4_20250514
	defaultMaxTokens = 4096
	systemPrompt     = "أنت خبير في المشتريات الحكومية وتقييم العروض. أجب بصيغة JSON صالحة فقط عند طلب ذلك."
)

// Messager is the subset of the Anthropic client used here. Tests inject a fake.
type Messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Generator sends single-turn prompts through the Messages API.
type Generator struct {
	messages  Messager
	model     string
	maxTokens int64
}

// NewGenerator builds a Generator backed by a real Anthropic client.
func NewGenerator(apiKey, model string, maxTokens int64) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newGenerator(&client.Messages, model, maxTokens), nil
}

func newGenerator(messages Messager, model string, maxTokens int64) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = string(defaultModel)
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Generator{messages: messages, model: model, maxTokens: maxTokens}
}

// GenerateContent returns the concatenated text blocks of the reply.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.messages == nil {
		return "", errors.New("anthropic generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	output := strings.TrimSpace(sb.String())
	if output == "" {
		return "", errors.New("anthropic api returned empty response")
	}
	return output, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
