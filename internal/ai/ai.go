package ai

import (
	"context"
)

// Generator is the single LLM boundary used by the evaluation core:
// a prompt goes in and the textual content of the answer comes out.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Provider names accepted in the configuration.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)
