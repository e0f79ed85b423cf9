package rfp

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const defaultCallTimeout = 5 * time.Minute

// Summarizer asks an LLM for a structured RFP summary.
type Summarizer struct {
	generator   ai.Generator
	logger      *zap.Logger
	callTimeout time.Duration
}

// NewSummarizer builds a Summarizer. A non-positive timeout uses the default.
func NewSummarizer(generator ai.Generator, timeout time.Duration, logger *zap.Logger) *Summarizer {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{generator: generator, logger: logger, callTimeout: timeout}
}

// Summarize returns the summary of text. Blank text yields Empty; an LLM or
// parse failure yields Fallback. It never returns nil.
func (s *Summarizer) Summarize(ctx context.Context, text string) *Summary {
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("rfp text is empty, using empty summary")
		return Empty()
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{RFP_TEXT}}", text)

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	s.logger.Debug("rfp summary request", zap.Int("prompt_length", utf8.RuneCountInString(prompt)))

	raw, err := s.generator.GenerateContent(callCtx, prompt)
	if err != nil {
		s.logger.Warn("rfp summary call failed, using fallback summary", zap.Error(err))
		return Fallback()
	}

	parsed := ai.ParseObject(raw, true)
	if !parsed.OK() {
		s.logger.Warn("rfp summary is not json, using fallback summary",
			zap.String("reason", string(parsed.Reason)),
			zap.Error(parsed.Err),
			zap.String("response_preview", utils.TruncateForLog(raw, 200)),
		)
		return Fallback()
	}

	summary, err := Decode(parsed.Data)
	if err != nil {
		s.logger.Warn("rfp summary has unexpected shape, using fallback summary", zap.Error(err))
		return Fallback()
	}

	s.logger.Info("rfp summarized",
		zap.Int("technical_criteria", len(summary.EvaluationCriteriaDetails.TechnicalCriteria)),
		zap.Float64("pass_mark", summary.EvaluationCriteriaDetails.TechnicalPassMark),
	)
	return summary
}
