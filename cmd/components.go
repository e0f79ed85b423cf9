package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/ai/anthropic"
	"github.com/spigell/rfp-evaluator/internal/ai/gemini"
	"github.com/spigell/rfp-evaluator/internal/criteria"
	"github.com/spigell/rfp-evaluator/internal/extraction"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/pipeline"
	"github.com/spigell/rfp-evaluator/internal/proposals"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"github.com/spigell/rfp-evaluator/internal/scoring"
	"github.com/spigell/rfp-evaluator/internal/secrets"
)

// components are the collaborators shared by the commands.
type components struct {
	generator     ai.Generator
	documents     pipeline.TextExtractor
	summarizer    *rfp.Summarizer
	extractor     *criteria.Extractor
	comparisonLog *scoring.ComparisonLog
	scorer        *scoring.Scorer
}

func newComponents(ctx context.Context, config *Config, logger *zap.Logger) (*components, error) {
	if config == nil || config.AI == nil || config.Evaluation == nil {
		return nil, errors.New("ai and evaluation sections are required")
	}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		return nil, fmt.Errorf("building ai generator: %w", err)
	}

	c := &components{generator: generator}

	if config.Extraction != nil && strings.TrimSpace(config.Extraction.URL) != "" {
		c.documents = extraction.New(config.Extraction.URL, config.Extraction.Timeout, logger.Named("extraction"))
	} else {
		logger.Warn("extraction service is not configured, only .txt documents can be read",
			zap.String("hint", "set extraction.url in the configuration file"),
		)
	}

	aiLogger := withGeneratorFields(logger, config.AI, generator)
	maxLogLength := 0
	if config.AI.Gemini != nil {
		maxLogLength = config.AI.Gemini.MaxLogLength
	}

	c.summarizer = rfp.NewSummarizer(generator, config.AI.Timeout, aiLogger.Named("summarizer"))

	c.extractor = criteria.NewExtractor(generator, criteria.ExtractorOptions{
		FocusRadius:  config.Evaluation.FocusRadius,
		MaxTokens:    config.Evaluation.ChunkMaxTokens,
		Concurrency:  config.Evaluation.Concurrency,
		CallTimeout:  config.AI.Timeout,
		MaxLogLength: maxLogLength,
	}, aiLogger.Named("criteria"))

	opts := []scoring.Option{
		scoring.WithCallTimeout(config.AI.Timeout),
		scoring.WithMaxLogLength(maxLogLength),
	}
	if path := strings.TrimSpace(config.Evaluation.ComparisonLog); path != "" {
		c.comparisonLog = scoring.NewComparisonLog(path)
		opts = append(opts, scoring.WithRecorder(c.comparisonLog))
	}
	c.scorer = scoring.NewScorer(generator, aiLogger.Named("scorer"), opts...)

	return c, nil
}

func (c *components) pipeline(logger *zap.Logger) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Deps{
		Documents:  c.documents,
		Proposals:  proposals.NewLoader(c.documents, logger.Named("proposals")),
		Summarizer: c.summarizer,
		Criteria:   c.extractor,
		Scorer:     c.scorer,
		Logger:     logger.Named("pipeline"),
	})
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))

	switch provider {
	case "", ai.ProviderGemini:
		if cfg.Gemini == nil {
			return nil, errors.New("ai.gemini section is required for the gemini provider")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name: "gemini api key",
			File: cfg.Gemini.APIKeyFile,
			Env:  "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}

		genLogger := logger.With(
			zap.String("provider", ai.ProviderGemini),
			zap.String("model", cfg.Gemini.Model),
			zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
		)

		return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	case ai.ProviderAnthropic:
		if cfg.Anthropic == nil {
			return nil, errors.New("ai.anthropic section is required for the anthropic provider")
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name: "anthropic api key",
			File: cfg.Anthropic.APIKeyFile,
			Env:  "ANTHROPIC_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.anthropic.api-key-file or ANTHROPIC_API_KEY_FILE)", err)
		}

		return anthropic.NewGenerator(apiKey, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}

func withGeneratorFields(log *zap.Logger, cfg *AIConfig, generator ai.Generator) *zap.Logger {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		provider = ai.ProviderGemini
	}
	return logger.WithCommonFields(log, provider, generator.Model())
}
