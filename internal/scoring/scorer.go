package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/utils"
)

//go:embed prompt.md
var promptTemplate string

const (
	defaultCallTimeout  = 3 * time.Minute
	defaultMaxLogLength = 200
)

// Recorder receives one audit record per scoring call.
type Recorder interface {
	Record(entry ComparisonEntry) error
}

// Scorer scores proposals with a single LLM call each.
type Scorer struct {
	generator   ai.Generator
	recorder    Recorder
	logger      *zap.Logger
	callTimeout time.Duration
	maxLogLen   int
}

// Option customises a Scorer.
type Option func(*Scorer)

// WithRecorder makes the Scorer append every call to recorder.
func WithRecorder(recorder Recorder) Option {
	return func(s *Scorer) { s.recorder = recorder }
}

// WithCallTimeout bounds every LLM call. Non-positive values keep the default.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Scorer) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithMaxLogLength sets how much of prompts and responses is logged.
func WithMaxLogLength(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.maxLogLen = n
		}
	}
}

// NewScorer builds a Scorer over generator.
func NewScorer(generator ai.Generator, log *zap.Logger, opts ...Option) *Scorer {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Scorer{
		generator:   generator,
		logger:      log,
		callTimeout: defaultCallTimeout,
		maxLogLen:   defaultMaxLogLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score evaluates one proposal. It always returns a result: LLM or parse
// failures yield zero scores for every criterion and a fixed comment.
func (s *Scorer) Score(ctx context.Context, proposal Proposal, criteria []string, rfpSummary any) ProposalScore {
	log := logger.WithFields(s.logger, logger.ProposalFields(proposal.ID, proposal.Name)...)

	criteria = cleanCriteria(criteria)
	if len(criteria) == 0 {
		log.Warn("no criteria given, using defaults", zap.Strings("criteria", DefaultCriteria))
		criteria = append([]string(nil), DefaultCriteria...)
	}

	if strings.TrimSpace(proposal.Text) == "" {
		log.Warn("proposal text is empty, skipping llm call")
		return ProposalScore{
			ProposalID:     proposal.ID,
			Name:           proposal.Name,
			Scores:         map[string]float64{},
			OverallComment: CommentEmptyProposal,
			Fallback:       FallbackEmpty,
		}
	}

	summaryJSON, err := json.MarshalIndent(rfpSummary, "", "  ")
	if err != nil {
		log.Error("marshal rfp summary", zap.Error(err))
		return zeroFilled(proposal, criteria, CommentUnknownFailure, FallbackUnknown, "")
	}

	prompt := BuildPrompt(string(summaryJSON), proposal.Text, criteria)

	log.Debug("scoring request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, s.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	raw, err := s.generator.GenerateContent(callCtx, prompt)
	if err != nil {
		log.Error("scoring call failed", zap.Error(err))
		return zeroFilled(proposal, criteria, CommentUnknownFailure, FallbackCall, "")
	}

	log.Debug("scoring response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, s.maxLogLen)),
	)

	s.record(log, ComparisonEntry{
		ProposalID:          proposal.ID,
		CriteriaList:        strings.Join(criteria, ", "),
		RFPSummaryPreview:   utils.Preview(string(summaryJSON), SummaryPreviewLength),
		ProposalTextPreview: utils.Preview(proposal.Text, ProposalPreviewLength),
		LLMResponse:         raw,
	})

	parsed := ai.ParseObject(raw, false)
	if !parsed.OK() {
		log.Error("scoring response is not a json object",
			zap.String("reason", string(parsed.Reason)),
			zap.Error(parsed.Err),
		)
		return zeroFilled(proposal, criteria, CommentParseFailure, FallbackParse, raw)
	}

	scores, err := s.readScores(log, parsed.Data["scores"])
	if err != nil {
		log.Error("scoring response has unusable scores", zap.Error(err))
		return zeroFilled(proposal, criteria, CommentUnknownFailure, FallbackUnknown, raw)
	}

	comment := ai.CoerceString(parsed.Data["overall_comment"])
	if comment == "" {
		comment = CommentMissing
	}

	return ProposalScore{
		ProposalID:     proposal.ID,
		Name:           proposal.Name,
		Scores:         scores,
		OverallComment: comment,
		RawResponse:    raw,
	}
}

// BuildPrompt fills the scoring template.
func BuildPrompt(summaryJSON, proposalText string, criteria []string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "RFP:\n{{RFP_SUMMARY}}\n\nProposal:\n{{PROPOSAL_TEXT}}\n\nCriteria: {{CRITERIA}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{RFP_SUMMARY}}", summaryJSON)
	prompt = strings.ReplaceAll(prompt, "{{CRITERIA}}", strings.Join(criteria, ", "))
	// proposal text goes last so placeholders inside it are left alone
	prompt = strings.ReplaceAll(prompt, "{{PROPOSAL_TEXT}}", proposalText)
	return prompt
}

// readScores keeps the scores the LLM returned, replacing values outside
// [0, 100] with 0. A missing scores field yields no scores; a scores field
// that is not an object, or a value that is not a number, is an error.
func (s *Scorer) readScores(log *zap.Logger, v any) (map[string]float64, error) {
	scores := make(map[string]float64)
	if v == nil {
		return scores, nil
	}

	items, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("scores field is %T, not an object", v)
	}

	for name, value := range items {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		score, ok := value.(float64)
		if !ok {
			return nil, fmt.Errorf("score of %q is %T, not a number", name, value)
		}
		if math.IsNaN(score) || score < 0 || score > 100 {
			log.Warn("score out of range, set to 0",
				zap.String("criterion", name),
				zap.Float64("value", score),
			)
			score = 0
		}
		scores[name] = score
	}

	return scores, nil
}

func (s *Scorer) record(log *zap.Logger, entry ComparisonEntry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(entry); err != nil {
		log.Error("writing comparison log", zap.Error(err))
	}
}

func zeroFilled(proposal Proposal, criteria []string, comment, reason, raw string) ProposalScore {
	scores := make(map[string]float64, len(criteria))
	for _, name := range criteria {
		scores[name] = 0
	}
	return ProposalScore{
		ProposalID:     proposal.ID,
		Name:           proposal.Name,
		Scores:         scores,
		OverallComment: comment,
		RawResponse:    raw,
		Fallback:       reason,
	}
}

func cleanCriteria(criteria []string) []string {
	out := make([]string, 0, len(criteria))
	for _, name := range criteria {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
