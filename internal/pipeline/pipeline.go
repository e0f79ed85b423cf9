// Package pipeline sequences one evaluation run: RFP text, summary,
// criteria, proposal scoring and ranking.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/rfp-evaluator/internal/criteria"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/ranking"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"github.com/spigell/rfp-evaluator/internal/scoring"
	"github.com/spigell/rfp-evaluator/internal/textnorm"
)

const (
	tracerName = "github.com/spigell/rfp-evaluator/internal/pipeline"

	// DefaultConcurrency is the number of proposals scored at the same time.
	DefaultConcurrency = 4
)

// Stage names, in execution order.
const (
	StageReadRFP   = "read_rfp"
	StageSummarize = "summarize"
	StageCriteria  = "criteria"
	StageProposals = "load_proposals"
	StageScore     = "score"
	StageRank      = "rank"
)

// TextExtractor turns a document on disk into plain text.
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// ProposalLoader lists the proposals of a directory.
type ProposalLoader interface {
	Load(ctx context.Context, dir string) ([]scoring.Proposal, error)
}

// Summarizer produces a structured RFP summary. It never fails.
type Summarizer interface {
	Summarize(ctx context.Context, text string) *rfp.Summary
}

// CriteriaExtractor reads the evaluation criteria out of RFP text.
type CriteriaExtractor interface {
	Extract(ctx context.Context, fullText string, summary criteria.SummaryCriteria) (*criteria.Extraction, error)
}

// ProposalScorer scores one proposal. It never fails.
type ProposalScorer interface {
	Score(ctx context.Context, proposal scoring.Proposal, criteria []string, rfpSummary any) scoring.ProposalScore
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Documents  TextExtractor
	Proposals  ProposalLoader
	Summarizer Summarizer
	Criteria   CriteriaExtractor
	Scorer     ProposalScorer
	Logger     *zap.Logger
}

// Options are the per-run settings. They are passed to Run explicitly and
// never read from global state.
type Options struct {
	// Concurrency bounds in-flight scoring calls.
	Concurrency int
	// QualificationThreshold is the weighted score needed to qualify.
	QualificationThreshold float64
	// UseRFPPassMark replaces QualificationThreshold with the pass mark read from the RFP.
	UseRFPPassMark bool
	// Summary skips the summarize stage when set.
	Summary *rfp.Summary
}

// Input names the documents of one run.
type Input struct {
	RFPPath      string
	ProposalsDir string
}

// Stage describes one executed step of a run.
type Stage struct {
	Name      string        `json:"name"`
	Items     int           `json:"items"`
	Fallbacks int           `json:"fallbacks"`
	Took      time.Duration `json:"took"`
}

// Result is everything a run produced.
type Result struct {
	RFPPath      string                  `json:"rfp_path"`
	ProposalsDir string                  `json:"proposals_dir"`
	Summary      *rfp.Summary            `json:"summary"`
	Criteria     *criteria.Extraction    `json:"criteria"`
	Scores       []scoring.ProposalScore `json:"scores"`
	Report       ranking.Report          `json:"report"`
	Threshold    float64                 `json:"threshold"`
	Stages       []Stage                 `json:"stages"`
	StartedAt    time.Time               `json:"started_at"`
	FinishedAt   time.Time               `json:"finished_at"`
}

// Pipeline runs evaluations.
type Pipeline struct {
	deps   Deps
	tracer trace.Tracer
}

// New validates deps and returns a Pipeline.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Proposals == nil:
		return nil, errors.New("proposal loader is required")
	case deps.Summarizer == nil:
		return nil, errors.New("summarizer is required")
	case deps.Criteria == nil:
		return nil, errors.New("criteria extractor is required")
	case deps.Scorer == nil:
		return nil, errors.New("scorer is required")
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Pipeline{deps: deps, tracer: otel.Tracer(tracerName)}, nil
}

// Run evaluates every proposal of in.ProposalsDir against in.RFPPath. LLM
// failures never abort a run; only unreadable inputs and cancellation do.
func (p *Pipeline) Run(ctx context.Context, in Input, opts Options) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("rfp.path", in.RFPPath),
		attribute.String("proposals.dir", in.ProposalsDir),
	))
	defer span.End()

	result, err := p.run(ctx, in, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, in Input, opts Options) (*Result, error) {
	result := &Result{
		RFPPath:      in.RFPPath,
		ProposalsDir: in.ProposalsDir,
		StartedAt:    time.Now().UTC(),
	}

	var text string
	err := p.stage(ctx, result, StageReadRFP, func(ctx context.Context) (Stage, error) {
		var err error
		text, err = p.readRFP(ctx, in.RFPPath)
		return Stage{Items: len([]rune(text))}, err
	})
	if err != nil {
		return nil, err
	}

	if opts.Summary != nil {
		result.Summary = opts.Summary
		p.deps.Logger.Info("using provided rfp summary")
	} else {
		err = p.stage(ctx, result, StageSummarize, func(ctx context.Context) (Stage, error) {
			result.Summary = p.deps.Summarizer.Summarize(ctx, text)
			info := Stage{Items: len(result.Summary.EvaluationCriteriaDetails.TechnicalCriteria)}
			if result.Summary.IsFallback() {
				info.Fallbacks = 1
			}
			return info, nil
		})
		if err != nil {
			return nil, err
		}
	}

	err = p.stage(ctx, result, StageCriteria, func(ctx context.Context) (Stage, error) {
		extraction, err := p.deps.Criteria.Extract(ctx, text, result.Summary.Criteria())
		if err != nil {
			return Stage{}, err
		}
		result.Criteria = extraction
		info := Stage{Items: len(extraction.Technical), Fallbacks: extraction.Dropped}
		return info, nil
	})
	if err != nil {
		return nil, err
	}

	result.Threshold = qualificationThreshold(opts, result.Criteria.Set)

	var proposals []scoring.Proposal
	err = p.stage(ctx, result, StageProposals, func(ctx context.Context) (Stage, error) {
		var err error
		proposals, err = p.deps.Proposals.Load(ctx, in.ProposalsDir)
		return Stage{Items: len(proposals)}, err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, result, StageScore, func(ctx context.Context) (Stage, error) {
		scores, err := p.scoreAll(ctx, proposals, result.Criteria.Set.Names(), result.Summary, opts.Concurrency)
		if err != nil {
			return Stage{}, err
		}
		result.Scores = scores

		info := Stage{Items: len(scores)}
		for _, s := range scores {
			if s.Fallback != "" {
				info.Fallbacks++
			}
		}
		return info, nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, result, StageRank, func(context.Context) (Stage, error) {
		ranker := ranking.New(result.Threshold, p.deps.Logger)
		result.Report = ranker.Rank(result.Scores, result.Criteria.Technical)
		return Stage{Items: len(result.Report.Qualified())}, nil
	})
	if err != nil {
		return nil, err
	}

	result.FinishedAt = time.Now().UTC()
	return result, nil
}

// stage runs fn inside a span and records its accounting on result.
func (p *Pipeline) stage(ctx context.Context, result *Result, name string, fn func(context.Context) (Stage, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	start := time.Now()
	info, err := fn(ctx)
	info.Name = name
	info.Took = time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}

	span.SetAttributes(attribute.Int("items", info.Items), attribute.Int("fallbacks", info.Fallbacks))
	p.deps.Logger.Info("pipeline stage",
		zap.String("name", name),
		zap.Int("items", info.Items),
		zap.Int("fallbacks", info.Fallbacks),
		zap.Duration("took", info.Took),
	)

	result.Stages = append(result.Stages, info)
	return nil
}

// scoreAll scores proposals through a bounded worker pool. Each worker
// writes only its own slot, so the output order matches the input order.
func (p *Pipeline) scoreAll(ctx context.Context, proposals []scoring.Proposal, names []string, summary *rfp.Summary, concurrency int) ([]scoring.ProposalScore, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	scores := make([]scoring.ProposalScore, len(proposals))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, proposal := range proposals {
		g.Go(func() error {
			sctx, span := p.tracer.Start(gctx, "pipeline.score_proposal", trace.WithAttributes(
				attribute.String("proposal.id", proposal.ID),
			))
			defer span.End()

			scores[i] = p.deps.Scorer.Score(sctx, proposal, names, summary)
			if scores[i].Fallback != "" {
				span.SetAttributes(attribute.String("fallback", scores[i].Fallback))
			}

			p.deps.Logger.Debug("proposal scored",
				append(logger.ProposalFields(proposal.ID, proposal.Name),
					zap.Int("criteria", len(scores[i].Scores)),
					zap.String("fallback", scores[i].Fallback),
				)...,
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return scores, nil
}

func (p *Pipeline) readRFP(ctx context.Context, path string) (string, error) {
	return ReadDocument(ctx, p.deps.Documents, path)
}

// ReadDocument returns the normalized text of a .txt file, or of a .pdf
// file through the extraction service.
func ReadDocument(ctx context.Context, documents TextExtractor, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("rfp file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if documents == nil {
			return "", errors.New("pdf rfp requires an extraction service (extraction.url)")
		}
		return documents.ExtractFile(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return textnorm.Normalize(string(data)), nil
}

func qualificationThreshold(opts Options, set criteria.Set) float64 {
	if opts.UseRFPPassMark && set.TechnicalPassMark > 0 {
		return set.TechnicalPassMark
	}
	if opts.QualificationThreshold > 0 {
		return opts.QualificationThreshold
	}
	return ranking.DefaultThreshold
}
