package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/criteria"
	"github.com/spigell/rfp-evaluator/internal/proposals"
	"github.com/spigell/rfp-evaluator/internal/rfp"
	"github.com/spigell/rfp-evaluator/internal/scoring"
)

// routingGenerator answers by the kind of prompt it receives.
type routingGenerator struct {
	mu     sync.Mutex
	calls  map[string]int
	scores map[string]string
}

func (g *routingGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = map[string]int{}
	}

	switch {
	case strings.Contains(prompt, "كراسة الشروط التالية إلى كائن"):
		g.calls["summary"]++
		return `{"project_scope": "صيانة", "evaluation_criteria_details": {"technical_pass_mark": 70, "technical_criteria": [{"name": "الخبرة", "weight": 50}, {"name": "الفريق", "weight": 50}]}}`, nil
	case strings.Contains(prompt, "استخرج من هذا الجزء"):
		g.calls["criteria"]++
		return `{"technical": [{"name": "الخبرة", "weight": 60, "unit": "percent"}, {"name": "الفريق", "weight": 40, "unit": "percent"}]}`, nil
	default:
		g.calls["score"]++
		for marker, response := range g.scores {
			if strings.Contains(prompt, marker) {
				return response, nil
			}
		}
		return "not json", nil
	}
}

func (g *routingGenerator) Model() string { return "stub-model" }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newPipeline(t *testing.T, gen *routingGenerator, logPath string) *Pipeline {
	t.Helper()

	var opts []scoring.Option
	if logPath != "" {
		opts = append(opts, scoring.WithRecorder(scoring.NewComparisonLog(logPath)))
	}

	p, err := New(Deps{
		Proposals:  proposals.NewLoader(nil, zap.NewNop()),
		Summarizer: rfp.NewSummarizer(gen, 0, zap.NewNop()),
		Criteria:   criteria.NewExtractor(gen, criteria.ExtractorOptions{}, zap.NewNop()),
		Scorer:     scoring.NewScorer(gen, zap.NewNop(), opts...),
		Logger:     zap.NewNop(),
	})
	require.NoError(t, err)
	return p
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	rfpPath := filepath.Join(dir, "rfp.txt")
	writeFile(t, rfpPath, "كراسة الشروط\nالمعايير الفنية\nالخبرة 60%\nالفريق 40%")
	writeFile(t, filepath.Join(dir, "proposals", "alpha.txt"), "ALPHA عرض قوي")
	writeFile(t, filepath.Join(dir, "proposals", "beta.txt"), "BETA عرض ضعيف")
	writeFile(t, filepath.Join(dir, "proposals", "gamma.txt"), "GAMMA عرض غير مفهوم")
	writeFile(t, filepath.Join(dir, "proposals", "empty.txt"), "   ")

	gen := &routingGenerator{scores: map[string]string{
		"ALPHA": `{"scores": {"الخبرة": 90, "الفريق": 80}, "overall_comment": "سعر منخفض"}`,
		"BETA":  `{"scores": {"الخبرة": 50, "الفريق": 60}, "overall_comment": "سعر مرتفع"}`,
	}}
	logPath := filepath.Join(dir, "comparison.json")

	result, err := newPipeline(t, gen, logPath).Run(context.Background(), Input{
		RFPPath:      rfpPath,
		ProposalsDir: filepath.Join(dir, "proposals"),
	}, Options{Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, "صيانة", result.Summary.ProjectScope)
	assert.Equal(t, criteria.SourceExtracted, result.Criteria.Source)
	assert.Equal(t, []string{"الخبرة", "الفريق"}, result.Criteria.Set.Names())
	assert.Equal(t, 70.0, result.Threshold)

	require.Len(t, result.Report.RankedProposals, 4)
	ids := []string{}
	for _, r := range result.Report.RankedProposals {
		ids = append(ids, r.ProposalID)
	}
	assert.Equal(t, []string{"alpha.txt", "beta.txt", "empty.txt", "gamma.txt"}, ids)

	top := result.Report.RankedProposals[0]
	assert.True(t, top.IsQualified)
	assert.Equal(t, 86.0, top.TotalScore)
	assert.Equal(t, "Alpha", top.Name)
	assert.EqualValues(t, "low", top.PriceInfo)
	assert.False(t, result.Report.RankedProposals[1].IsQualified)
	assert.Equal(t, 54.0, result.Report.RankedProposals[1].TotalScore)

	assert.Equal(t, 3, gen.calls["score"])
	assert.Equal(t, 1, gen.calls["summary"])

	stages := []string{}
	for _, s := range result.Stages {
		stages = append(stages, s.Name)
	}
	assert.Equal(t, []string{StageReadRFP, StageSummarize, StageCriteria, StageProposals, StageScore, StageRank}, stages)
	assert.Equal(t, 2, result.Stages[4].Fallbacks)

	entries, err := scoring.NewComparisonLog(logPath).Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRunUsesProvidedSummaryAndPassMark(t *testing.T) {
	dir := t.TempDir()
	rfpPath := filepath.Join(dir, "rfp.txt")
	writeFile(t, rfpPath, "مقدمة فقط")
	writeFile(t, filepath.Join(dir, "proposals", "a.txt"), "A عرض")

	gen := &routingGenerator{scores: map[string]string{
		"A عرض": `{"scores": {"الجودة": 75}, "overall_comment": ""}`,
	}}

	summary := rfp.Empty()
	summary.EvaluationCriteriaDetails.TechnicalPassMark = 80
	summary.EvaluationCriteriaDetails.TechnicalCriteria = []criteria.Weighted{{Name: "الجودة", Weight: 100}}

	result, err := newPipeline(t, gen, "").Run(context.Background(), Input{
		RFPPath:      rfpPath,
		ProposalsDir: filepath.Join(dir, "proposals"),
	}, Options{Summary: summary, UseRFPPassMark: true})
	require.NoError(t, err)

	assert.Zero(t, gen.calls["summary"])
	assert.Zero(t, gen.calls["criteria"])
	assert.Equal(t, criteria.SourceSummary, result.Criteria.Source)
	assert.Equal(t, 80.0, result.Threshold)
	assert.Equal(t, 75.0, result.Report.RankedProposals[0].TotalScore)
	assert.False(t, result.Report.RankedProposals[0].IsQualified)
}

func TestRunFailsOnMissingInputs(t *testing.T) {
	dir := t.TempDir()
	p := newPipeline(t, &routingGenerator{}, "")

	_, err := p.Run(context.Background(), Input{RFPPath: filepath.Join(dir, "missing.txt"), ProposalsDir: dir}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageReadRFP)

	rfpPath := filepath.Join(dir, "rfp.txt")
	writeFile(t, rfpPath, "نص")
	_, err = p.Run(context.Background(), Input{RFPPath: rfpPath, ProposalsDir: filepath.Join(dir, "nope")}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageProposals)
}

func TestRunPDFWithoutExtractor(t *testing.T) {
	dir := t.TempDir()
	rfpPath := filepath.Join(dir, "rfp.pdf")
	writeFile(t, rfpPath, "%PDF")

	_, err := newPipeline(t, &routingGenerator{}, "").Run(context.Background(), Input{RFPPath: rfpPath, ProposalsDir: dir}, Options{})
	require.Error(t, err)
}

type slowScorer struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *slowScorer) Score(_ context.Context, proposal scoring.Proposal, names []string, _ any) scoring.ProposalScore {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return scoring.ProposalScore{ProposalID: proposal.ID, Scores: map[string]float64{names[0]: 100}}
}

func TestScoreAllRespectsConcurrency(t *testing.T) {
	scorer := &slowScorer{}
	p, err := New(Deps{
		Proposals:  proposals.NewLoader(nil, nil),
		Summarizer: rfp.NewSummarizer(&routingGenerator{}, 0, nil),
		Criteria:   criteria.NewExtractor(&routingGenerator{}, criteria.ExtractorOptions{}, nil),
		Scorer:     scorer,
	})
	require.NoError(t, err)

	input := make([]scoring.Proposal, 12)
	for i := range input {
		input[i] = scoring.Proposal{ID: string(rune('a' + i)), Text: "x"}
	}

	scores, err := p.scoreAll(context.Background(), input, []string{"X"}, rfp.Empty(), 3)
	require.NoError(t, err)
	require.Len(t, scores, 12)
	for i, s := range scores {
		assert.Equal(t, input[i].ID, s.ProposalID)
	}
	assert.LessOrEqual(t, scorer.peak.Load(), int32(3))
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	require.Error(t, err)
}

func TestQualificationThreshold(t *testing.T) {
	set := criteria.Set{TechnicalPassMark: 60}
	assert.Equal(t, 70.0, qualificationThreshold(Options{}, set))
	assert.Equal(t, 75.0, qualificationThreshold(Options{QualificationThreshold: 75}, set))
	assert.Equal(t, 60.0, qualificationThreshold(Options{QualificationThreshold: 75, UseRFPPassMark: true}, set))
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(t, &routingGenerator{}, "").Run(ctx, Input{}, Options{})
	require.True(t, errors.Is(err, context.Canceled))
}
