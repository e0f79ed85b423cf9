package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/rfp-evaluator/internal/pipeline"
	"github.com/spigell/rfp-evaluator/internal/ranking"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func result(top string, score float64) *pipeline.Result {
	return &pipeline.Result{
		RFPPath:      "rfp.pdf",
		ProposalsDir: "proposals",
		Threshold:    70,
		Report: ranking.Report{
			Rationale: ranking.Rationale,
			RankedProposals: []ranking.RankedProposal{
				{ProposalID: top, Name: top, TotalScore: score, IsQualified: score >= 70, Scores: map[string]float64{"X": score}},
				{ProposalID: "other", Name: "other", TotalScore: 10, Scores: map[string]float64{}},
			},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveRun(ctx, result("alpha", 86))
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, 2, saved.Proposals)
	assert.Equal(t, 1, saved.Qualified)
	assert.Equal(t, "alpha", saved.TopProposal)

	got, err := s.GetRun(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, 86.0, got.TopScore)
	assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.Result)
	assert.Equal(t, 86.0, got.Result.Report.RankedProposals[0].Scores["X"])
}

func TestGetRunNotFound(t *testing.T) {
	_, err := openTestStore(t).GetRun(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_, err := s.SaveRun(ctx, result(name, 80))
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].TopProposal)
	assert.Equal(t, "second", runs[1].TopProposal)
	assert.Nil(t, runs[0].Result)
}

func TestSaveRunRequiresResult(t *testing.T) {
	_, err := openTestStore(t).SaveRun(context.Background(), nil)
	require.Error(t, err)
}
