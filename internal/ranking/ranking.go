// Package ranking turns per-proposal scores into a weighted, qualification
// gated ranking.
package ranking

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/criteria"
	"github.com/spigell/rfp-evaluator/internal/logger"
	"github.com/spigell/rfp-evaluator/internal/scoring"
)

const (
	// DefaultThreshold is the weighted score a proposal needs to qualify.
	DefaultThreshold = 70.0

	weightEpsilon = 0.01
)

// Rationale explains the ordering policy to the report reader.
const Rationale = "تم ترتيب جميع العروض مع توضيح المؤهل وغير المؤهل. تم تقديم المؤهّلين أولاً حسب الدرجة الفنية."

// PriceSignal is a coarse reading of what the scorer said about price.
type PriceSignal string

const (
	PriceLow     PriceSignal = "low"
	PriceMedium  PriceSignal = "medium"
	PriceHigh    PriceSignal = "high"
	PriceUnknown PriceSignal = "unknown"
)

// RankedProposal is one row of the final ranking.
type RankedProposal struct {
	ProposalID     string             `json:"proposal_id"`
	Name           string             `json:"name"`
	TotalScore     float64            `json:"total_score"`
	Scores         map[string]float64 `json:"scores"`
	OverallComment string             `json:"overall_comment"`
	IsQualified    bool               `json:"is_qualified"`
	PriceInfo      PriceSignal        `json:"price_info"`
}

// Report is the ranking handed to the presentation layer.
type Report struct {
	RankedProposals []RankedProposal `json:"ranked_proposals"`
	Rationale       string           `json:"rationale"`
}

// Qualified returns the qualified rows in ranking order.
func (r Report) Qualified() []RankedProposal {
	out := make([]RankedProposal, 0, len(r.RankedProposals))
	for _, p := range r.RankedProposals {
		if p.IsQualified {
			out = append(out, p)
		}
	}
	return out
}

// Ranker orders scored proposals.
type Ranker struct {
	// Threshold is the minimum weighted score of a qualified proposal.
	Threshold float64
	logger    *zap.Logger
}

// New returns a Ranker with the given threshold. Non-positive values use DefaultThreshold.
func New(threshold float64, log *zap.Logger) *Ranker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ranker{Threshold: threshold, logger: log}
}

// Rank weights every proposal's scores, marks who qualifies and orders the
// result: qualified first, then by total score descending, then by proposal
// id. Every input proposal appears in the output.
func (r *Ranker) Rank(scores []scoring.ProposalScore, weights []criteria.Weighted) Report {
	if len(weights) == 0 {
		weights = criteria.DefaultWeightedCriteria()
		r.logger.Info("no criteria given for ranking, using defaults", zap.Int("criteria", len(weights)))
	}
	weights = NormalizeWeights(weights)

	ranked := make([]RankedProposal, 0, len(scores))
	for _, s := range scores {
		total := WeightedScore(s.Scores, weights)
		row := RankedProposal{
			ProposalID:     s.ProposalID,
			Name:           s.Name,
			TotalScore:     total,
			Scores:         s.Scores,
			OverallComment: s.OverallComment,
			IsQualified:    total >= r.Threshold,
			PriceInfo:      ExtractPriceSignal(s.OverallComment),
		}
		ranked = append(ranked, row)

		r.logger.Debug("proposal weighted",
			append(logger.ProposalFields(s.ProposalID, s.Name),
				zap.Float64("total_score", total),
				zap.Bool("qualified", row.IsQualified),
			)...,
		)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.IsQualified != b.IsQualified {
			return a.IsQualified
		}
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		return a.ProposalID < b.ProposalID
	})

	return Report{RankedProposals: ranked, Rationale: Rationale}
}

// NormalizeWeights rescales weights to sum to 100 when they are off by more
// than 0.01. A zero total is returned unchanged.
func NormalizeWeights(weights []criteria.Weighted) []criteria.Weighted {
	out := append([]criteria.Weighted(nil), weights...)

	var total float64
	for _, w := range out {
		total += w.Weight
	}

	if total == 0 || math.Abs(total-100) <= weightEpsilon {
		return out
	}

	for i := range out {
		out[i].Weight = out[i].Weight / total * 100
	}
	return out
}

// WeightedScore sums score*weight/100 over criteria that have a score and
// rounds to one decimal. Criteria without a score contribute nothing.
func WeightedScore(scores map[string]float64, weights []criteria.Weighted) float64 {
	var total float64
	for _, w := range weights {
		if score, ok := scores[w.Name]; ok {
			total += score * (w.Weight / 100)
		}
	}
	return math.Round(total*10) / 10
}

var priceKeywords = []struct {
	signal PriceSignal
	words  []string
}{
	{PriceLow, []string{"منخفض", "سعر منخفض", "أقل سعر"}},
	{PriceMedium, []string{"متوسط", "سعر معقول"}},
	{PriceHigh, []string{"مرتفع", "سعر مرتفع"}},
}

// ExtractPriceSignal reads the price level out of a scorer comment.
func ExtractPriceSignal(comment string) PriceSignal {
	lower := strings.ToLower(comment)
	for _, group := range priceKeywords {
		for _, word := range group.words {
			if strings.Contains(lower, word) {
				return group.signal
			}
		}
	}
	return PriceUnknown
}
