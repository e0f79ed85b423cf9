package criteria

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/rfp-evaluator/internal/textnorm"
)

var (
	passMarkNearKeyword = regexp.MustCompile(`(?:اجتياز|تمرير|حد\s*الاجتياز)[^.\n]{0,50}?(\d{1,3})\s*%`)
	passMarkBeforeWord  = regexp.MustCompile(`(\d{1,3})\s*%[^.\n]{0,60}(?:مجتاز|فوق|أعلى|فأعلى)`)
	technicalSeventy    = regexp.MustCompile(`70\s*%[^.\n]{0,20}(?:فني|الفنية)`)
	financialThirty     = regexp.MustCompile(`30\s*%[^.\n]{0,20}(?:مالي|المالية)`)
)

// NormalizeName is the identity key of a criterion.
func NormalizeName(name string) string {
	return textnorm.CollapseSpaces(name)
}

// Merge folds the per-chunk partials into one extraction. Scalars keep the
// first non-null value seen; criteria are merged by normalised name and a
// later record only fills fields the first one left null.
func Merge(partials []RawExtraction) RawExtraction {
	var merged RawExtraction
	technical := newCriterionIndex()
	financial := newCriterionIndex()

	for _, p := range partials {
		if merged.TechnicalPassingScore == nil && p.TechnicalPassingScore != nil {
			merged.TechnicalPassingScore = p.TechnicalPassingScore
		}
		if merged.FinancialRule == nil && p.FinancialRule != nil && strings.TrimSpace(*p.FinancialRule) != "" {
			merged.FinancialRule = p.FinancialRule
		}
		if merged.OverallMix == nil && p.OverallMix != nil {
			merged.OverallMix = p.OverallMix
		}

		for _, c := range p.Technical {
			technical.add(c)
		}
		for _, c := range p.Financial {
			financial.add(c)
		}
	}

	merged.Technical = technical.list()
	merged.Financial = financial.list()
	return merged
}

// Clean drops non-evaluative contract terms and criteria without a usable
// weight or unit, and moves technical criteria with financial-standing names
// into the financial list. Financial criteria are never moved to technical.
func Clean(extracted RawExtraction) RawExtraction {
	out := extracted
	financial := append([]RawCriterion(nil), extracted.Financial...)

	technical := make([]RawCriterion, 0, len(extracted.Technical))
	for _, c := range extracted.Technical {
		if !usable(c) {
			continue
		}
		if IsFinancialName(c.Name) {
			financial = append(financial, c)
			continue
		}
		technical = append(technical, c)
	}

	cleanedFinancial := make([]RawCriterion, 0, len(financial))
	for _, c := range financial {
		if usable(c) {
			cleanedFinancial = append(cleanedFinancial, c)
		}
	}

	out.Technical = technical
	out.Financial = cleanedFinancial
	return out
}

// Dedupe collapses criteria with the same whitespace-normalised name within
// each category, using the same first-wins, fill-nulls rule as Merge.
func Dedupe(extracted RawExtraction) RawExtraction {
	out := extracted
	out.Technical = DedupeCriteria(extracted.Technical)
	out.Financial = DedupeCriteria(extracted.Financial)
	return out
}

// DedupeCriteria is Dedupe for a single list.
func DedupeCriteria(list []RawCriterion) []RawCriterion {
	index := newCriterionIndex()
	for _, c := range list {
		index.add(c)
	}
	return index.list()
}

// FillDefaults completes what the LLM did not report, looking at the full
// RFP text for a pass mark and a 70/30 mix, and assigning the default award
// rule last.
func FillDefaults(extracted RawExtraction, fullText string) RawExtraction {
	out := extracted

	if out.TechnicalPassingScore == nil {
		if score, ok := findPassMark(fullText); ok {
			out.TechnicalPassingScore = &score
		}
	}

	if out.OverallMix == nil && technicalSeventy.MatchString(fullText) && financialThirty.MatchString(fullText) {
		out.OverallMix = &Mix{Technical: 70, Financial: 30}
	}

	if out.FinancialRule == nil || strings.TrimSpace(*out.FinancialRule) == "" {
		rule := DefaultFinancialRule
		out.FinancialRule = &rule
	}

	return out
}

// Reweight scales weights so they sum to target. A zero total is split
// evenly; an empty list becomes the default technical criteria with equal
// shares of target.
func Reweight(list []Criterion, target float64) []Criterion {
	if len(list) == 0 {
		share := target / float64(len(DefaultTechnicalNames))
		out := make([]Criterion, 0, len(DefaultTechnicalNames))
		for _, name := range DefaultTechnicalNames {
			out = append(out, Criterion{Name: name, Weight: share, Unit: UnitPoints, Category: CategoryTechnical})
		}
		return out
	}

	out := append([]Criterion(nil), list...)

	var total float64
	for _, c := range out {
		total += c.Weight
	}

	switch {
	case total == 0:
		share := target / float64(len(out))
		for i := range out {
			out[i].Weight = share
		}
	case total != target:
		factor := target / total
		for i := range out {
			out[i].Weight *= factor
		}
	}

	return out
}

// Finalize converts a cleaned extraction into a Set. Technical weights are
// scaled to the pass mark and financial weights to the financial share of
// the stated mix, or DefaultFinancialShare when the RFP states none. summary is consulted only when no technical criterion survived.
func Finalize(extracted RawExtraction, summary SummaryCriteria) (Set, Source) {
	passMark := DefaultTechnicalPassMark
	switch {
	case extracted.TechnicalPassingScore != nil && *extracted.TechnicalPassingScore > 0:
		passMark = *extracted.TechnicalPassingScore
	case summary.PassMark > 0:
		passMark = summary.PassMark
	}

	var mix *Mix
	if extracted.OverallMix != nil {
		m := *extracted.OverallMix
		mix = &m
	}

	rule := DefaultFinancialRule
	if extracted.FinancialRule != nil {
		rule = *extracted.FinancialRule
	}

	source := SourceExtracted
	technical := toCriteria(extracted.Technical, CategoryTechnical)
	if len(technical) == 0 {
		source = SourceSummary
		for _, w := range summary.Technical {
			name := NormalizeName(w.Name)
			if name == "" {
				continue
			}
			technical = append(technical, Criterion{Name: name, Weight: w.Weight, Unit: UnitPoints, Category: CategoryTechnical})
		}
	}
	if len(technical) == 0 {
		source = SourceDefault
	}

	set := Set{
		TechnicalPassMark: passMark,
		Technical:         Reweight(technical, passMark),
		FinancialRule:     rule,
		OverallMix:        mix,
	}

	if financial := toCriteria(extracted.Financial, CategoryFinancial); len(financial) > 0 {
		target := DefaultFinancialShare
		if mix != nil && mix.Financial > 0 {
			target = mix.Financial
		}
		set.Financial = Reweight(financial, target)
	}

	return set, source
}

// Source tells where the technical criteria of a Set came from.
type Source string

const (
	SourceExtracted Source = "extracted"
	SourceSummary   Source = "summary"
	SourceDefault   Source = "default"
)

// IsNonCriterion reports whether name is a contract term rather than a scoring criterion.
func IsNonCriterion(name string) bool {
	return containsAny(name, nonCriteriaHints)
}

// IsFinancialName reports whether name describes the bidder's financial standing.
func IsFinancialName(name string) bool {
	return containsAny(name, financialNameHints)
}

func containsAny(name string, hints []string) bool {
	n := strings.TrimSpace(name)
	for _, h := range hints {
		if strings.Contains(n, h) {
			return true
		}
	}
	return false
}

func usable(c RawCriterion) bool {
	if NormalizeName(c.Name) == "" || IsNonCriterion(c.Name) {
		return false
	}
	if c.Weight == nil || math.IsNaN(*c.Weight) {
		return false
	}
	return c.Unit != nil && Unit(normalizeUnit(*c.Unit)).Valid()
}

func normalizeUnit(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

func toCriteria(list []RawCriterion, category Category) []Criterion {
	out := make([]Criterion, 0, len(list))
	for _, c := range list {
		name := NormalizeName(c.Name)
		if name == "" || c.Weight == nil {
			continue
		}
		criterion := Criterion{Name: name, Weight: *c.Weight, Category: category, Unit: UnitPoints}
		if c.Unit != nil {
			if u := Unit(normalizeUnit(*c.Unit)); u.Valid() {
				criterion.Unit = u
			}
		}
		if c.Evidence != nil {
			criterion.Evidence = *c.Evidence
		}
		out = append(out, criterion)
	}
	return out
}

func findPassMark(text string) (float64, bool) {
	for _, pattern := range []*regexp.Regexp{passMarkNearKeyword, passMarkBeforeWord} {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				return float64(v), true
			}
		}
	}
	return 0, false
}

// criterionIndex keeps criteria in first-seen order keyed by normalised name.
type criterionIndex struct {
	order []string
	byKey map[string]*RawCriterion
}

func newCriterionIndex() *criterionIndex {
	return &criterionIndex{byKey: make(map[string]*RawCriterion)}
}

func (ix *criterionIndex) add(c RawCriterion) {
	key := NormalizeName(c.Name)
	if key == "" {
		return
	}

	existing, ok := ix.byKey[key]
	if !ok {
		record := c
		record.Name = key
		ix.byKey[key] = &record
		ix.order = append(ix.order, key)
		return
	}

	if existing.Weight == nil && c.Weight != nil {
		existing.Weight = c.Weight
	}
	if existing.Unit == nil && c.Unit != nil {
		existing.Unit = c.Unit
	}
	if existing.Evidence == nil && c.Evidence != nil && strings.TrimSpace(*c.Evidence) != "" {
		existing.Evidence = c.Evidence
	}
}

func (ix *criterionIndex) list() []RawCriterion {
	out := make([]RawCriterion, 0, len(ix.order))
	for _, key := range ix.order {
		out = append(out, *ix.byKey[key])
	}
	return out
}
