// Package rfp holds the structured summary of an RFP: how it is produced by
// the LLM, read from disk and handed to the scorer.
package rfp

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/rfp-evaluator/internal/criteria"
)

// FinancialLowestPrice is the default financial evaluation method.
const FinancialLowestPrice = "lowest_price_among_qualified"

// FallbackScope marks a summary that was not produced by the LLM.
const FallbackScope = "فشل تلخيص كراسة الشروط تلقائيًا"

// EvaluationDetails is the evaluation section of a summary.
type EvaluationDetails struct {
	TechnicalPassMark         float64             `json:"technical_pass_mark" yaml:"technical_pass_mark" mapstructure:"technical_pass_mark"`
	TechnicalCriteria         []criteria.Weighted `json:"technical_criteria" yaml:"technical_criteria" mapstructure:"technical_criteria"`
	FinancialEvaluationMethod string              `json:"financial_evaluation_method" yaml:"financial_evaluation_method" mapstructure:"financial_evaluation_method"`
}

// Summary is the structured digest of an RFP given to the scorer as context.
type Summary struct {
	ProjectScope              string            `json:"project_scope" yaml:"project_scope" mapstructure:"project_scope"`
	TechnicalRequirements     []string          `json:"technical_requirements" yaml:"technical_requirements" mapstructure:"technical_requirements"`
	EvaluationCriteriaDetails EvaluationDetails `json:"evaluation_criteria_details" yaml:"evaluation_criteria_details" mapstructure:"evaluation_criteria_details"`
	SubmissionDeadline        string            `json:"submission_deadline" yaml:"submission_deadline" mapstructure:"submission_deadline"`
	ContactInfo               string            `json:"contact_info" yaml:"contact_info" mapstructure:"contact_info"`
}

// Empty returns a summary with only the defaults filled in.
func Empty() *Summary {
	return &Summary{
		TechnicalRequirements: []string{},
		EvaluationCriteriaDetails: EvaluationDetails{
			TechnicalPassMark:         criteria.DefaultTechnicalPassMark,
			TechnicalCriteria:         []criteria.Weighted{},
			FinancialEvaluationMethod: FinancialLowestPrice,
		},
	}
}

// Fallback is the summary used when the LLM could not produce one.
func Fallback() *Summary {
	s := Empty()
	s.ProjectScope = FallbackScope
	s.EvaluationCriteriaDetails.TechnicalCriteria = criteria.DefaultWeightedCriteria()
	return s
}

// IsFallback reports whether s was built by Fallback.
func (s *Summary) IsFallback() bool {
	return s != nil && s.ProjectScope == FallbackScope
}

// Criteria projects the summary for the criteria extractor.
func (s *Summary) Criteria() criteria.SummaryCriteria {
	if s == nil {
		return criteria.SummaryCriteria{}
	}
	return criteria.SummaryCriteria{
		PassMark:  s.EvaluationCriteriaDetails.TechnicalPassMark,
		Technical: append([]criteria.Weighted(nil), s.EvaluationCriteriaDetails.TechnicalCriteria...),
	}
}

// Decode builds a Summary from a loosely typed map, such as a decoded LLM
// answer. Numbers given as strings are accepted and missing fields keep
// their defaults.
func Decode(data map[string]any) (*Summary, error) {
	summary := Empty()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           summary,
		DecodeHook:       percentHook,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode rfp summary: %w", err)
	}

	summary.normalize()
	return summary, nil
}

// percentHook lets "30%" decode into a float.
func percentHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Float64 {
		return data, nil
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(data.(string)), "%")), nil
}

func (s *Summary) normalize() {
	details := &s.EvaluationCriteriaDetails
	if details.TechnicalPassMark <= 0 || details.TechnicalPassMark > 100 {
		details.TechnicalPassMark = criteria.DefaultTechnicalPassMark
	}
	if strings.TrimSpace(details.FinancialEvaluationMethod) == "" {
		details.FinancialEvaluationMethod = FinancialLowestPrice
	}

	kept := make([]criteria.Weighted, 0, len(details.TechnicalCriteria))
	for _, c := range details.TechnicalCriteria {
		c.Name = criteria.NormalizeName(c.Name)
		if c.Name == "" {
			continue
		}
		if c.Weight < 0 || c.Weight > 100 {
			c.Weight = 0
		}
		kept = append(kept, c)
	}
	details.TechnicalCriteria = kept

	if s.TechnicalRequirements == nil {
		s.TechnicalRequirements = []string{}
	}
}
