// Package criteria turns an RFP's evaluation section into a clean, weighted
// list of scoring criteria.
package criteria

// Unit is the unit a criterion weight was expressed in by the RFP.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitPoints  Unit = "points"
)

// Valid reports whether u is one of the accepted weight units.
func (u Unit) Valid() bool {
	return u == UnitPercent || u == UnitPoints
}

// Category separates technical from financial criteria.
type Category string

const (
	CategoryTechnical Category = "technical"
	CategoryFinancial Category = "financial"
)

// Criterion is one named, weighted scoring dimension. Name is the identity
// key: trimmed and whitespace-collapsed.
type Criterion struct {
	Name     string   `json:"name"`
	Weight   float64  `json:"weight"`
	Unit     Unit     `json:"unit"`
	Category Category `json:"category"`
	Evidence string   `json:"evidence,omitempty"`
}

// Mix is the technical/financial split of the overall award score.
type Mix struct {
	Technical float64 `json:"technical"`
	Financial float64 `json:"financial"`
}

// Set is the normalised criteria of one RFP. It is built once per
// evaluation run and only read afterwards.
type Set struct {
	TechnicalPassMark float64     `json:"technical_pass_mark"`
	Technical         []Criterion `json:"technical"`
	Financial         []Criterion `json:"financial"`
	FinancialRule     string      `json:"financial_rule"`
	// OverallMix is nil when the RFP states no technical/financial split.
	OverallMix *Mix `json:"overall_mix"`
}

// Names returns the technical criterion names in order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s.Technical))
	for _, c := range s.Technical {
		names = append(names, c.Name)
	}
	return names
}

// Weighted is the flat {name, weight} projection consumed by the scorer and the ranker.
type Weighted struct {
	Name   string  `json:"name" yaml:"name" mapstructure:"name"`
	Weight float64 `json:"weight" yaml:"weight" mapstructure:"weight"`
}

// Project flattens criteria into name/weight pairs.
func Project(list []Criterion) []Weighted {
	out := make([]Weighted, 0, len(list))
	for _, c := range list {
		out = append(out, Weighted{Name: c.Name, Weight: c.Weight})
	}
	return out
}

// RawCriterion is a criterion as reported by the LLM for one text chunk.
// Nil fields were absent or null in the response.
type RawCriterion struct {
	Name     string
	Weight   *float64
	Unit     *string
	Evidence *string
}

// RawExtraction is the partial result of one chunk, and also the shape the
// merge, clean, fill and dedupe stages pass along.
type RawExtraction struct {
	TechnicalPassingScore *float64
	FinancialRule         *string
	OverallMix            *Mix
	Technical             []RawCriterion
	Financial             []RawCriterion
}

// SummaryCriteria is what an already summarised RFP knows about its
// technical evaluation. It is the fallback when extraction yields nothing.
type SummaryCriteria struct {
	PassMark  float64
	Technical []Weighted
}
