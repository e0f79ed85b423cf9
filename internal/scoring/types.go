// Package scoring asks an LLM to score one proposal against the RFP
// criteria and keeps an audit trail of every scoring call.
package scoring

// ProposalScore is the scorer's verdict on one proposal. It is never
// modified after Score returns it.
type ProposalScore struct {
	ProposalID     string             `json:"proposal_id"`
	Name           string             `json:"name"`
	Scores         map[string]float64 `json:"scores"`
	OverallComment string             `json:"overall_comment"`
	RawResponse    string             `json:"raw_response,omitempty"`
	// Fallback is set when the scores were zero-filled instead of read from the LLM.
	Fallback string `json:"fallback,omitempty"`
}

// Proposal is the scorer input: a proposal identifier, its display name and
// its extracted text.
type Proposal struct {
	ID   string
	Name string
	Text string
}

const (
	// CommentParseFailure is the comment of a proposal whose LLM answer was not valid JSON.
	CommentParseFailure = "فشل التقييم بسبب خطأ في تنسيق الاستجابة."
	// CommentUnknownFailure is the comment of a proposal whose scoring failed for any other reason.
	CommentUnknownFailure = "فشل التقييم بسبب خطأ غير معروف."
	// CommentMissing is the comment of a scored proposal whose LLM answer had no comment.
	CommentMissing = "No comment provided."
	// CommentEmptyProposal is the comment of a proposal with no usable text.
	CommentEmptyProposal = "العرض فارغ أو غير قابل للتحليل."
)

// Fallback reasons recorded on zero-filled scores.
const (
	FallbackParse   = "parse_error"
	FallbackCall    = "call_error"
	FallbackEmpty   = "empty_proposal"
	FallbackUnknown = "unknown_error"
)

// DefaultCriteria are scored when the caller passes no criteria.
var DefaultCriteria = []string{"السعر", "الجودة", "الجدول الزمني"}
