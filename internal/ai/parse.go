package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// FallbackReason explains why an LLM response could not be used as-is.
type FallbackReason string

const (
	FallbackNone      FallbackReason = ""
	FallbackNoJSON    FallbackReason = "no_json"
	FallbackBadJSON   FallbackReason = "bad_json"
	FallbackNotObject FallbackReason = "not_object"
)

// Parsed is the outcome of decoding a JSON object out of an LLM response.
// Exactly one of Data or Reason is meaningful: callers must check OK first.
type Parsed struct {
	Data   map[string]any
	Reason FallbackReason
	Err    error
}

// OK reports whether the response carried a usable JSON object.
func (p Parsed) OK() bool { return p.Reason == FallbackNone }

var (
	fencedObject = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	greedyObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON returns the JSON object embedded in raw. Content of a fenced
// code block wins; otherwise the span from the first '{' to the last '}' is
// used. The second value is false when nothing object-like was found.
func ExtractJSON(raw string) (string, bool) {
	if m := fencedObject.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	if m := greedyObject.FindString(raw); m != "" {
		return m, true
	}
	return strings.TrimSpace(raw), false
}

// ParseObject extracts and decodes the first JSON object of an LLM response.
// When strict is false a response without braces is still handed to the
// decoder as-is, which is how the scorer treats bare answers.
func ParseObject(raw string, strict bool) Parsed {
	candidate, found := ExtractJSON(raw)
	if !found && strict {
		return Parsed{Reason: FallbackNoJSON, Err: fmt.Errorf("no json object in response")}
	}

	var decoded any
	if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
		return Parsed{Reason: FallbackBadJSON, Err: fmt.Errorf("decode json: %w", err)}
	}

	data, ok := decoded.(map[string]any)
	if !ok {
		return Parsed{Reason: FallbackNotObject, Err: fmt.Errorf("json value is %T, not an object", decoded)}
	}

	return Parsed{Data: data}
}

// CoerceFloat converts numbers, numeric strings (optionally suffixed with %)
// and json.Number into float64. Anything else yields NaN.
func CoerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "%"))
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// CoerceOptionalFloat is CoerceFloat with nil and non-numeric values mapped to nil.
func CoerceOptionalFloat(v any) *float64 {
	if v == nil {
		return nil
	}
	f := CoerceFloat(v)
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// CoerceString returns a trimmed string form of v, JSON-encoding composite values.
func CoerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// CoerceOptionalString returns nil for nil or blank values.
func CoerceOptionalString(v any) *string {
	s := CoerceString(v)
	if s == "" {
		return nil
	}
	return &s
}
