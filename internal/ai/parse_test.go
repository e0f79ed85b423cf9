package ai

import (
	"encoding/json"
	"math"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		expect string
		found  bool
	}{
		{
			name:   "fenced block wins",
			raw:    "intro {\"a\": 0}\n```json\n{\"b\": 1}\n```\ntrailer",
			expect: `{"b": 1}`,
			found:  true,
		},
		{
			name:   "plain fence",
			raw:    "```\n{\"c\": 2}\n```",
			expect: `{"c": 2}`,
			found:  true,
		},
		{
			name:   "greedy object",
			raw:    "Here you go: {\"scores\": {\"x\": 1}} thanks",
			expect: `{"scores": {"x": 1}}`,
			found:  true,
		},
		{
			name:   "no object",
			raw:    "  not json  ",
			expect: "not json",
			found:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, found := ExtractJSON(tt.raw)
			if got != tt.expect || found != tt.found {
				t.Fatalf("expected (%q, %v), got (%q, %v)", tt.expect, tt.found, got, found)
			}
		})
	}
}

func TestParseObject(t *testing.T) {
	t.Parallel()

	ok := ParseObject("```json\n{\"overall_comment\": \"جيد\"}\n```", true)
	if !ok.OK() {
		t.Fatalf("expected ok, got %s: %v", ok.Reason, ok.Err)
	}
	if ok.Data["overall_comment"] != "جيد" {
		t.Fatalf("unexpected data: %+v", ok.Data)
	}

	if p := ParseObject("no braces here", true); p.Reason != FallbackNoJSON {
		t.Fatalf("expected no_json, got %q", p.Reason)
	}

	if p := ParseObject("no braces here", false); p.Reason != FallbackBadJSON {
		t.Fatalf("expected bad_json in lenient mode, got %q", p.Reason)
	}

	if p := ParseObject("{not: valid}", true); p.Reason != FallbackBadJSON || p.Err == nil {
		t.Fatalf("expected bad_json with error, got %q", p.Reason)
	}

	if p := ParseObject("[1, 2]", false); p.Reason != FallbackNotObject {
		t.Fatalf("expected not_object, got %q", p.Reason)
	}
}

func TestCoerceFloat(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		in     any
		expect float64
	}{
		"float":       {in: 12.5, expect: 12.5},
		"int":         {in: 7, expect: 7},
		"string":      {in: " 30 ", expect: 30},
		"percent":     {in: "40%", expect: 40},
		"json number": {in: json.Number("55.5"), expect: 55.5},
	}

	for name, tc := range cases {
		if got := CoerceFloat(tc.in); got != tc.expect {
			t.Fatalf("%s: expected %v, got %v", name, tc.expect, got)
		}
	}

	for _, bad := range []any{nil, "", "abc", true, []any{1}} {
		if got := CoerceFloat(bad); !math.IsNaN(got) {
			t.Fatalf("expected NaN for %v, got %v", bad, got)
		}
	}
}

func TestCoerceOptional(t *testing.T) {
	t.Parallel()

	if CoerceOptionalFloat(nil) != nil || CoerceOptionalFloat("n/a") != nil {
		t.Fatal("expected nil for missing or non-numeric values")
	}
	if v := CoerceOptionalFloat("25"); v == nil || *v != 25 {
		t.Fatalf("unexpected value: %v", v)
	}

	if CoerceOptionalString("  ") != nil {
		t.Fatal("expected nil for blank string")
	}
	if s := CoerceOptionalString(" percent "); s == nil || *s != "percent" {
		t.Fatalf("unexpected value: %v", s)
	}
	if got := CoerceString(map[string]any{"a": 1}); got != `{"a":1}` {
		t.Fatalf("unexpected composite encoding: %q", got)
	}
}
