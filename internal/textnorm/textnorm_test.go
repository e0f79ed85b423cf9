package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "empty", input: "", expect: ""},
		{name: "arabic digits and percent", input: "درجة الاجتياز ٧٠٪", expect: "درجة الاجتياز 70%"},
		{name: "tatweel removed", input: "التقيـــيم", expect: "التقييم"},
		{name: "dashes and colon", input: "a – b — c − d：e", expect: "a - b - c - d:e"},
		{name: "spaces and newlines", input: "  a \t b\r\n\r\n\nc\rd  ", expect: "a b\nc\nd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	got := Clean("  العرض   العرض الفني \n\n\t\nخطة  خطة التنفيذ ")
	expect := "العرض الفني\nخطة التنفيذ"
	if got != expect {
		t.Fatalf("expected %q, got %q", expect, got)
	}
}

func TestIsArabic(t *testing.T) {
	t.Parallel()

	if !IsArabic("proposal عرض") {
		t.Fatal("expected arabic text to be detected")
	}
	if IsArabic("proposal 70%") {
		t.Fatal("expected latin text not to be detected as arabic")
	}
}

func TestCollapseSpaces(t *testing.T) {
	t.Parallel()

	if got := CollapseSpaces("  خطة \t إدارة\nالمشروع "); got != "خطة إدارة المشروع" {
		t.Fatalf("unexpected result: %q", got)
	}
}
