package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func raw(name string, weight float64, unit string) RawCriterion {
	return RawCriterion{Name: name, Weight: ptr(weight), Unit: ptr(unit)}
}

func TestMergeFillsNullsFromLaterRecords(t *testing.T) {
	merged := Merge([]RawExtraction{
		{Technical: []RawCriterion{{Name: "X"}}},
		{Technical: []RawCriterion{{Name: " X ", Weight: ptr(30.0), Unit: ptr("points")}}},
	})

	require.Len(t, merged.Technical, 1)
	assert.Equal(t, "X", merged.Technical[0].Name)
	require.NotNil(t, merged.Technical[0].Weight)
	assert.Equal(t, 30.0, *merged.Technical[0].Weight)
	assert.Equal(t, "points", *merged.Technical[0].Unit)
}

func TestMergeFirstWins(t *testing.T) {
	merged := Merge([]RawExtraction{
		{
			TechnicalPassingScore: ptr(65.0),
			Technical:             []RawCriterion{raw("الخبرة", 40, "percent")},
		},
		{
			TechnicalPassingScore: ptr(80.0),
			FinancialRule:         ptr("أقل سعر"),
			OverallMix:            &Mix{Technical: 60, Financial: 40},
			Technical:             []RawCriterion{raw("الخبرة", 10, "points")},
		},
		{
			FinancialRule: ptr("أعلى سعر"),
			OverallMix:    &Mix{Technical: 80, Financial: 20},
		},
	})

	assert.Equal(t, 65.0, *merged.TechnicalPassingScore)
	assert.Equal(t, "أقل سعر", *merged.FinancialRule)
	assert.Equal(t, Mix{Technical: 60, Financial: 40}, *merged.OverallMix)
	require.Len(t, merged.Technical, 1)
	assert.Equal(t, 40.0, *merged.Technical[0].Weight)
	assert.Equal(t, "percent", *merged.Technical[0].Unit)
}

func TestCleanDropsDenylistedTerms(t *testing.T) {
	cleaned := Clean(RawExtraction{
		Technical: []RawCriterion{
			raw("تأمين المعدات", 20, "percent"),
			raw("الخبرة السابقة", 30, "percent"),
		},
		Financial: []RawCriterion{
			raw("تأمينات العمالة", 10, "points"),
			raw("السعر", 30, "points"),
		},
	})

	for _, list := range [][]RawCriterion{cleaned.Technical, cleaned.Financial} {
		for _, c := range list {
			assert.NotContains(t, c.Name, "تأمين")
		}
	}
	require.Len(t, cleaned.Technical, 1)
	require.Len(t, cleaned.Financial, 1)
}

func TestCleanRequiresWeightAndUnit(t *testing.T) {
	cleaned := Clean(RawExtraction{
		Technical: []RawCriterion{
			{Name: "بدون وزن", Unit: ptr("percent")},
			{Name: "بدون وحدة", Weight: ptr(10.0)},
			raw("وحدة غير معروفة", 10, "ريال"),
			raw("الجودة", 10, " Percent "),
		},
	})

	require.Len(t, cleaned.Technical, 1)
	assert.Equal(t, "الجودة", cleaned.Technical[0].Name)
}

func TestCleanMovesFinancialStandingToFinancial(t *testing.T) {
	cleaned := Clean(RawExtraction{
		Technical: []RawCriterion{
			raw("الملاءة المالية", 10, "percent"),
			raw("فريق العمل", 20, "percent"),
		},
		Financial: []RawCriterion{raw("خطة التنفيذ", 5, "points")},
	})

	require.Len(t, cleaned.Technical, 1)
	assert.Equal(t, "فريق العمل", cleaned.Technical[0].Name)

	names := []string{}
	for _, c := range cleaned.Financial {
		names = append(names, c.Name)
	}
	assert.ElementsMatch(t, []string{"خطة التنفيذ", "الملاءة المالية"}, names)
}

func TestDedupeIsIdempotent(t *testing.T) {
	input := RawExtraction{
		Technical: []RawCriterion{
			{Name: "الخبرة  السابقة", Weight: ptr(20.0)},
			{Name: "الخبرة السابقة", Unit: ptr("percent"), Evidence: ptr("نص")},
			raw("الفريق", 10, "points"),
		},
	}

	once := Dedupe(input)
	twice := Dedupe(once)

	require.Len(t, once.Technical, 2)
	assert.Equal(t, once, twice)
	assert.Equal(t, 20.0, *once.Technical[0].Weight)
	assert.Equal(t, "percent", *once.Technical[0].Unit)
	assert.Equal(t, "نص", *once.Technical[0].Evidence)
}

func TestFillDefaults(t *testing.T) {
	t.Run("pass mark near keyword", func(t *testing.T) {
		filled := FillDefaults(RawExtraction{}, "يشترط لاجتياز التقييم الفني الحصول على 65 % على الأقل")
		require.NotNil(t, filled.TechnicalPassingScore)
		assert.Equal(t, 65.0, *filled.TechnicalPassingScore)
	})

	t.Run("pass mark before word", func(t *testing.T) {
		filled := FillDefaults(RawExtraction{}, "العروض الحاصلة على 75% فأعلى تعتبر مؤهلة")
		require.NotNil(t, filled.TechnicalPassingScore)
		assert.Equal(t, 75.0, *filled.TechnicalPassingScore)
	})

	t.Run("keeps extracted pass mark", func(t *testing.T) {
		filled := FillDefaults(RawExtraction{TechnicalPassingScore: ptr(60.0)}, "حد الاجتياز 80%")
		assert.Equal(t, 60.0, *filled.TechnicalPassingScore)
	})

	t.Run("mix", func(t *testing.T) {
		filled := FillDefaults(RawExtraction{}, "يوزع التقييم 70% للتقييم الفني\nو 30% للعرض المالي")
		require.NotNil(t, filled.OverallMix)
		assert.Equal(t, Mix{Technical: 70, Financial: 30}, *filled.OverallMix)
	})

	t.Run("mix needs both halves", func(t *testing.T) {
		filled := FillDefaults(RawExtraction{}, "70% للتقييم الفني")
		assert.Nil(t, filled.OverallMix)
	})

	t.Run("default rule", func(t *testing.T) {
		filled := FillDefaults(RawExtraction{FinancialRule: ptr("  ")}, "")
		require.NotNil(t, filled.FinancialRule)
		assert.Equal(t, DefaultFinancialRule, *filled.FinancialRule)
		assert.Nil(t, filled.TechnicalPassingScore)
	})
}

func TestReweight(t *testing.T) {
	t.Run("empty list yields equal defaults", func(t *testing.T) {
		out := Reweight(nil, 70)
		require.Len(t, out, len(DefaultTechnicalNames))

		var sum float64
		for _, c := range out {
			assert.InDelta(t, out[0].Weight, c.Weight, 1e-9)
			sum += c.Weight
		}
		assert.InDelta(t, 70, sum, 1e-9)
	})

	t.Run("zero total splits evenly", func(t *testing.T) {
		out := Reweight([]Criterion{{Name: "a"}, {Name: "b"}}, 30)
		assert.Equal(t, 15.0, out[0].Weight)
		assert.Equal(t, 15.0, out[1].Weight)
	})

	t.Run("scales to target", func(t *testing.T) {
		in := []Criterion{{Name: "a", Weight: 30}, {Name: "b", Weight: 10}}
		out := Reweight(in, 80)
		assert.InDelta(t, 60, out[0].Weight, 1e-9)
		assert.InDelta(t, 20, out[1].Weight, 1e-9)
		assert.Equal(t, 30.0, in[0].Weight, "input must not be modified")
	})
}

func TestFinalize(t *testing.T) {
	t.Run("extracted criteria scaled to pass mark", func(t *testing.T) {
		set, source := Finalize(RawExtraction{
			TechnicalPassingScore: ptr(60.0),
			Technical:             []RawCriterion{raw("أ", 1, "points"), raw("ب", 3, "points")},
			Financial:             []RawCriterion{raw("السعر", 100, "percent")},
		}, SummaryCriteria{})

		assert.Equal(t, SourceExtracted, source)
		assert.Equal(t, 60.0, set.TechnicalPassMark)
		assert.InDelta(t, 15, set.Technical[0].Weight, 1e-9)
		assert.InDelta(t, 45, set.Technical[1].Weight, 1e-9)
		require.Len(t, set.Financial, 1)
		assert.InDelta(t, DefaultFinancialShare, set.Financial[0].Weight, 1e-9)
		assert.Equal(t, CategoryFinancial, set.Financial[0].Category)
		assert.Equal(t, DefaultFinancialRule, set.FinancialRule)
	})

	t.Run("summary fallback", func(t *testing.T) {
		set, source := Finalize(RawExtraction{}, SummaryCriteria{
			PassMark:  80,
			Technical: []Weighted{{Name: "الجودة", Weight: 50}, {Name: "الخبرة", Weight: 50}},
		})

		assert.Equal(t, SourceSummary, source)
		assert.Equal(t, []string{"الجودة", "الخبرة"}, set.Names())
		assert.InDelta(t, 40, set.Technical[0].Weight, 1e-9)
		assert.Empty(t, set.Financial)
	})

	t.Run("defaults", func(t *testing.T) {
		set, source := Finalize(RawExtraction{}, SummaryCriteria{})

		assert.Equal(t, SourceDefault, source)
		assert.Equal(t, DefaultTechnicalNames, set.Names())
		assert.Equal(t, DefaultTechnicalPassMark, set.TechnicalPassMark)
		assert.Nil(t, set.OverallMix)
	})

	t.Run("no stated mix is reported as unset", func(t *testing.T) {
		set, _ := Finalize(RawExtraction{
			TechnicalPassingScore: ptr(60.0),
			Financial:             []RawCriterion{raw("السعر", 50, "percent"), raw("شروط الدفع", 50, "percent")},
		}, SummaryCriteria{})

		assert.Nil(t, set.OverallMix)
		require.Len(t, set.Financial, 2)
		assert.InDelta(t, DefaultFinancialShare/2, set.Financial[0].Weight, 1e-9)
	})

	t.Run("stated mix drives the financial share", func(t *testing.T) {
		set, _ := Finalize(RawExtraction{
			OverallMix: &Mix{Technical: 80, Financial: 20},
			Financial:  []RawCriterion{raw("السعر", 100, "percent")},
		}, SummaryCriteria{})

		require.NotNil(t, set.OverallMix)
		assert.Equal(t, Mix{Technical: 80, Financial: 20}, *set.OverallMix)
		assert.InDelta(t, 20, set.Financial[0].Weight, 1e-9)
	})
}
