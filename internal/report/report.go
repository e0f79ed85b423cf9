// Package report renders an evaluation result for people: a Markdown
// summary, the same as an RTL HTML page, and a raw JSON dump.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/spigell/rfp-evaluator/internal/pipeline"
	"github.com/spigell/rfp-evaluator/internal/ranking"
)

var priceLabels = map[ranking.PriceSignal]string{
	ranking.PriceLow:     "منخفض",
	ranking.PriceMedium:  "متوسط",
	ranking.PriceHigh:    "مرتفع",
	ranking.PriceUnknown: "غير محدد",
}

// Markdown renders the ranking table followed by per-proposal details.
func Markdown(result *pipeline.Result) string {
	var b strings.Builder

	b.WriteString("# نتيجة تقييم العروض\n\n")
	fmt.Fprintf(&b, "- كراسة الشروط: `%s`\n", result.RFPPath)
	fmt.Fprintf(&b, "- حد التأهيل: %s\n", formatScore(result.Threshold))
	if result.Criteria != nil {
		fmt.Fprintf(&b, "- مصدر المعايير: %s\n", result.Criteria.Source)
		fmt.Fprintf(&b, "- طريقة الترسية: %s\n", result.Criteria.Set.FinancialRule)
	}
	b.WriteString("\n## الترتيب\n\n")

	b.WriteString("| # | العرض | الدرجة | مؤهل | السعر |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for i, p := range result.Report.RankedProposals {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			i+1, escapeCell(p.Name), formatScore(p.TotalScore), yesNo(p.IsQualified), priceLabels[p.PriceInfo])
	}

	if result.Criteria != nil && len(result.Criteria.Technical) > 0 {
		b.WriteString("\n## المعايير\n\n")
		b.WriteString("| المعيار | الوزن |\n|---|---|\n")
		for _, c := range result.Criteria.Technical {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(c.Name), formatScore(c.Weight))
		}
	}

	b.WriteString("\n## التفاصيل\n")
	for _, p := range result.Report.RankedProposals {
		fmt.Fprintf(&b, "\n### %s\n\n", p.Name)

		names := make([]string, 0, len(p.Scores))
		for name := range p.Scores {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- %s: %s\n", name, formatScore(p.Scores[name]))
		}

		if comment := strings.TrimSpace(p.OverallComment); comment != "" {
			fmt.Fprintf(&b, "\n> %s\n", strings.ReplaceAll(comment, "\n", " "))
		}
	}

	fmt.Fprintf(&b, "\n---\n\n%s\n", result.Report.Rationale)
	return b.String()
}

// HTML renders Markdown(result) as a standalone right-to-left page.
func HTML(result *pipeline.Result) (string, error) {
	var content bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(Markdown(result)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	return "<!doctype html><html lang='ar' dir='rtl'><head><meta charset='utf-8'>" +
		"<title>" + html.EscapeString("نتيجة تقييم العروض") + "</title>" +
		"<style>body{font-family:sans-serif;max-width:1000px;margin:0 auto;padding:1rem;} " +
		"table{width:100%;border-collapse:collapse;} th,td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;text-align:right;} " +
		"thead th{background:#f1f5f9;} blockquote{color:#44403c;border-right:3px solid #92400e;margin:0;padding:0 0.65rem;}</style>" +
		"</head><body>" + content.String() + "</body></html>", nil
}

// DumpToTmpFile writes result as indented JSON to a new temporary file and returns its name.
func DumpToTmpFile(result *pipeline.Result) (string, error) {
	file, err := os.CreateTemp("", "rfp_evaluation_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// Write renders result in the format implied by the extension of path:
// .html, .json or Markdown for anything else.
func Write(path string, result *pipeline.Result) error {
	var (
		data []byte
		err  error
	)

	switch {
	case strings.HasSuffix(strings.ToLower(path), ".html"):
		var page string
		page, err = HTML(result)
		data = []byte(page)
	case strings.HasSuffix(strings.ToLower(path), ".json"):
		data, err = json.MarshalIndent(result, "", "  ")
	default:
		data = []byte(Markdown(result))
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func yesNo(v bool) string {
	if v {
		return "نعم"
	}
	return "لا"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "|", `\|`)
}
