// Package textnorm normalises Arabic document text before it reaches the
// criteria extractor and the scorer.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const tatweel = 'ـ'

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	blankLines      = regexp.MustCompile(`\n+`)
	anySpace        = regexp.MustCompile(`\s+`)
)

// mapper folds Arabic-Indic digits, the Arabic percent sign and dash/colon
// variants into their ASCII forms.
var mapper = runes.Map(func(r rune) rune {
	switch {
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	case r == '٪':
		return '%'
	case r == '–' || r == '—' || r == '−':
		return '-'
	case r == '：':
		return ':'
	default:
		return r
	}
})

var stripTatweel = runes.Remove(runes.Predicate(func(r rune) bool { return r == tatweel }))

// Normalize applies the document-level normalisation used for every text
// handed to the evaluation core.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	out, _, err := transform.String(transform.Chain(stripTatweel, mapper), s)
	if err != nil {
		out = s
	}

	out = horizontalSpace.ReplaceAllString(out, " ")
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = strings.ReplaceAll(out, "\r", "\n")
	out = blankLines.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}

// Clean collapses whitespace inside every line, drops empty lines and removes
// words repeated within the same line, keeping the first occurrence.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(anySpace.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}

		seen := make(map[string]struct{})
		words := strings.Split(line, " ")
		unique := words[:0]
		for _, word := range words {
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			unique = append(unique, word)
		}
		cleaned = append(cleaned, strings.Join(unique, " "))
	}

	return strings.Join(cleaned, "\n")
}

// CollapseSpaces trims s and replaces every whitespace run with a single space.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(anySpace.ReplaceAllString(s, " "))
}

// IsArabic reports whether s contains at least one character from the Arabic blocks.
func IsArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}
