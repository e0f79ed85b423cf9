package criteria

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/rfp-evaluator/internal/ai"
	"github.com/spigell/rfp-evaluator/internal/textnorm"
	"github.com/spigell/rfp-evaluator/internal/utils"
)

const (
	// DefaultFocusRadius is the number of lines kept on each side of a keyword hit.
	DefaultFocusRadius = 12
	// DefaultChunkMaxTokens is the token budget of one extraction call.
	DefaultChunkMaxTokens = 4500

	defaultCallTimeout  = 2 * time.Minute
	defaultMaxLogLength = 200
	wordsPerToken       = 0.75
)

//go:embed prompt.md
var promptTemplate string

// focusKeywords mark lines that talk about evaluation, weighting or the
// execution timeline.
var focusKeywords = []string{
	"تقييم العروض", "المعايير الفنية", "المعايير المالية", "التقييم الفني",
	"آلية التقييم", "آلية الترسية", "درجة الاجتياز", "الحد الأدنى", "التمرير الفني",
	"الوزن", "نسبة", "النقاط", "%",
	"الخطة الزمنية", "البرنامج الزمني", "الجدول الزمني", "خطة التنفيذ",
	"الخطة الزمنية للتنفيذ", "الخطة الزمنية للتشغيل",
	"الخطة الزمنية للإنشاء والتشغيل", "الخطة الزمنية للإنشاء",
}

// FindFocusWindows returns, for every line containing an evaluation keyword,
// the normalised text of that line and radius lines around it. Windows are
// returned in document order and may overlap.
func FindFocusWindows(fullText string, radius int) []string {
	if radius < 0 {
		radius = 0
	}

	lines := strings.Split(fullText, "\n")
	windows := make([]string, 0)
	for i, line := range lines {
		if !hasFocusKeyword(line) {
			continue
		}

		start := max(0, i-radius)
		end := min(len(lines), i+radius+1)
		window := textnorm.Normalize(strings.Join(lines[start:end], "\n"))
		if window != "" {
			windows = append(windows, window)
		}
	}
	return windows
}

func hasFocusKeyword(line string) bool {
	lower := strings.ToLower(textnorm.Normalize(line))
	for _, kw := range focusKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Chunk splits every window into chunks of at most maxTokens*0.75 words.
// Windows are chunked separately, so a chunk never spans two windows. A
// word longer than the limit is split into limit-sized pieces.
func Chunk(windows []string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkMaxTokens
	}
	limit := max(1, int(float64(maxTokens)*wordsPerToken))

	var chunks []string
	for _, window := range windows {
		chunks = append(chunks, chunkWords(window, limit)...)
	}
	return chunks
}

func chunkWords(text string, limit int) []string {
	var (
		chunks  []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
		}
	}

	for _, word := range strings.Fields(text) {
		if utf8.RuneCountInString(word) > limit {
			flush()
			runes := []rune(word)
			for i := 0; i < len(runes); i += limit {
				chunks = append(chunks, string(runes[i:min(len(runes), i+limit)]))
			}
			continue
		}

		if len(current)+1 > limit {
			flush()
		}
		current = append(current, word)
	}
	flush()

	return chunks
}

// Extraction is the outcome of reading criteria from one RFP.
type Extraction struct {
	Set       Set        `json:"set"`
	Technical []Weighted `json:"technical"`
	Financial []Weighted `json:"financial"`
	Source    Source     `json:"source"`
	Chunks    int        `json:"chunks"`
	Dropped   int        `json:"dropped_chunks"`
}

// ExtractorOptions tunes an Extractor. Zero values fall back to defaults.
type ExtractorOptions struct {
	FocusRadius  int
	MaxTokens    int
	Concurrency  int
	CallTimeout  time.Duration
	MaxLogLength int
}

// Extractor asks an LLM for the evaluation criteria of an RFP, one focus
// chunk at a time, and normalises the answers into a Set.
type Extractor struct {
	generator ai.Generator
	logger    *zap.Logger
	opts      ExtractorOptions
}

// NewExtractor builds an Extractor over generator.
func NewExtractor(generator ai.Generator, opts ExtractorOptions, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.FocusRadius <= 0 {
		opts.FocusRadius = DefaultFocusRadius
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultChunkMaxTokens
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}

	return &Extractor{generator: generator, logger: logger, opts: opts}
}

// Extract reads the criteria of fullText. It never fails because of the
// LLM: bad chunks are dropped and an empty result falls back to summary and
// then to the default criteria. Only a canceled ctx is returned as an error.
func (e *Extractor) Extract(ctx context.Context, fullText string, summary SummaryCriteria) (*Extraction, error) {
	chunks := Chunk(FindFocusWindows(fullText, e.opts.FocusRadius), e.opts.MaxTokens)
	e.logger.Info("criteria extraction started", zap.Int("chunks", len(chunks)))

	partials, dropped, err := e.ExtractPerChunk(ctx, chunks)
	if err != nil {
		return nil, err
	}

	merged := Merge(partials)
	cleaned := Clean(merged)
	filled := FillDefaults(cleaned, fullText)
	deduped := Dedupe(filled)

	set, source := Finalize(deduped, summary)

	e.logger.Info("criteria extraction finished",
		zap.String("source", string(source)),
		zap.Int("technical", len(set.Technical)),
		zap.Int("financial", len(set.Financial)),
		zap.Int("dropped_chunks", dropped),
		zap.Float64("pass_mark", set.TechnicalPassMark),
	)

	return &Extraction{
		Set:       set,
		Technical: Project(set.Technical),
		Financial: Project(set.Financial),
		Source:    source,
		Chunks:    len(chunks),
		Dropped:   dropped,
	}, nil
}

// ExtractPerChunk runs one LLM call per chunk. Results keep chunk order so
// the first-wins merge sees them in document order. Chunks whose call or
// parse failed are counted in dropped and contribute nothing.
func (e *Extractor) ExtractPerChunk(ctx context.Context, chunks []string) ([]RawExtraction, int, error) {
	slots := make([]*RawExtraction, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			partial, ok := e.extractChunk(gctx, i, len(chunks), chunk)
			if ok {
				slots[i] = &partial
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("extract criteria: %w", err)
	}

	partials := make([]RawExtraction, 0, len(chunks))
	dropped := 0
	for _, slot := range slots {
		if slot == nil {
			dropped++
			continue
		}
		partials = append(partials, *slot)
	}

	return partials, dropped, nil
}

func (e *Extractor) extractChunk(ctx context.Context, idx, total int, chunk string) (RawExtraction, bool) {
	prompt := buildPrompt(idx+1, total, chunk)
	log := e.logger.With(zap.Int("chunk", idx+1), zap.Int("total_chunks", total))

	log.Debug("criteria extraction request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.opts.MaxLogLength)),
	)

	callCtx, cancel := context.WithTimeout(ctx, e.opts.CallTimeout)
	defer cancel()

	raw, err := e.generator.GenerateContent(callCtx, prompt)
	if err != nil {
		log.Warn("criteria extraction call failed, chunk dropped", zap.Error(err))
		return RawExtraction{}, false
	}

	parsed := ai.ParseObject(raw, true)
	if !parsed.OK() {
		log.Warn("criteria extraction response is not json, chunk dropped",
			zap.String("reason", string(parsed.Reason)),
			zap.Error(parsed.Err),
			zap.String("response_preview", utils.TruncateForLog(raw, e.opts.MaxLogLength)),
		)
		return RawExtraction{}, false
	}

	return parseRawExtraction(parsed.Data), true
}

func buildPrompt(num, total int, chunk string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Chunk {{CHUNK_NUM}}/{{TOTAL_CHUNKS}}:\n{{CHUNK_TEXT}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{CHUNK_NUM}}", strconv.Itoa(num))
	prompt = strings.ReplaceAll(prompt, "{{TOTAL_CHUNKS}}", strconv.Itoa(total))
	prompt = strings.ReplaceAll(prompt, "{{CHUNK_TEXT}}", chunk)
	return prompt
}

func parseRawExtraction(data map[string]any) RawExtraction {
	out := RawExtraction{
		TechnicalPassingScore: ai.CoerceOptionalFloat(data["technical_passing_score"]),
		FinancialRule:         ai.CoerceOptionalString(data["financial_rule"]),
		Technical:             parseRawCriteria(data["technical"]),
		Financial:             parseRawCriteria(data["financial"]),
	}

	if mix, ok := data["overall_mix"].(map[string]any); ok {
		technical := ai.CoerceOptionalFloat(mix["technical"])
		financial := ai.CoerceOptionalFloat(mix["financial"])
		if technical != nil && financial != nil {
			out.OverallMix = &Mix{Technical: *technical, Financial: *financial}
		}
	}

	return out
}

func parseRawCriteria(v any) []RawCriterion {
	items, ok := v.([]any)
	if !ok {
		return nil
	}

	out := make([]RawCriterion, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := ai.CoerceString(record["name"])
		if name == "" {
			continue
		}
		out = append(out, RawCriterion{
			Name:     name,
			Weight:   ai.CoerceOptionalFloat(record["weight"]),
			Unit:     ai.CoerceOptionalString(record["unit"]),
			Evidence: ai.CoerceOptionalString(record["evidence"]),
		})
	}
	return out
}
