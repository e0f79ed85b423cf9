// Package proposals reads vendor proposals from a directory.
package proposals

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spigell/rfp-evaluator/internal/scoring"
	"github.com/spigell/rfp-evaluator/internal/textnorm"
)

const (
	extText = ".txt"
	extPDF  = ".pdf"
)

// TextExtractor turns a document on disk into plain text.
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// Loader reads every supported proposal in a directory.
type Loader struct {
	extractor TextExtractor
	logger    *zap.Logger
}

// NewLoader returns a Loader. extractor may be nil when only text proposals are expected.
func NewLoader(extractor TextExtractor, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{extractor: extractor, logger: logger}
}

// Load returns the proposals of dir ordered by file name. A proposal whose
// text cannot be read is kept with empty text so it still shows up in the
// ranking. Only a failure to list dir is returned as an error.
func (l *Loader) Load(ctx context.Context, dir string) ([]scoring.Proposal, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read proposals directory: %w", err)
	}

	proposals := make([]scoring.Proposal, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		ext := strings.ToLower(filepath.Ext(filename))
		if ext != extText && ext != extPDF {
			l.logger.Warn("skipping unsupported proposal file", zap.String("file", filename))
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := l.readText(ctx, filepath.Join(dir, filename), ext)
		if err != nil {
			l.logger.Warn("proposal text could not be read", zap.String("file", filename), zap.Error(err))
			text = ""
		}

		if text != "" && !textnorm.IsArabic(text) {
			l.logger.Warn("proposal text has no arabic characters, extraction may have failed", zap.String("file", filename))
		}

		proposals = append(proposals, scoring.Proposal{
			ID:   filename,
			Name: DisplayName(filename),
			Text: text,
		})
	}

	sort.Slice(proposals, func(i, j int) bool { return proposals[i].ID < proposals[j].ID })

	l.logger.Info("proposals loaded", zap.String("dir", dir), zap.Int("count", len(proposals)))
	return proposals, nil
}

func (l *Loader) readText(ctx context.Context, path, ext string) (string, error) {
	if ext == extText {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return textnorm.Normalize(string(data)), nil
	}

	if l.extractor == nil {
		return "", fmt.Errorf("no extraction service configured for %s", filepath.Base(path))
	}
	return l.extractor.ExtractFile(ctx, path)
}

// DisplayName turns "vendor_a-final.pdf" into "Vendor A Final".
func DisplayName(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return cases.Title(language.Und).String(stem)
}
