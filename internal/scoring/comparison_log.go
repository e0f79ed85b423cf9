package scoring

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// SummaryPreviewLength is how many characters of the RFP summary a log record keeps.
	SummaryPreviewLength = 500
	// ProposalPreviewLength is how many characters of the proposal text a log record keeps.
	ProposalPreviewLength = 1000
)

// ComparisonEntry is one scoring call as stored in the comparison log.
type ComparisonEntry struct {
	ProposalID          string `json:"proposal_id"`
	CriteriaList        string `json:"criteria_list"`
	RFPSummaryPreview   string `json:"rfp_summary_preview"`
	ProposalTextPreview string `json:"proposal_text_preview"`
	LLMResponse         string `json:"llm_response"`
}

// ComparisonLog is a JSON array of ComparisonEntry kept in one file.
// Record rewrites the whole file, so writers in one process are serialised.
type ComparisonLog struct {
	path string
	mu   sync.Mutex
}

// NewComparisonLog returns a log stored at path. The file is created on first Record.
func NewComparisonLog(path string) *ComparisonLog {
	return &ComparisonLog{path: path}
}

// Path returns the file the log is written to.
func (l *ComparisonLog) Path() string {
	return l.path
}

// Record appends entry to the log.
func (l *ComparisonLog) Record(entry ComparisonEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := readEntries(l.path)
	if err != nil {
		return err
	}

	entries = append(entries, entry)
	return writeEntries(l.path, entries)
}

// Entries returns every record currently in the log.
func (l *ComparisonLog) Entries() ([]ComparisonEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return readEntries(l.path)
}

func readEntries(path string) ([]ComparisonEntry, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return []ComparisonEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if stat.Size() == 0 {
		return []ComparisonEntry{}, nil
	}

	var entries []ComparisonEntry
	if err := json.NewDecoder(file).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode comparison log %s: %w", path, err)
	}
	return entries, nil
}

func writeEntries(path string, entries []ComparisonEntry) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}
