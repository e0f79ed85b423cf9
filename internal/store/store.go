// Package store keeps the history of evaluation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/spigell/rfp-evaluator/internal/pipeline"
)

// ErrNotFound is returned by GetRun for an unknown run id.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	created_at    TEXT NOT NULL,
	rfp_path      TEXT NOT NULL DEFAULT '',
	proposals_dir TEXT NOT NULL DEFAULT '',
	threshold     REAL NOT NULL DEFAULT 0,
	proposals     INTEGER NOT NULL DEFAULT 0,
	qualified     INTEGER NOT NULL DEFAULT 0,
	top_proposal  TEXT NOT NULL DEFAULT '',
	top_score     REAL NOT NULL DEFAULT 0,
	result        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_created_at ON runs (created_at);
`

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one stored evaluation.
type Run struct {
	ID           string    `db:"run_id" json:"run_id"`
	CreatedAt    time.Time `db:"-" json:"created_at"`
	RFPPath      string    `db:"rfp_path" json:"rfp_path"`
	ProposalsDir string    `db:"proposals_dir" json:"proposals_dir"`
	Threshold    float64   `db:"threshold" json:"threshold"`
	Proposals    int       `db:"proposals" json:"proposals"`
	Qualified    int       `db:"qualified" json:"qualified"`
	TopProposal  string    `db:"top_proposal" json:"top_proposal"`
	TopScore     float64   `db:"top_score" json:"top_score"`

	Result *pipeline.Result `db:"-" json:"result,omitempty"`
}

type row struct {
	Run
	CreatedAtRaw string `db:"created_at"`
	ResultRaw    string `db:"result"`
}

// Store is a SQLite backed run history.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores result under a new run id and returns it.
func (s *Store) SaveRun(ctx context.Context, result *pipeline.Result) (*Run, error) {
	if result == nil {
		return nil, errors.New("result is required")
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	run := Run{
		ID:           uuid.NewString(),
		CreatedAt:    s.now().UTC(),
		RFPPath:      result.RFPPath,
		ProposalsDir: result.ProposalsDir,
		Threshold:    result.Threshold,
		Proposals:    len(result.Report.RankedProposals),
		Qualified:    len(result.Report.Qualified()),
	}
	if len(result.Report.RankedProposals) > 0 {
		top := result.Report.RankedProposals[0]
		run.TopProposal = top.Name
		run.TopScore = top.TotalScore
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, rfp_path, proposals_dir, threshold, proposals, qualified, top_proposal, top_score, result)
		VALUES (:run_id, :created_at, :rfp_path, :proposals_dir, :threshold, :proposals, :qualified, :top_proposal, :top_score, :result)`,
		row{Run: run, CreatedAtRaw: run.CreatedAt.Format(timeLayout), ResultRaw: string(payload)},
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	run.Result = result
	return &run, nil
}

// ListRuns returns the latest runs, newest first, without their results.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []row
	err := s.db.SelectContext(ctx, &rows, `
		SELECT run_id, created_at, rfp_path, proposals_dir, threshold, proposals, qualified, top_proposal, top_score, '' AS result
		FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		run, err := r.decode(false)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// GetRun returns one run including its full result.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `
		SELECT run_id, created_at, rfp_path, proposals_dir, threshold, proposals, qualified, top_proposal, top_score, result
		FROM runs WHERE run_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run, err := r.decode(true)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r row) decode(withResult bool) (Run, error) {
	run := r.Run

	created, err := time.Parse(timeLayout, r.CreatedAtRaw)
	if err != nil {
		return Run{}, fmt.Errorf("run %s: created_at: %w", run.ID, err)
	}
	run.CreatedAt = created

	if withResult {
		var result pipeline.Result
		if err := json.Unmarshal([]byte(r.ResultRaw), &result); err != nil {
			return Run{}, fmt.Errorf("run %s: result: %w", run.ID, err)
		}
		run.Result = &result
	}

	return run, nil
}
