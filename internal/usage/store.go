// Package usage keeps an append-only ledger of query resolutions: which
// model answered, how many generator calls and tokens it took, and how the
// answer was produced. No prompt or answer text is stored.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/agent"
)

// Record is one resolution's usage.
type Record struct {
	ID           string
	Timestamp    time.Time
	RequestID    string
	Model        string
	Provider     string // "gemini", "openai", "ollama"
	Iterations   int
	InputTokens  int
	OutputTokens int
	Outcome      string // agent.OutcomeKind
	Exhausted    bool
}

// Summary holds aggregated totals.
type Summary struct {
	TotalRecords      int   `json:"records"`
	TotalIterations   int64 `json:"iterations"`
	TotalInputTokens  int64 `json:"input_tokens"`
	TotalOutputTokens int64 `json:"output_tokens"`
	TotalExhausted    int   `json:"exhausted"`
}

// Store is an append-only SQLite store for usage records. All public
// methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the ledger database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open usage database: %w", err)
	}
	s, err := NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database, creating the schema if needed.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate usage schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_records (
		id            TEXT PRIMARY KEY,
		timestamp     TEXT NOT NULL,
		request_id    TEXT NOT NULL,
		model         TEXT NOT NULL,
		provider      TEXT NOT NULL,
		iterations    INTEGER NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		outcome       TEXT NOT NULL,
		exhausted     INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON usage_records(timestamp);
	CREATE INDEX IF NOT EXISTS idx_usage_outcome ON usage_records(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists a usage record. If rec.ID is empty, a UUIDv7 is
// generated.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate usage record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records
			(id, timestamp, request_id, model, provider, iterations,
			 input_tokens, output_tokens, outcome, exhausted)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.RequestID,
		rec.Model,
		rec.Provider,
		rec.Iterations,
		rec.InputTokens,
		rec.OutputTokens,
		rec.Outcome,
		rec.Exhausted,
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// ObserveResolution records a finished resolution. Failures are logged,
// never returned to the request.
func (s *Store) ObserveResolution(ctx context.Context, r agent.Resolution) {
	rec := FromResolution(r)
	if err := s.Record(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("usage record failed", "request_id", r.RequestID, "error", err)
	}
}

// FromResolution converts a resolution to a usage record.
func FromResolution(r agent.Resolution) Record {
	rec := Record{
		Timestamp: r.Started,
		RequestID: r.RequestID,
		Model:     r.Model,
		Provider:  r.Provider,
		Outcome:   string(r.Outcome.Kind),
	}
	if res := r.Result; res != nil {
		rec.Iterations = res.Iterations
		rec.InputTokens = res.InputTokens
		rec.OutputTokens = res.OutputTokens
		rec.Exhausted = res.Exhausted
	}
	return rec
}

const summaryColumns = `COUNT(*), COALESCE(SUM(iterations), 0), COALESCE(SUM(input_tokens), 0),
	COALESCE(SUM(output_tokens), 0), COALESCE(SUM(exhausted), 0)`

func (sum *Summary) scanFields() []any {
	return []any{&sum.TotalRecords, &sum.TotalIterations, &sum.TotalInputTokens, &sum.TotalOutputTokens, &sum.TotalExhausted}
}

// Summary returns aggregated totals for records within [start, end).
func (s *Store) Summary(start, end time.Time) (*Summary, error) {
	row := s.db.QueryRow(
		`SELECT `+summaryColumns+`
		 FROM usage_records
		 WHERE timestamp >= ? AND timestamp < ?`,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)

	var sum Summary
	if err := row.Scan(sum.scanFields()...); err != nil {
		return nil, fmt.Errorf("query usage summary: %w", err)
	}
	return &sum, nil
}

// SummaryByOutcome returns per-outcome totals for records within [start, end).
func (s *Store) SummaryByOutcome(start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy("outcome", start, end)
}

// SummaryByModel returns per-model totals for records within [start, end).
func (s *Store) SummaryByModel(start, end time.Time) (map[string]*Summary, error) {
	return s.summaryGroupedBy("model", start, end)
}

func (s *Store) summaryGroupedBy(column string, start, end time.Time) (map[string]*Summary, error) {
	// column comes from the methods above, never from input.
	query := fmt.Sprintf(
		`SELECT COALESCE(%s, ''), %s
		 FROM usage_records
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY %s`,
		column, summaryColumns, column,
	)

	rows, err := s.db.Query(query,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query usage by %s: %w", column, err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var key string
		var sum Summary
		if err := rows.Scan(append([]any{&key}, sum.scanFields()...)...); err != nil {
			return nil, fmt.Errorf("scan usage by %s: %w", column, err)
		}
		result[key] = &sum
	}
	return result, rows.Err()
}
