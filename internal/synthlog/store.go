package synthlog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/avstack/gst-coquitts/internal/config"
	_ "modernc.org/sqlite"
)

// Outcome values recorded per processed utterance.
const (
	OutcomeSynthesized = "synthesized"
	OutcomeDropped     = "dropped" // soft synthesis failure, unit discarded
	OutcomeError       = "error"   // flow or fatal configuration error
)

// Entry is one processed text unit.
type Entry struct {
	ID         int64
	SessionID  string
	TextBytes  int
	Samples    int
	SampleRate int
	Outcome    string
	Detail     string
	ElapsedMS  int64
	CreatedAt  time.Time
}

// Store keeps a SQLite-backed history of synthesis results.
type Store struct {
	db    *sql.DB
	cfg   config.SynthLogConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store. A disabled config yields a no-op store.
func Open(ctx context.Context, cfg config.SynthLogConfig, log *slog.Logger) (*Store, error) {
	if !cfg.Enabled {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS utterances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    text_bytes INTEGER NOT NULL,
    samples INTEGER NOT NULL,
    sample_rate INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    detail TEXT,
    elapsed_ms INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_utterances_session ON utterances(session_id, id);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("init synth log schema: %w", err)
	}
	return nil
}

// Append records one processed utterance and prunes oldest rows past the
// configured limit.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO utterances (session_id, text_bytes, samples, sample_rate, outcome, detail, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.TextBytes, e.Samples, e.SampleRate, e.Outcome, e.Detail, e.ElapsedMS, s.clock().UTC())
	if err != nil {
		return fmt.Errorf("append utterance: %w", err)
	}
	return s.prune(ctx)
}

func (s *Store) prune(ctx context.Context) error {
	if s.cfg.MaxRows <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM utterances WHERE id NOT IN (SELECT id FROM utterances ORDER BY id DESC LIMIT ?)`,
		s.cfg.MaxRows)
	if err != nil {
		return fmt.Errorf("prune utterances: %w", err)
	}
	return nil
}

// Recent returns up to limit newest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, text_bytes, samples, sample_rate, outcome, COALESCE(detail, ''), elapsed_ms, created_at
		 FROM utterances ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query utterances: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.TextBytes, &e.Samples, &e.SampleRate, &e.Outcome, &e.Detail, &e.ElapsedMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan utterance: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
