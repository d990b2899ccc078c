package scores

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/snakegame/game/service"
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
    id          TEXT PRIMARY KEY,
    session_id  TEXT NOT NULL,
    level_id    TEXT NOT NULL,
    score       INTEGER NOT NULL,
    die_reason  TEXT NOT NULL,
    ticks       INTEGER NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS results_level_score ON results (level_id, score DESC, ticks ASC);
`

// Fixed width so finished_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps results in a SQLite database file
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and creates if missing) the database at path and
// applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// Ensure directory exists for ./data/scores.db, etc.
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Info().Str("path", path).Msg("Score database ready")
	return &SQLiteStore{db: db}, nil
}

// Record inserts a finished game. Recording the same id twice is ignored.
func (s *SQLiteStore) Record(ctx context.Context, r service.Result) error {
	r = prepare(r)
	_, err := s.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO results
            (id, session_id, level_id, score, die_reason, ticks, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.LevelID, r.Score, r.DieReason, r.Ticks, r.FinishedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Top returns the best results for levelID, or across all levels when
// levelID is empty
func (s *SQLiteStore) Top(ctx context.Context, levelID string, limit int) ([]service.Result, error) {
	if limit <= 0 {
		limit = service.DefaultLeaderboardLimit
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, session_id, level_id, score, die_reason, ticks, finished_at
        FROM results
        WHERE ? = '' OR level_id = ?
        ORDER BY score DESC, ticks ASC, finished_at ASC
        LIMIT ?`, levelID, levelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]service.Result, 0, limit)
	for rows.Next() {
		var r service.Result
		var finished string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.LevelID, &r.Score, &r.DieReason, &r.Ticks, &finished); err != nil {
			return nil, err
		}
		if t, err := time.Parse(timeLayout, finished); err == nil {
			r.FinishedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
