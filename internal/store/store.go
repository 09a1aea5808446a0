// Package store persists logq state in a local sqlite database: the query
// history, settings such as the workspace selection, and the token cache.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"logq/internal/auth"
	"logq/internal/history"
	"logq/internal/workspace"
)

const selectedWorkspacesKey = "selectedWorkspaces"

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

var _ auth.TokenCache = (*Store)(nil)

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)

	s := &Store{path: path, db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS history (
			query TEXT PRIMARY KEY,
			ran_at INTEGER NOT NULL,
			workspaces TEXT NOT NULL,
			timespan TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_history_ran_at ON history(ran_at DESC);`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tokens (
			cache_key TEXT PRIMARY KEY,
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			expiry INTEGER,
			account TEXT NOT NULL DEFAULT ''
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// LoadHistory returns up to limit entries, most recent first. limit <= 0
// returns everything.
func (s *Store) LoadHistory(ctx context.Context, limit int) ([]history.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT query, ran_at, workspaces, timespan
		FROM history
		ORDER BY ran_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []history.Entry
	for rows.Next() {
		var (
			e      history.Entry
			ranAt  int64
			wsBlob string
		)
		if err := rows.Scan(&e.Query, &ranAt, &wsBlob, &e.Timespan); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.RanAt = time.Unix(0, ranAt)
		if err := json.Unmarshal([]byte(wsBlob), &e.Workspaces); err != nil {
			return nil, fmt.Errorf("decode history workspaces for %q: %w", e.Query, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

// SaveHistory upserts e by query text and prunes the table to limit rows.
func (s *Store) SaveHistory(ctx context.Context, e history.Entry, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws := e.Workspaces
	if ws == nil {
		ws = []workspace.Workspace{}
	}
	blob, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode history workspaces: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO history(query, ran_at, workspaces, timespan)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			ran_at=excluded.ran_at,
			workspaces=excluded.workspaces,
			timespan=excluded.timespan
	`, e.Query, e.RanAt.UnixNano(), string(blob), e.Timespan); err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}

	if limit > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM history WHERE query NOT IN (
				SELECT query FROM history ORDER BY ran_at DESC, rowid DESC LIMIT ?
			)
		`, limit); err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history: %w", err)
	}
	return nil
}

// ClearHistory deletes every entry and reports how many were removed.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) putSetting(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO settings(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value); err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// SelectedWorkspaces returns the persisted selection. ok is false when
// nothing was ever saved.
func (s *Store) SelectedWorkspaces(ctx context.Context) (ws []workspace.Workspace, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.setting(ctx, selectedWorkspacesKey)
	if err != nil || !ok {
		return nil, ok, err
	}
	if err := json.Unmarshal([]byte(raw), &ws); err != nil {
		return nil, false, fmt.Errorf("decode selected workspaces: %w", err)
	}
	return ws, true, nil
}

func (s *Store) SaveSelectedWorkspaces(ctx context.Context, ws []workspace.Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ws == nil {
		ws = []workspace.Workspace{}
	}
	blob, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode selected workspaces: %w", err)
	}
	return s.putSetting(ctx, selectedWorkspacesKey, string(blob))
}
