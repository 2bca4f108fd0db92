package recency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/prepai-go/internal/logging"
)

// SQLiteTracker is a [Tracker] backed by a local SQLite database, so session
// windows survive a server restart within their TTL.
type SQLiteTracker struct {
	// db is the underlying database connection pool.
	db  *sql.DB
	ttl time.Duration
	log *slog.Logger
	// now is the clock, replaceable in tests.
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// DefaultDBPath returns the default path for the session database.
// It resolves to ~/.prepai/sessions.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("recency: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".prepai")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("recency: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}

// OpenSQLite opens (or creates) a SQLiteTracker at path, runs the schema
// migration and starts the expiry loop. Use ":memory:" in tests.
func OpenSQLite(path string, ttl time.Duration, log *slog.Logger) (*SQLiteTracker, error) {
	return openSQLite(path, ttl, log, time.Now)
}

func openSQLite(path string, ttl time.Duration, log *slog.Logger, now func() time.Time) (*SQLiteTracker, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.Discard()
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("recency: open %s: %w", path, err)
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// on one handle.
	db.SetMaxOpenConns(1)

	t := &SQLiteTracker{
		db:   db,
		ttl:  ttl,
		log:  log,
		now:  now,
		stop: make(chan struct{}),
	}
	if err := t.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	go t.evictLoop()
	return t, nil
}

// migrate creates the schema if it does not already exist.
func (t *SQLiteTracker) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
    session_id TEXT    PRIMARY KEY,
    last_seen  INTEGER NOT NULL  -- Unix milliseconds
);
CREATE TABLE IF NOT EXISTS session_recency (
    session_id  TEXT    NOT NULL,
    seq         INTEGER NOT NULL,
    question_id INTEGER NOT NULL,
    PRIMARY KEY (session_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_sessions_last_seen ON sessions (last_seen);
`
	if _, err := t.db.Exec(ddl); err != nil {
		return fmt.Errorf("recency: migrate: %w", err)
	}
	return nil
}

// Append inserts id and trims the session to [WindowSize] entries in a single
// transaction. An expired session is reset first.
func (t *SQLiteTracker) Append(ctx context.Context, sessionID string, id int64) error {
	if sessionID == "" {
		return ErrNoSession
	}
	now := t.now()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("recency: append: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lastSeen int64
	err = tx.QueryRowContext(ctx, `SELECT last_seen FROM sessions WHERE session_id = ?`, sessionID).Scan(&lastSeen)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("recency: append: read session: %w", err)
	case now.Sub(time.UnixMilli(lastSeen)) > t.ttl:
		if _, err := tx.ExecContext(ctx, `DELETE FROM session_recency WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("recency: append: reset expired session: %w", err)
		}
	}

	stmts := []struct {
		q    string
		args []any
	}{
		{`INSERT INTO sessions (session_id, last_seen) VALUES (?, ?)
		  ON CONFLICT (session_id) DO UPDATE SET last_seen = excluded.last_seen`,
			[]any{sessionID, now.UnixMilli()}},
		{`INSERT INTO session_recency (session_id, seq, question_id)
		  VALUES (?, COALESCE((SELECT MAX(seq) FROM session_recency WHERE session_id = ?), 0) + 1, ?)`,
			[]any{sessionID, sessionID, id}},
		{`DELETE FROM session_recency
		  WHERE session_id = ?
		    AND seq <= (SELECT MAX(seq) FROM session_recency WHERE session_id = ?) - ?`,
			[]any{sessionID, sessionID, WindowSize}},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.q, s.args...); err != nil {
			return fmt.Errorf("recency: append: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("recency: append: commit: %w", err)
	}
	return nil
}

// Window returns the session's ids oldest first, or an empty window when the
// session is unknown or expired.
func (t *SQLiteTracker) Window(ctx context.Context, sessionID string) (Window, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	cutoff := t.now().Add(-t.ttl).UnixMilli()

	rows, err := t.db.QueryContext(ctx, `
		SELECT r.question_id
		FROM session_recency r
		JOIN sessions s ON s.session_id = r.session_id
		WHERE r.session_id = ? AND s.last_seen >= ?
		ORDER BY r.seq`, sessionID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("recency: window: %w", err)
	}
	defer rows.Close()

	w := Window{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("recency: window: scan: %w", err)
		}
		w = append(w, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recency: window: %w", err)
	}
	return w, nil
}

// Touch moves last_seen forward for a session that has not expired yet.
func (t *SQLiteTracker) Touch(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	now := t.now()
	if _, err := t.db.ExecContext(ctx,
		`UPDATE sessions SET last_seen = ? WHERE session_id = ? AND last_seen >= ?`,
		now.UnixMilli(), sessionID, now.Add(-t.ttl).UnixMilli()); err != nil {
		return fmt.Errorf("recency: touch: %w", err)
	}
	return nil
}

// evictLoop removes expired sessions until Close is called.
func (t *SQLiteTracker) evictLoop() {
	ticker := time.NewTicker(sweepInterval(t.ttl))
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			if n, err := t.evict(context.Background()); err != nil {
				t.log.Warn("recency: sweep failed", slog.String("error", err.Error()))
			} else if n > 0 {
				t.log.Debug("recency: swept expired sessions", slog.Int64("sessions", n))
			}
		}
	}
}

// evict deletes sessions idle for longer than the TTL and returns how many
// were removed.
func (t *SQLiteTracker) evict(ctx context.Context) (int64, error) {
	cutoff := t.now().Add(-t.ttl).UnixMilli()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM session_recency
		WHERE session_id IN (SELECT session_id FROM sessions WHERE last_seen < ?)`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE last_seen < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

// Ping verifies the database is reachable.
func (t *SQLiteTracker) Ping(ctx context.Context) error {
	return t.db.PingContext(ctx)
}

// Close stops the expiry loop and closes the database.
func (t *SQLiteTracker) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		err = t.db.Close()
	})
	return err
}
