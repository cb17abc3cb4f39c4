package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Ledger is the persistent deduplication record: processed post ids,
// author comment recency, and generation failure counts. Single-writer;
// all operations are idempotent.
type Ledger struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the ledger database.
func Open(dbPath string, logger *zap.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	l := &Ledger{
		db:     db,
		logger: logger,
	}

	if err := l.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger database: %w", err)
	}

	logger.Info("Deduplication ledger opened", zap.String("db_path", dbPath))

	return l, nil
}

// migrate creates tables
func (l *Ledger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS processed_posts (
		post_id TEXT PRIMARY KEY,
		processed_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS author_comments (
		author_id TEXT PRIMARY KEY,
		last_commented_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS generation_failures (
		post_id TEXT PRIMARY KEY,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_failed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_processed_at ON processed_posts(processed_at);
	CREATE INDEX IF NOT EXISTS idx_last_commented_at ON author_comments(last_commented_at);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// IsKnownPost reports whether the post id was already processed.
func (l *Ledger) IsKnownPost(postID string) (bool, error) {
	var exists int
	err := l.db.QueryRow(
		`SELECT COUNT(1) FROM processed_posts WHERE post_id = ?`, postID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query processed posts: %w", err)
	}
	return exists > 0, nil
}

// MarkProcessed records a post id as processed. Marking the same id
// again is a no-op.
func (l *Ledger) MarkProcessed(postID string) error {
	_, err := l.db.Exec(
		`INSERT OR IGNORE INTO processed_posts (post_id, processed_at) VALUES (?, ?)`,
		postID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark post processed: %w", err)
	}
	return nil
}

// AuthorCommentedRecently reports whether a comment on the author was
// recorded within the given window.
func (l *Ledger) AuthorCommentedRecently(authorID string, window time.Duration) (bool, error) {
	var last time.Time
	err := l.db.QueryRow(
		`SELECT last_commented_at FROM author_comments WHERE author_id = ?`, authorID,
	).Scan(&last)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query author comments: %w", err)
	}
	return time.Since(last) < window, nil
}

// RecordAuthorComment stores the timestamp of the most recent comment on
// an author, overwriting any previous value.
func (l *Ledger) RecordAuthorComment(authorID string, at time.Time) error {
	_, err := l.db.Exec(
		`INSERT INTO author_comments (author_id, last_commented_at) VALUES (?, ?)
		 ON CONFLICT(author_id) DO UPDATE SET last_commented_at = excluded.last_commented_at`,
		authorID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record author comment: %w", err)
	}
	return nil
}

// RecordFailure bumps the generation failure count for a post. A post
// that keeps failing is eventually dropped from candidacy (see
// FailureCount) instead of being retried forever.
func (l *Ledger) RecordFailure(postID string) error {
	_, err := l.db.Exec(
		`INSERT INTO generation_failures (post_id, attempts, last_failed_at) VALUES (?, 1, ?)
		 ON CONFLICT(post_id) DO UPDATE SET attempts = attempts + 1, last_failed_at = excluded.last_failed_at`,
		postID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record generation failure: %w", err)
	}
	return nil
}

// FailureCount returns how many generation attempts have failed for a
// post id. Zero for unknown posts.
func (l *Ledger) FailureCount(postID string) (int, error) {
	var attempts int
	err := l.db.QueryRow(
		`SELECT attempts FROM generation_failures WHERE post_id = ?`, postID,
	).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query generation failures: %w", err)
	}
	return attempts, nil
}
