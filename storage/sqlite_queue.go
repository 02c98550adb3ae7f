package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/will-x86/brokenlinks"
)

type SQLiteQueue struct {
	db     *sql.DB
	dedupe bool
}

type SQLiteQueueOptions struct {
	QueueOptions
	DBPath string
}

// NewSQLiteQueue opens (or creates) the database at opts.DBPath and empties it: crawl state
// never carries over from an earlier run.
func NewSQLiteQueue(opts SQLiteQueueOptions) (*SQLiteQueue, error) {
	if opts.DBPath == "" {
		opts.DBPath = "./.brokenlinks/frontier.db"
	}

	dbDir := filepath.Dir(opts.DBPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", opts.DBPath+"?_journal_mode=WAL&_busy_timeout=10000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	q := &SQLiteQueue{
		db:     db,
		dedupe: opts.DedupeOnEnqueue,
	}

	if err := q.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	if err := q.reset(); err != nil {
		db.Close()
		return nil, err
	}

	return q, nil
}

func (q *SQLiteQueue) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS frontier (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		url TEXT NOT NULL,
		added_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS visited (
		url TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS providers (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		referrer TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_frontier_url ON frontier(url);
	CREATE INDEX IF NOT EXISTS idx_visited_status ON visited(status);
	CREATE INDEX IF NOT EXISTS idx_providers_target ON providers(target);
	`

	_, err := q.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

func (q *SQLiteQueue) reset() error {
	for _, table := range []string{"frontier", "visited", "providers"} {
		if _, err := q.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

func (q *SQLiteQueue) Add(ctx context.Context, url string) (crawler.Admission, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return crawler.Rejected, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var visited bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM visited WHERE url = ?)",
		url,
	).Scan(&visited)
	if err != nil {
		return crawler.Rejected, fmt.Errorf("failed to check visited: %w", err)
	}
	if visited {
		return crawler.AlreadyVisited, nil
	}

	if q.dedupe {
		var queued bool
		err = tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM frontier WHERE url = ?)",
			url,
		).Scan(&queued)
		if err != nil {
			return crawler.Rejected, fmt.Errorf("failed to check frontier: %w", err)
		}
		if queued {
			return crawler.AlreadyQueued, nil
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO frontier (id, url, added_at) VALUES (?, ?, ?)`,
		generateID(url), url, time.Now(),
	)
	if err != nil {
		return crawler.Rejected, fmt.Errorf("failed to insert request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return crawler.Rejected, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return crawler.Admitted, nil
}

func (q *SQLiteQueue) FetchNext(ctx context.Context) (*Request, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var req Request
	err = tx.QueryRowContext(ctx,
		`SELECT seq, id, url, added_at
		 FROM frontier
		 ORDER BY seq ASC
		 LIMIT 1`,
	).Scan(&req.Seq, &req.ID, &req.URL, &req.AddedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM frontier WHERE seq = ?", req.Seq); err != nil {
		return nil, fmt.Errorf("failed to pop request: %w", err)
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO visited (url, status, updated_at) VALUES (?, ?, ?)`,
		req.URL, StatusProcessing, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark visited: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to mark visited: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	req.UpdatedAt = now
	req.Status = StatusProcessing
	if inserted == 0 {
		req.Revisit = true
		req.Status = StatusCompleted
	}
	return &req, nil
}

func (q *SQLiteQueue) MarkHandled(req *Request) error {
	if req.Revisit {
		return nil
	}

	_, err := q.db.Exec(
		`UPDATE visited
		 SET status = ?, updated_at = ?
		 WHERE url = ?`,
		StatusCompleted, time.Now(), req.URL,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	req.Status = StatusCompleted
	return nil
}

func (q *SQLiteQueue) IsEmpty() (bool, error) {
	n, err := q.Len()
	return n == 0, err
}

func (q *SQLiteQueue) Len() (int, error) {
	var count int
	err := q.db.QueryRow("SELECT COUNT(*) FROM frontier").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}
	return count, nil
}

func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}

func (q *SQLiteQueue) GetStats() (map[string]int, error) {
	pending, err := q.Len()
	if err != nil {
		return nil, err
	}

	stats := map[string]int{
		string(StatusPending):    pending,
		string(StatusProcessing): 0,
		string(StatusCompleted):  0,
	}

	rows, err := q.db.Query(
		`SELECT status, COUNT(*) as count
		 FROM visited
		 GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}

	return stats, rows.Err()
}

// ProviderIndex returns an index stored alongside the frontier in the same database.
func (q *SQLiteQueue) ProviderIndex() ProviderIndex {
	return &sqliteProviderIndex{db: q.db}
}
