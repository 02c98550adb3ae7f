package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type sqliteProviderIndex struct {
	db *sql.DB
}

func (s *sqliteProviderIndex) Append(ctx context.Context, target, referrer string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO providers (target, referrer) VALUES (?, ?)",
		target, referrer,
	)
	if err != nil {
		return fmt.Errorf("failed to insert provider: %w", err)
	}
	return nil
}

func (s *sqliteProviderIndex) Providers(ctx context.Context, target string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT referrer FROM providers WHERE target = ? ORDER BY seq ASC",
		target,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	found := []string{}
	for rows.Next() {
		var referrer string
		if err := rows.Scan(&referrer); err != nil {
			return nil, err
		}
		found = append(found, referrer)
	}
	return found, rows.Err()
}

// Close is a no-op: the database belongs to the queue.
func (s *sqliteProviderIndex) Close() error {
	return nil
}
