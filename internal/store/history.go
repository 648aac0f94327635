package store

import (
	"context"
	"fmt"
	"time"
)

// HistoryEntry is one executed query.
type HistoryEntry struct {
	ID             int64     `json:"id"`
	QueryText      string    `json:"queryText"`
	ConnectionName string    `json:"connectionName"`
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
}

// AddHistory records a query run with the current UTC time.
func (s *Store) AddHistory(ctx context.Context, queryText, connectionName, status string) error {
	ts := s.now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO query_history (query_text, connection_name, status, timestamp) VALUES (?, ?, ?, ?)",
		queryText, connectionName, status, ts,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// History returns entries newest first. A limit <= 0 returns everything.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := "SELECT id, query_text, connection_name, status, timestamp FROM query_history ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []HistoryEntry{}
	for rows.Next() {
		var (
			e  HistoryEntry
			ts string
		)
		if err := rows.Scan(&e.ID, &e.QueryText, &e.ConnectionName, &e.Status, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		// Unparseable timestamps are kept as the zero time
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClearHistory deletes every history entry.
func (s *Store) ClearHistory(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM query_history"); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
