package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Snippet is a named, reusable query.
type Snippet struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// SnippetInput holds the editable fields of a snippet.
type SnippetInput struct {
	Name        string
	Description string
	Content     string
}

func (in SnippetInput) validate() error {
	if in.Name == "" {
		return fmt.Errorf("snippet name is required")
	}
	if in.Content == "" {
		return fmt.Errorf("snippet content is required")
	}
	return nil
}

// CreateSnippet inserts a snippet and returns its ID.
func (s *Store) CreateSnippet(ctx context.Context, in SnippetInput) (int64, error) {
	if err := in.validate(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO snippets (name, description, content) VALUES (?, ?, ?)",
		in.Name, in.Description, in.Content,
	)
	if err != nil {
		return 0, fmt.Errorf("insert snippet: %w", err)
	}
	return res.LastInsertId()
}

// Snippets returns all snippets ordered by name.
func (s *Store) Snippets(ctx context.Context) ([]Snippet, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, description, content FROM snippets ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("query snippets: %w", err)
	}
	defer rows.Close()

	snippets := []Snippet{}
	for rows.Next() {
		var (
			sn   Snippet
			desc sql.NullString
		)
		if err := rows.Scan(&sn.ID, &sn.Name, &desc, &sn.Content); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		sn.Description = desc.String
		snippets = append(snippets, sn)
	}
	return snippets, rows.Err()
}

// Snippet returns one snippet by ID.
func (s *Store) Snippet(ctx context.Context, id int64) (Snippet, error) {
	var (
		sn   Snippet
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, content FROM snippets WHERE id = ?", id,
	).Scan(&sn.ID, &sn.Name, &desc, &sn.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return Snippet{}, fmt.Errorf("%w: snippet %d", ErrNotFound, id)
	}
	if err != nil {
		return Snippet{}, fmt.Errorf("query snippet: %w", err)
	}
	sn.Description = desc.String
	return sn, nil
}

// SnippetByName returns the first snippet with the given name.
func (s *Store) SnippetByName(ctx context.Context, name string) (Snippet, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM snippets WHERE name = ? ORDER BY id LIMIT 1", name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Snippet{}, fmt.Errorf("%w: snippet %q", ErrNotFound, name)
	}
	if err != nil {
		return Snippet{}, fmt.Errorf("query snippet: %w", err)
	}
	return s.Snippet(ctx, id)
}

// UpdateSnippet replaces the fields of an existing snippet.
func (s *Store) UpdateSnippet(ctx context.Context, id int64, in SnippetInput) error {
	if err := in.validate(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE snippets SET name = ?, description = ?, content = ? WHERE id = ?",
		in.Name, in.Description, in.Content, id,
	)
	if err != nil {
		return fmt.Errorf("update snippet: %w", err)
	}
	return requireOneRow(res, id)
}

// DeleteSnippet removes a snippet.
func (s *Store) DeleteSnippet(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snippets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	return requireOneRow(res, id)
}

func requireOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: snippet %d", ErrNotFound, id)
	}
	return nil
}
