package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/carsearch/internal/store"
)

// AllowlistSource keeps indexable paths in a single-column table.
type AllowlistSource struct {
	db    DB
	table string
}

// NewAllowlistSource builds an AllowlistSource. An empty table selects
// seo_allowlist.
func NewAllowlistSource(db DB, table string) (*AllowlistSource, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	name, err := tableName(table, "seo_allowlist")
	if err != nil {
		return nil, err
	}
	return &AllowlistSource{db: db, table: name}, nil
}

// ListPaths returns every path in lexical order.
func (s *AllowlistSource) ListPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, fmt.Sprintf(`SELECT path FROM %s ORDER BY path`, s.table))
	if err != nil {
		return nil, fmt.Errorf("select allowlist: %w", err)
	}
	paths, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan allowlist: %w", err)
	}
	return paths, nil
}

// AddPath inserts path; an existing path is left untouched.
func (s *AllowlistSource) AddPath(ctx context.Context, path string) error {
	query := fmt.Sprintf(`INSERT INTO %s (path) VALUES ($1) ON CONFLICT (path) DO NOTHING`, s.table)
	if _, err := s.db.Exec(ctx, query, path); err != nil {
		return fmt.Errorf("insert allowlist path: %w", err)
	}
	return nil
}

// RemovePath deletes path or returns store.ErrNotFound.
func (s *AllowlistSource) RemovePath(ctx context.Context, path string) error {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE path = $1`, s.table), path)
	if err != nil {
		return fmt.Errorf("delete allowlist path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
