package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/carsearch/internal/store"
)

// StateStore persists hysteresis state, one row per canonical path.
type StateStore struct {
	db    DB
	table string
}

// NewStateStore builds a StateStore over db. An empty table selects seo_state.
func NewStateStore(db DB, table string) (*StateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	name, err := tableName(table, "seo_state")
	if err != nil {
		return nil, err
	}
	return &StateStore{db: db, table: name}, nil
}

// GetState loads the row for key or returns store.ErrNotFound.
func (s *StateStore) GetState(ctx context.Context, key string) (store.HysteresisState, error) {
	query := fmt.Sprintf(`
SELECT decision, consecutive_above_on, consecutive_below_off, last_evaluated_at
FROM %s
WHERE key = $1`, s.table)

	var (
		st       store.HysteresisState
		decision string
	)
	err := s.db.QueryRow(ctx, query, key).Scan(&decision, &st.ConsecutiveAboveOn, &st.ConsecutiveBelowOff, &st.LastEvaluatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.HysteresisState{}, store.ErrNotFound
	}
	if err != nil {
		return store.HysteresisState{}, fmt.Errorf("select state: %w", err)
	}
	st.Decision = store.Decision(decision)
	return st, nil
}

// SetState upserts the row for key.
func (s *StateStore) SetState(ctx context.Context, key string, st store.HysteresisState) error {
	query := fmt.Sprintf(`
INSERT INTO %s (key, decision, consecutive_above_on, consecutive_below_off, last_evaluated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key) DO UPDATE SET
	decision = EXCLUDED.decision,
	consecutive_above_on = EXCLUDED.consecutive_above_on,
	consecutive_below_off = EXCLUDED.consecutive_below_off,
	last_evaluated_at = EXCLUDED.last_evaluated_at`, s.table)

	if _, err := s.db.Exec(ctx, query, key, string(st.Decision), st.ConsecutiveAboveOn, st.ConsecutiveBelowOff, st.LastEvaluatedAt); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}
