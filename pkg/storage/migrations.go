package storage

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

// CreateGINIndexes creates full-text GIN indexes that ent's schema DSL
// has no first-class representation for, same hook point as the
// teacher's pkg/database/migrations.go.
func CreateGINIndexes(ctx context.Context, drv *entsql.Driver) error {
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS episodic_events_raw_text_gin
			ON episodic_events USING gin(to_tsvector('english', raw_text))`,
		`CREATE INDEX IF NOT EXISTS heuristics_condition_text_gin
			ON heuristics USING gin(to_tsvector('english', condition_text))`,
	}
	for _, stmt := range stmts {
		if _, err := drv.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create gin index: %w", err)
		}
	}
	return nil
}
