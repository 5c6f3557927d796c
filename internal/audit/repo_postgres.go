package audit

import (
	"context"
	"database/sql"
	"fmt"

	"crm-bridge/pkg/utils"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS crm_audit_events (
	id          UUID PRIMARY KEY,
	type        TEXT NOT NULL,
	object_type TEXT NOT NULL,
	object_id   TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL DEFAULT '',
	region      TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	message     TEXT NOT NULL DEFAULT '',
	metadata    JSONB,
	created_at  TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS crm_audit_events_object_idx
	ON crm_audit_events (object_type, object_id, created_at)`,
}

const insertEvent = `
INSERT INTO crm_audit_events
	(id, type, object_type, object_id, action, region, request_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// PostgresRepo stores events in a single insert-only table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// EnsureSchema creates the events table and its lookup index if they do not exist.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	err := utils.WithTx(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	var metadata any
	if e.Metadata != "" {
		metadata = e.Metadata
	}
	_, err := r.db.ExecContext(ctx, insertEvent,
		e.ID, string(e.Type), e.ObjectType, e.ObjectID, e.Action, e.Region,
		e.RequestID, e.Message, metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: append %s: %w", e.Type, err)
	}
	return nil
}
