// Package typing provides the PostgreSQL-backed repository for ephemeral
// typing signals. Signals carry no explicit expiry column; freshness is
// evaluated against a TTL at query time, and stale rows are reaped when a
// conversation is listed, so a crashed client never leaves a permanently
// stuck indicator.
package typing

import (
	"context"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, conversationKey, memberID string) error {
	query := `
		INSERT INTO typing_signals (conversation_key, member_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (conversation_key, member_id)
		DO UPDATE SET updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, conversationKey, memberID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, conversationKey, memberID string) error {
	query := `DELETE FROM typing_signals WHERE conversation_key = $1 AND member_id = $2`
	if _, err := r.db.ExecContext(ctx, query, conversationKey, memberID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListActive(ctx context.Context, conversationKey string, ttl time.Duration) ([]string, error) {
	reap := `DELETE FROM typing_signals WHERE conversation_key = $1 AND updated_at < now() - $2::interval`
	if _, err := r.db.ExecContext(ctx, reap, conversationKey, ttl.String()); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	query := `
		SELECT member_id FROM typing_signals
		WHERE conversation_key = $1 AND updated_at >= now() - $2::interval
		ORDER BY member_id
	`
	rows, err := r.db.QueryContext(ctx, query, conversationKey, ttl.String())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
