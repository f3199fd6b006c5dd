// Package readmarks provides the PostgreSQL-backed repository for read
// positions and the unread-count aggregate.
package readmarks

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/internal/dbx"
	"github.com/parleyhq/parley/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, memberID, conversationKey string) error {
	query := `
		INSERT INTO read_marks (member_id, conversation_key, last_read_at)
		VALUES ($1, $2, now())
		ON CONFLICT (member_id, conversation_key)
		DO UPDATE SET last_read_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, memberID, conversationKey); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UnreadCounts(ctx context.Context, memberID string) ([]*models.UnreadCount, error) {
	query := `
		SELECT conversation_key, COUNT(*) AS unread FROM (
			SELECT m.conversation_key
			FROM messages m
			LEFT JOIN read_marks rm
				ON rm.member_id = $1 AND rm.conversation_key = m.conversation_key
			WHERE m.recipient_id = $1
			  AND m.created_at > COALESCE(rm.last_read_at, 'epoch'::timestamptz)

			UNION ALL

			SELECT m.conversation_key
			FROM messages m
			JOIN groups g ON g.id = m.group_id
			LEFT JOIN read_marks rm
				ON rm.member_id = $1 AND rm.conversation_key = m.conversation_key
			WHERE g.members ? $1
			  AND m.sender_id <> $1
			  AND m.created_at > COALESCE(rm.last_read_at, 'epoch'::timestamptz)
		) unread_messages
		GROUP BY conversation_key
		ORDER BY conversation_key
	`
	rows, err := r.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.UnreadCount
	for rows.Next() {
		var item models.UnreadCount
		if err := rows.Scan(&item.ConversationKey, &item.Count); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
