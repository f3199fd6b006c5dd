// Package messages provides the PostgreSQL-backed repository for the
// append-only message store.
package messages

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

// Create inserts a message. created_at is assigned by the database so that
// ordering within a conversation follows a single clock.
func (r *PostgresRepository) Create(ctx context.Context, message *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages
			(id, conversation_key, sender_id, recipient_id, group_id,
			 body, attachment_url, attachment_key, attachment_type)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		message.ID, message.ConversationKey, message.SenderID,
		message.RecipientID, message.GroupID,
		message.Body, message.AttachmentURL, message.AttachmentKey, message.AttachmentType,
	).Scan(&message.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return message, nil
}

func (r *PostgresRepository) ListByConversation(ctx context.Context, key string, limit int, after *Cursor) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_key, sender_id,
		       COALESCE(recipient_id, ''), COALESCE(group_id, ''),
		       body, attachment_url, attachment_key, attachment_type, created_at
		FROM messages
		WHERE conversation_key = $1
	`
	args := []any{key}
	if after != nil {
		query += ` AND (created_at, id) > ($2, $3)`
		args = append(args, after.CreatedAt, after.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at, id LIMIT %d`, limit)

	return r.selectMessages(ctx, query, args...)
}

func (r *PostgresRepository) ListAll(ctx context.Context, limit int, after *Cursor) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_key, sender_id,
		       COALESCE(recipient_id, ''), COALESCE(group_id, ''),
		       body, attachment_url, attachment_key, attachment_type, created_at
		FROM messages
	`
	args := []any{}
	if after != nil {
		query += ` WHERE (created_at, id) > ($1, $2)`
		args = append(args, after.CreatedAt, after.ID)
	}
	query += fmt.Sprintf(` ORDER BY created_at, id LIMIT %d`, limit)

	return r.selectMessages(ctx, query, args...)
}

func (r *PostgresRepository) selectMessages(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Message
	for rows.Next() {
		var item models.Message
		if err := rows.Scan(
			&item.ID, &item.ConversationKey, &item.SenderID,
			&item.RecipientID, &item.GroupID,
			&item.Body, &item.AttachmentURL, &item.AttachmentKey, &item.AttachmentType,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
