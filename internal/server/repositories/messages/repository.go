package messages

import (
	"context"
	"time"

	"github.com/parleyhq/parley/internal/server/models"
)

// Cursor is a keyset-pagination position: the (created_at, id) pair of the
// last message already delivered.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type Repository interface {
	Create(ctx context.Context, message *models.Message) (*models.Message, error)
	// ListByConversation returns up to limit messages for the conversation
	// key, ascending by (created_at, id), starting after the cursor when one
	// is given.
	ListByConversation(ctx context.Context, key string, limit int, after *Cursor) ([]*models.Message, error)
	// ListAll is the unscoped administrative variant of ListByConversation.
	ListAll(ctx context.Context, limit int, after *Cursor) ([]*models.Message, error)
}
