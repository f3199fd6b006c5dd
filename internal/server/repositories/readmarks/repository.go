package readmarks

import (
	"context"

	"github.com/parleyhq/parley/internal/server/models"
)

type Repository interface {
	// Upsert moves the member's read position in the conversation to now.
	Upsert(ctx context.Context, memberID, conversationKey string) error
	// UnreadCounts aggregates, per conversation, messages newer than the
	// member's read mark: direct messages addressed to them plus group
	// messages in their groups sent by somebody else.
	UnreadCounts(ctx context.Context, memberID string) ([]*models.UnreadCount, error)
}
