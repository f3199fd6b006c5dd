package typing

import (
	"context"
	"time"
)

type Repository interface {
	// Upsert records (or refreshes) the member's typing signal.
	Upsert(ctx context.Context, conversationKey, memberID string) error
	// Delete drops the member's signal; absent rows are a no-op.
	Delete(ctx context.Context, conversationKey, memberID string) error
	// ListActive returns member ids with a signal fresher than ttl. Stale
	// rows for the conversation are deleted in passing.
	ListActive(ctx context.Context, conversationKey string, ttl time.Duration) ([]string, error)
}
