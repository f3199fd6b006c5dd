package groups

import (
	"context"

	"github.com/parleyhq/parley/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, group *models.Group) (*models.Group, error)
	GetByID(ctx context.Context, id string) (*models.Group, error)
	// List returns all groups, or only those containing memberID when it is
	// non-empty.
	List(ctx context.Context, memberID string) ([]*models.Group, error)
	// AddMember is idempotent: adding an existing member is a no-op.
	AddMember(ctx context.Context, groupID, memberID string) error
	// RemoveMember is idempotent: removing an absent member is a no-op.
	RemoveMember(ctx context.Context, groupID, memberID string) error
	Delete(ctx context.Context, id string) error
}
