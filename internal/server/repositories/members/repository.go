package members

import (
	"context"

	"github.com/parleyhq/parley/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, member *models.Member) (*models.Member, error)
	GetByID(ctx context.Context, id string) (*models.Member, error)
	List(ctx context.Context) ([]*models.Member, error)
	TouchLastActive(ctx context.Context, id string) error
	GetWorkSchedule(ctx context.Context, id string) ([]byte, error)
	SetWorkSchedule(ctx context.Context, id string, schedule []byte) error
}
