package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/server/config"
	"github.com/parleyhq/parley/internal/server/conversation"
	"github.com/parleyhq/parley/internal/server/models"
	"github.com/parleyhq/parley/internal/server/repositories/repomanager"
)

// GroupService manages group lifecycle: creation, membership mutation,
// listing and deletion.
type GroupService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewGroupService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *GroupService {
	return &GroupService{db: db, repomanager: m}
}

// Create builds a group from a name and an initial member list. Member ids
// are normalized and de-duplicated; the creator is always part of the set.
func (s *GroupService) Create(ctx context.Context, name, creatorID string, memberIDs []string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	creatorID = conversation.Normalize(creatorID)

	if name == "" {
		return nil, fmt.Errorf("%w: group name is required", common.ErrValidation)
	}
	if creatorID == "" {
		return nil, fmt.Errorf("%w: creator is required", common.ErrValidation)
	}

	seen := map[string]struct{}{creatorID: {}}
	members := []string{creatorID}
	for _, id := range memberIDs {
		id = conversation.Normalize(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	group := &models.Group{
		ID:        uuid.NewString(),
		Name:      name,
		CreatorID: creatorID,
		Members:   members,
	}

	repo := s.repomanager.Groups(s.db)
	created, err := repo.Create(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("%w: creating group: %v", common.ErrInternal, err)
	}
	return created, nil
}

// Get returns one group by id.
func (s *GroupService) Get(ctx context.Context, groupID string) (*models.Group, error) {
	repo := s.repomanager.Groups(s.db)
	group, err := repo.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: loading group: %v", common.ErrInternal, err)
	}
	return group, nil
}

// List returns all groups, or only those containing memberID when it is
// non-empty. The membership test is performed on normalized ids.
func (s *GroupService) List(ctx context.Context, memberID string) ([]*models.Group, error) {
	repo := s.repomanager.Groups(s.db)
	result, err := repo.List(ctx, conversation.Normalize(memberID))
	if err != nil {
		return nil, fmt.Errorf("%w: listing groups: %v", common.ErrInternal, err)
	}
	return result, nil
}

// AddMember adds a member to the group. Adding an existing member is a
// no-op. The mutation is a single atomic statement, so concurrent adds
// cannot lose each other.
func (s *GroupService) AddMember(ctx context.Context, groupID, memberID string) error {
	memberID = conversation.Normalize(memberID)
	if memberID == "" {
		return fmt.Errorf("%w: member id is required", common.ErrValidation)
	}
	return s.mutateMembership(ctx, groupID, memberID, s.repomanager.Groups(s.db).AddMember)
}

// RemoveMember removes a member from the group. Removing an absent member is
// a no-op.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, memberID string) error {
	memberID = conversation.Normalize(memberID)
	if memberID == "" {
		return fmt.Errorf("%w: member id is required", common.ErrValidation)
	}
	return s.mutateMembership(ctx, groupID, memberID, s.repomanager.Groups(s.db).RemoveMember)
}

// Delete removes the group unconditionally.
func (s *GroupService) Delete(ctx context.Context, groupID string) error {
	repo := s.repomanager.Groups(s.db)
	err := repo.Delete(ctx, groupID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("%w: deleting group: %v", common.ErrInternal, err)
	}
	return nil
}

func (s *GroupService) mutateMembership(ctx context.Context, groupID, memberID string, op func(context.Context, string, string) error) error {
	if err := op(ctx, groupID, memberID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("%w: mutating group membership: %v", common.ErrInternal, err)
	}
	return nil
}
