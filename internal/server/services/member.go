// Package services contains server-side business logic. This file implements
// MemberService, which handles registration, authentication with JWT
// issuance, presence heartbeats, and work schedules.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/server/auth"
	"github.com/parleyhq/parley/internal/server/config"
	"github.com/parleyhq/parley/internal/server/conversation"
	"github.com/parleyhq/parley/internal/server/models"
	"github.com/parleyhq/parley/internal/server/repositories/repomanager"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const minPasswordLength = 8

// MemberStatus is a member as presented in listings: credentials stripped,
// presence computed from the heartbeat.
type MemberStatus struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role,omitempty"`
	LastActive  time.Time `json:"lastActive"`
	Online      bool      `json:"online"`
}

// MemberService provides account and presence operations.
type MemberService struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	jwtSecret             []byte
	tokenValidityDuration time.Duration
	presenceThreshold     time.Duration

	// now is a clock seam for tests.
	now func() time.Time
}

// NewMemberService constructs a MemberService using repositories and server config.
func NewMemberService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *MemberService {
	return &MemberService{
		db:                    db,
		repomanager:           m,
		jwtSecret:             []byte(cfg.SecretKey),
		tokenValidityDuration: cfg.TokenValidityDuration,
		presenceThreshold:     cfg.PresenceThreshold,
		now:                   time.Now,
	}
}

// Register creates a member. The identifier is the email, lowercased. A
// duplicate identifier returns common.ErrAlreadyExists and leaves the
// existing record (including its password hash) untouched.
func (s *MemberService) Register(ctx context.Context, email, displayName, password string) (*models.Member, error) {
	email = conversation.Normalize(email)
	displayName = strings.TrimSpace(displayName)

	if !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", common.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLength)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing password: %v", common.ErrInternal, err)
	}

	member := &models.Member{ID: email, DisplayName: displayName, PasswordHash: hash}
	repo := s.repomanager.Members(s.db)
	created, err := repo.Create(ctx, member)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("%w: creating member: %v", common.ErrInternal, err)
	}

	created.PasswordHash = ""
	return created, nil
}

// Authenticate verifies credentials and issues a session token. Unknown
// identifier and wrong password both return common.ErrUnauthorized; a dummy
// hash comparison runs on the unknown-identifier path so the two failures
// are indistinguishable by timing as well as by response.
func (s *MemberService) Authenticate(ctx context.Context, email, password string) (string, *models.Member, error) {
	email = conversation.Normalize(email)

	repo := s.repomanager.Members(s.db)
	member, err := repo.GetByID(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			auth.CheckPasswordDummy(password)
			return "", nil, common.ErrUnauthorized
		}
		return "", nil, fmt.Errorf("%w: loading member: %v", common.ErrInternal, err)
	}

	if !auth.CheckPassword(member.PasswordHash, password) {
		return "", nil, common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(member.ID, member.DisplayName, member.Role, s.jwtSecret, s.tokenValidityDuration)
	if err != nil {
		return "", nil, fmt.Errorf("%w: signing token: %v", common.ErrInternal, err)
	}

	member.PasswordHash = ""
	return token, member, nil
}

// List returns all members with presence computed against the heartbeat
// threshold.
func (s *MemberService) List(ctx context.Context) ([]*MemberStatus, error) {
	repo := s.repomanager.Members(s.db)
	members, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing members: %v", common.ErrInternal, err)
	}

	cutoff := s.now().Add(-s.presenceThreshold)
	result := make([]*MemberStatus, 0, len(members))
	for _, m := range members {
		result = append(result, &MemberStatus{
			ID:          m.ID,
			DisplayName: m.DisplayName,
			Role:        m.Role,
			LastActive:  m.LastActive,
			Online:      m.LastActive.After(cutoff),
		})
	}
	return result, nil
}

// Heartbeat records the member as alive now.
func (s *MemberService) Heartbeat(ctx context.Context, memberID string) error {
	repo := s.repomanager.Members(s.db)
	err := repo.TouchLastActive(ctx, conversation.Normalize(memberID))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("%w: recording heartbeat: %v", common.ErrInternal, err)
	}
	return nil
}

// WorkSchedule returns the member's stored schedule document, which may be
// JSON null when none was ever stored.
func (s *MemberService) WorkSchedule(ctx context.Context, memberID string) (json.RawMessage, error) {
	repo := s.repomanager.Members(s.db)
	schedule, err := repo.GetWorkSchedule(ctx, conversation.Normalize(memberID))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: loading work schedule: %v", common.ErrInternal, err)
	}
	return schedule, nil
}

// SetWorkSchedule replaces the member's schedule document.
func (s *MemberService) SetWorkSchedule(ctx context.Context, memberID string, schedule json.RawMessage) error {
	if len(schedule) == 0 || !json.Valid(schedule) {
		return fmt.Errorf("%w: schedule must be valid JSON", common.ErrValidation)
	}
	repo := s.repomanager.Members(s.db)
	err := repo.SetWorkSchedule(ctx, conversation.Normalize(memberID), schedule)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("%w: storing work schedule: %v", common.ErrInternal, err)
	}
	return nil
}
