package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/server/config"
	"github.com/parleyhq/parley/internal/server/conversation"
	"github.com/parleyhq/parley/internal/server/repositories/repomanager"
)

// TypingEvent is pushed to subscribers of a conversation when a member
// starts or stops composing.
type TypingEvent struct {
	Type     string `json:"type"`
	MemberID string `json:"memberId"`
	Typing   bool   `json:"typing"`
}

// TypingService manages ephemeral typing signals. A signal is live only
// while it keeps being refreshed: anything older than the TTL is treated as
// stopped, so a crashed client cannot stay "typing" forever.
type TypingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   EventPublisher
	ttl         time.Duration
}

func NewTypingService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, publisher EventPublisher) *TypingService {
	return &TypingService{db: db, repomanager: m, publisher: publisher, ttl: cfg.TypingTTL}
}

// Start records (or refreshes) the member's typing signal.
func (s *TypingService) Start(ctx context.Context, key, memberID string) error {
	memberID = conversation.Normalize(memberID)
	if err := validateTypingInput(key, memberID); err != nil {
		return err
	}

	if err := s.repomanager.Typing(s.db).Upsert(ctx, key, memberID); err != nil {
		return fmt.Errorf("%w: recording typing signal: %v", common.ErrInternal, err)
	}
	if s.publisher != nil {
		s.publisher.Publish(key, TypingEvent{Type: "typing", MemberID: memberID, Typing: true})
	}
	return nil
}

// Stop drops the member's typing signal. Stopping an absent signal is a
// no-op.
func (s *TypingService) Stop(ctx context.Context, key, memberID string) error {
	memberID = conversation.Normalize(memberID)
	if err := validateTypingInput(key, memberID); err != nil {
		return err
	}

	if err := s.repomanager.Typing(s.db).Delete(ctx, key, memberID); err != nil {
		return fmt.Errorf("%w: clearing typing signal: %v", common.ErrInternal, err)
	}
	if s.publisher != nil {
		s.publisher.Publish(key, TypingEvent{Type: "typing", MemberID: memberID, Typing: false})
	}
	return nil
}

// Active lists members with a fresh signal in the conversation.
func (s *TypingService) Active(ctx context.Context, key string) ([]string, error) {
	if _, err := conversation.Parse(key); err != nil {
		return nil, fmt.Errorf("%w: malformed chat id", common.ErrValidation)
	}

	typers, err := s.repomanager.Typing(s.db).ListActive(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: listing typing signals: %v", common.ErrInternal, err)
	}
	return typers, nil
}

func validateTypingInput(key, memberID string) error {
	if memberID == "" {
		return fmt.Errorf("%w: member is required", common.ErrValidation)
	}
	if _, err := conversation.Parse(key); err != nil {
		return fmt.Errorf("%w: malformed chat id", common.ErrValidation)
	}
	return nil
}
