package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/dbx"
	"github.com/parleyhq/parley/internal/server/config"
	"github.com/parleyhq/parley/internal/server/conversation"
	"github.com/parleyhq/parley/internal/server/models"
	"github.com/parleyhq/parley/internal/server/repositories/messages"
	"github.com/parleyhq/parley/internal/server/repositories/repomanager"
)

// EventPublisher pushes advisory events to live subscribers. Publishing is
// best-effort: it never blocks and never fails the operation that triggered
// it.
type EventPublisher interface {
	Publish(conversationKey string, event any)
}

// MessageEvent is pushed to subscribers of a conversation when a message is
// persisted.
type MessageEvent struct {
	Type    string          `json:"type"`
	Message *models.Message `json:"message"`
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// SendMessageInput is the validated unit of ingestion. Exactly one of
// RecipientID / GroupID / ConversationKey must identify the conversation;
// when ConversationKey is given alongside one of the others they must agree.
type SendMessageInput struct {
	SenderID        string
	RecipientID     string
	GroupID         string
	ConversationKey string
	Body            string
	AttachmentURL   string
	AttachmentKey   string
	AttachmentType  string
}

// MessageService handles ingestion, retrieval, read marks and unread counts.
type MessageService struct {
	db                   *sql.DB
	repomanager          repomanager.RepositoryManager
	publisher            EventPublisher
	allowUnscopedHistory bool
}

func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, publisher EventPublisher) *MessageService {
	return &MessageService{
		db:                   db,
		repomanager:          m,
		publisher:            publisher,
		allowUnscopedHistory: cfg.AllowUnscopedHistory,
	}
}

// Send validates, derives the conversation key, persists the message and
// returns the stored record. The timestamp is assigned by the store; any
// client-supplied time is ignored.
func (s *MessageService) Send(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	in.SenderID = conversation.Normalize(in.SenderID)
	in.RecipientID = conversation.Normalize(in.RecipientID)
	in.GroupID = strings.TrimSpace(in.GroupID)
	in.Body = strings.TrimSpace(in.Body)

	if in.SenderID == "" {
		return nil, fmt.Errorf("%w: sender is required", common.ErrValidation)
	}
	if in.RecipientID == "" && in.GroupID == "" && in.ConversationKey == "" {
		return nil, fmt.Errorf("%w: one of recipient, group or chat id is required", common.ErrValidation)
	}
	if in.RecipientID != "" && in.GroupID != "" {
		return nil, fmt.Errorf("%w: recipient and group are mutually exclusive", common.ErrValidation)
	}
	hasAttachment := in.AttachmentKey != "" || in.AttachmentURL != ""
	if in.Body == "" && !hasAttachment {
		return nil, fmt.Errorf("%w: message needs text or an attachment", common.ErrValidation)
	}

	key, err := s.resolveKey(ctx, &in)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ID:              uuid.NewString(),
		ConversationKey: key,
		SenderID:        in.SenderID,
		RecipientID:     in.RecipientID,
		GroupID:         in.GroupID,
		Body:            in.Body,
		AttachmentURL:   in.AttachmentURL,
		AttachmentKey:   in.AttachmentKey,
		AttachmentType:  in.AttachmentType,
	}

	// The record and the sender's read mark move together: your own message
	// is never unread for you.
	var stored *models.Message
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var txErr error
		stored, txErr = s.repomanager.Messages(tx).Create(ctx, message)
		if txErr != nil {
			return txErr
		}
		return s.repomanager.ReadMarks(tx).Upsert(ctx, in.SenderID, key)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: storing message: %v", common.ErrInternal, err)
	}

	if s.publisher != nil {
		s.publisher.Publish(key, MessageEvent{Type: "message", Message: stored})
	}

	return stored, nil
}

// resolveKey derives or checks the conversation key and enforces that the
// sender takes part in the conversation.
func (s *MessageService) resolveKey(ctx context.Context, in *SendMessageInput) (string, error) {
	switch {
	case in.RecipientID != "":
		key := conversation.DirectKey(in.SenderID, in.RecipientID)
		if in.ConversationKey != "" && in.ConversationKey != key {
			return "", fmt.Errorf("%w: chat id does not match recipient", common.ErrValidation)
		}
		return key, nil

	case in.GroupID != "":
		if err := s.checkGroupMembership(ctx, in.GroupID, in.SenderID); err != nil {
			return "", err
		}
		key := conversation.GroupKey(in.GroupID)
		if in.ConversationKey != "" && in.ConversationKey != key {
			return "", fmt.Errorf("%w: chat id does not match group", common.ErrValidation)
		}
		return key, nil

	default:
		parsed, err := conversation.Parse(in.ConversationKey)
		if err != nil {
			return "", fmt.Errorf("%w: malformed chat id", common.ErrValidation)
		}
		switch parsed.Kind {
		case conversation.KindDirect:
			if !parsed.HasParticipant(in.SenderID) {
				return "", common.ErrUnauthorized
			}
			// Backfill the recipient so the stored record stays consistent
			// with its key.
			if parsed.Participants[0] == in.SenderID {
				in.RecipientID = parsed.Participants[1]
			} else {
				in.RecipientID = parsed.Participants[0]
			}
			// Re-derive rather than store the caller's spelling: an unsorted
			// or uppercased key must land in the same stream as the canonical
			// one.
			return conversation.DirectKey(parsed.Participants[0], parsed.Participants[1]), nil
		case conversation.KindGroup:
			if err := s.checkGroupMembership(ctx, parsed.GroupID, in.SenderID); err != nil {
				return "", err
			}
			in.GroupID = parsed.GroupID
			return conversation.GroupKey(parsed.GroupID), nil
		}
		return in.ConversationKey, nil
	}
}

func (s *MessageService) checkGroupMembership(ctx context.Context, groupID, memberID string) error {
	group, err := s.repomanager.Groups(s.db).GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("%w: loading group: %v", common.ErrInternal, err)
	}
	if !group.HasMember(memberID) {
		return common.ErrUnauthorized
	}
	return nil
}

// History returns one ascending page for the conversation key plus a
// continuation token when more pages exist. An empty key is rejected unless
// unscoped retrieval was explicitly enabled as an administrative mode.
func (s *MessageService) History(ctx context.Context, key string, limit int, pageToken string) ([]*models.Message, string, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var after *messages.Cursor
	if pageToken != "" {
		cursor, err := decodePageToken(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("%w: malformed page token", common.ErrValidation)
		}
		after = cursor
	}

	repo := s.repomanager.Messages(s.db)

	var (
		page []*models.Message
		err  error
	)
	if key == "" {
		if !s.allowUnscopedHistory {
			return nil, "", fmt.Errorf("%w: chat id is required", common.ErrValidation)
		}
		page, err = repo.ListAll(ctx, limit+1, after)
	} else {
		if _, perr := conversation.Parse(key); perr != nil {
			return nil, "", fmt.Errorf("%w: malformed chat id", common.ErrValidation)
		}
		page, err = repo.ListByConversation(ctx, key, limit+1, after)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: listing messages: %v", common.ErrInternal, err)
	}

	next := ""
	if len(page) > limit {
		page = page[:limit]
		last := page[len(page)-1]
		next = encodePageToken(last.CreatedAt, last.ID)
	}
	return page, next, nil
}

// MarkRead records that the member has read the conversation up to now.
func (s *MessageService) MarkRead(ctx context.Context, memberID, key string) error {
	memberID = conversation.Normalize(memberID)
	if memberID == "" || key == "" {
		return fmt.Errorf("%w: member and chat id are required", common.ErrValidation)
	}
	if _, err := conversation.Parse(key); err != nil {
		return fmt.Errorf("%w: malformed chat id", common.ErrValidation)
	}

	if err := s.repomanager.ReadMarks(s.db).Upsert(ctx, memberID, key); err != nil {
		return fmt.Errorf("%w: recording read mark: %v", common.ErrInternal, err)
	}
	return nil
}

// UnreadCounts aggregates unread messages per conversation for the member.
func (s *MessageService) UnreadCounts(ctx context.Context, memberID string) ([]*models.UnreadCount, error) {
	memberID = conversation.Normalize(memberID)
	if memberID == "" {
		return nil, fmt.Errorf("%w: member is required", common.ErrValidation)
	}

	counts, err := s.repomanager.ReadMarks(s.db).UnreadCounts(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: counting unread messages: %v", common.ErrInternal, err)
	}
	return counts, nil
}

// Page tokens encode the keyset position as base64("rfc3339nano|id").

func encodePageToken(createdAt time.Time, id string) string {
	raw := createdAt.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodePageToken(token string) (*messages.Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, errors.New("malformed token")
	}
	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, err
	}
	return &messages.Cursor{CreatedAt: createdAt, ID: parts[1]}, nil
}
