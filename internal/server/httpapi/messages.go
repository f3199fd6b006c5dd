package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/parleyhq/parley/internal/server/models"
	"github.com/parleyhq/parley/internal/server/services"
)

type sendMessageRequest struct {
	RecipientID     string `json:"recipientId"`
	GroupID         string `json:"groupId"`
	ConversationKey string `json:"conversationKey"`
	Body            string `json:"body"`
	AttachmentURL   string `json:"attachmentUrl"`
	AttachmentKey   string `json:"attachmentKey"`
	AttachmentType  string `json:"attachmentType"`
}

// messageView is the wire shape of a stored message.
type messageView struct {
	ID              string    `json:"id"`
	ConversationKey string    `json:"conversationKey"`
	SenderID        string    `json:"senderId"`
	RecipientID     string    `json:"recipientId,omitempty"`
	GroupID         string    `json:"groupId,omitempty"`
	Body            string    `json:"body,omitempty"`
	AttachmentURL   string    `json:"attachmentUrl,omitempty"`
	AttachmentKey   string    `json:"attachmentKey,omitempty"`
	AttachmentType  string    `json:"attachmentType,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toMessageView(m *models.Message) *messageView {
	return &messageView{
		ID:              m.ID,
		ConversationKey: m.ConversationKey,
		SenderID:        m.SenderID,
		RecipientID:     m.RecipientID,
		GroupID:         m.GroupID,
		Body:            m.Body,
		AttachmentURL:   m.AttachmentURL,
		AttachmentKey:   m.AttachmentKey,
		AttachmentType:  m.AttachmentType,
		CreatedAt:       m.CreatedAt,
	}
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	msg, err := s.messages.Send(r.Context(), services.SendMessageInput{
		SenderID:        MemberIDFromContext(r.Context()),
		RecipientID:     req.RecipientID,
		GroupID:         req.GroupID,
		ConversationKey: req.ConversationKey,
		Body:            req.Body,
		AttachmentURL:   req.AttachmentURL,
		AttachmentKey:   req.AttachmentKey,
		AttachmentType:  req.AttachmentType,
	})
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, envelope{"message": toMessageView(msg)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	// Retrieval is gated the same way live subscription is: only
	// participants read a conversation. The empty (unscoped) key stays
	// under the service's administrative gate.
	key := q.Get("conversationKey")
	if key != "" {
		if err := s.authorizeConversation(r.Context(), MemberIDFromContext(r.Context()), key); err != nil {
			writeServiceError(r.Context(), w, s.logger, err)
			return
		}
	}

	page, next, err := s.messages.History(r.Context(), key, limit, q.Get("pageToken"))
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	views := make([]*messageView, 0, len(page))
	for _, m := range page {
		views = append(views, toMessageView(m))
	}

	payload := envelope{"messages": views}
	if next != "" {
		payload["nextPageToken"] = next
	}
	writeSuccess(w, http.StatusOK, payload)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationKey string `json:"conversationKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	memberID := MemberIDFromContext(r.Context())
	if err := s.messages.MarkRead(r.Context(), memberID, req.ConversationKey); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (s *Server) handleUnreadCounts(w http.ResponseWriter, r *http.Request) {
	memberID := MemberIDFromContext(r.Context())
	counts, err := s.messages.UnreadCounts(r.Context(), memberID)
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	type countView struct {
		ConversationKey string `json:"conversationKey"`
		Count           int64  `json:"count"`
	}
	views := make([]countView, 0, len(counts))
	for _, c := range counts {
		views = append(views, countView{ConversationKey: c.ConversationKey, Count: c.Count})
	}
	writeSuccess(w, http.StatusOK, envelope{"unread": views})
}
