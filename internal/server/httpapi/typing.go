package httpapi

import (
	"context"
	"net/http"
)

type typingRequest struct {
	ConversationKey string `json:"conversationKey"`
}

func (s *Server) handleTypingStart(w http.ResponseWriter, r *http.Request) {
	s.handleTypingChange(w, r, s.typing.Start)
}

func (s *Server) handleTypingStop(w http.ResponseWriter, r *http.Request) {
	s.handleTypingChange(w, r, s.typing.Stop)
}

func (s *Server) handleTypingChange(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, key, memberID string) error) {
	var req typingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	memberID := MemberIDFromContext(r.Context())
	if err := op(r.Context(), req.ConversationKey, memberID); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (s *Server) handleTypingActive(w http.ResponseWriter, r *http.Request) {
	typers, err := s.typing.Active(r.Context(), r.URL.Query().Get("conversationKey"))
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	if typers == nil {
		typers = []string{}
	}
	writeSuccess(w, http.StatusOK, envelope{"typing": typers})
}
