package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/server/conversation"
	"github.com/parleyhq/parley/internal/server/notify"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebsocket upgrades the connection and starts the notify pumps. The
// auth middleware has already validated the token, either from the header
// or the "token" query parameter.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	memberID := MemberIDFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "websocket upgrade", "member", memberID, "error", err)
		return
	}

	client := notify.NewClient(s.hub, conn, memberID, s.authorizeConversation, s.logger)
	go client.WritePump()
	go client.ReadPump(context.Background())
}

// authorizeConversation decides whether a member may subscribe to a
// conversation key: direct keys require being one of the two participants,
// group keys require group membership.
func (s *Server) authorizeConversation(ctx context.Context, memberID, key string) error {
	parsed, err := conversation.Parse(key)
	if err != nil {
		return err
	}

	switch parsed.Kind {
	case conversation.KindDirect:
		if !parsed.HasParticipant(memberID) {
			return common.ErrUnauthorized
		}
		return nil
	case conversation.KindGroup:
		group, err := s.groups.Get(ctx, parsed.GroupID)
		if err != nil {
			return err
		}
		if !group.HasMember(memberID) {
			return common.ErrUnauthorized
		}
		return nil
	}
	return common.ErrValidation
}
