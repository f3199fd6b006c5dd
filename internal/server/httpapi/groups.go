package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/parleyhq/parley/internal/server/conversation"
	"github.com/parleyhq/parley/internal/server/models"
)

type groupView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	CreatorID       string    `json:"creatorId"`
	Members         []string  `json:"members"`
	ConversationKey string    `json:"conversationKey"`
	CreatedAt       time.Time `json:"createdAt"`
}

func toGroupView(g *models.Group) *groupView {
	return &groupView{
		ID:              g.ID,
		Name:            g.Name,
		CreatorID:       g.CreatorID,
		Members:         g.Members,
		ConversationKey: conversation.GroupKey(g.ID),
		CreatedAt:       g.CreatedAt,
	}
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	creatorID := MemberIDFromContext(r.Context())
	group, err := s.groups.Create(r.Context(), req.Name, creatorID, req.Members)
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, envelope{"group": toGroupView(group)})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"group": toGroupView(group)})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.List(r.Context(), r.URL.Query().Get("member"))
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	views := make([]*groupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, toGroupView(g))
	}
	writeSuccess(w, http.StatusOK, envelope{"groups": views})
}

func (s *Server) handleAddGroupMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"memberId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	if err := s.groups.AddMember(r.Context(), mux.Vars(r)["id"], req.MemberID); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (s *Server) handleRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.groups.RemoveMember(r.Context(), vars["id"], vars["memberID"]); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.groups.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}
