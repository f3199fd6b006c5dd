package httpapi

import (
	"encoding/json"
	"net/http"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
}

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	token, member, err := s.members.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	writeSuccess(w, http.StatusOK, envelope{
		"token": token,
		"member": envelope{
			"id":          member.ID,
			"displayName": member.DisplayName,
			"role":        member.Role,
		},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	member, err := s.members.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, envelope{
		"member": envelope{
			"id":          member.ID,
			"displayName": member.DisplayName,
		},
	})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	list, err := s.members.List(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, envelope{"members": list})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	memberID := MemberIDFromContext(r.Context())
	if err := s.members.Heartbeat(r.Context(), memberID); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (s *Server) handleGetWorkSchedule(w http.ResponseWriter, r *http.Request) {
	memberID := MemberIDFromContext(r.Context())
	schedule, err := s.members.WorkSchedule(r.Context(), memberID)
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	if len(schedule) == 0 {
		schedule = json.RawMessage("null")
	}
	writeSuccess(w, http.StatusOK, envelope{"schedule": schedule})
}

func (s *Server) handleSetWorkSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Schedule json.RawMessage `json:"schedule"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	memberID := MemberIDFromContext(r.Context())
	if err := s.members.SetWorkSchedule(r.Context(), memberID, req.Schedule); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}
