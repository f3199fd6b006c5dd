package httpapi

import (
	"fmt"
	"net/http"

	"github.com/parleyhq/parley/internal/common"
)

type issueUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

func (s *Server) handleIssueUpload(w http.ResponseWriter, r *http.Request) {
	var req issueUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	key, url, err := s.attachments.IssueUpload(r.Context(), req.FileName, req.ContentType)
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	writeSuccess(w, http.StatusCreated, envelope{
		"key":       key,
		"uploadUrl": url,
	})
}

// handleDownloadAttachment redirects the client straight to a presigned GET
// URL so the payload never flows through this process.
func (s *Server) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeServiceError(r.Context(), w, s.logger, fmt.Errorf("%w: key is required", common.ErrValidation))
		return
	}

	url, err := s.attachments.IssueDownload(r.Context(), key)
	if err != nil {
		writeServiceError(r.Context(), w, s.logger, err)
		return
	}

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}
