// Package httpapi exposes the messaging backend over JSON HTTP plus one
// websocket endpoint for push notifications.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/server/config"
	"github.com/parleyhq/parley/internal/server/models"
	"github.com/parleyhq/parley/internal/server/notify"
	"github.com/parleyhq/parley/internal/server/services"
)

// The handler layer talks to services through narrow interfaces so tests
// can swap in fakes.

type MemberProvider interface {
	Register(ctx context.Context, email, displayName, password string) (*models.Member, error)
	Authenticate(ctx context.Context, email, password string) (string, *models.Member, error)
	List(ctx context.Context) ([]*services.MemberStatus, error)
	Heartbeat(ctx context.Context, memberID string) error
	WorkSchedule(ctx context.Context, memberID string) (json.RawMessage, error)
	SetWorkSchedule(ctx context.Context, memberID string, schedule json.RawMessage) error
}

type GroupProvider interface {
	Create(ctx context.Context, name, creatorID string, memberIDs []string) (*models.Group, error)
	Get(ctx context.Context, groupID string) (*models.Group, error)
	List(ctx context.Context, memberID string) ([]*models.Group, error)
	AddMember(ctx context.Context, groupID, memberID string) error
	RemoveMember(ctx context.Context, groupID, memberID string) error
	Delete(ctx context.Context, groupID string) error
}

type MessageProvider interface {
	Send(ctx context.Context, in services.SendMessageInput) (*models.Message, error)
	History(ctx context.Context, key string, limit int, pageToken string) ([]*models.Message, string, error)
	MarkRead(ctx context.Context, memberID, key string) error
	UnreadCounts(ctx context.Context, memberID string) ([]*models.UnreadCount, error)
}

type TypingProvider interface {
	Start(ctx context.Context, key, memberID string) error
	Stop(ctx context.Context, key, memberID string) error
	Active(ctx context.Context, key string) ([]string, error)
}

type AttachmentProvider interface {
	IssueUpload(ctx context.Context, fileName, contentType string) (string, string, error)
	IssueDownload(ctx context.Context, key string) (string, error)
}

// Server wires the services into an http.Server.
type Server struct {
	members     MemberProvider
	groups      GroupProvider
	messages    MessageProvider
	typing      TypingProvider
	attachments AttachmentProvider
	hub         *notify.Hub

	secretKey []byte
	logger    logging.Logger
	srv       *http.Server
}

func NewServer(
	cfg *config.Config,
	logger logging.Logger,
	members MemberProvider,
	groups GroupProvider,
	messages MessageProvider,
	typing TypingProvider,
	attachments AttachmentProvider,
	hub *notify.Hub,
) *Server {
	s := &Server{
		members:     members,
		groups:      groups,
		messages:    messages,
		typing:      typing,
		attachments: attachments,
		hub:         hub,
		secretKey:   []byte(cfg.SecretKey),
		logger:      logger,
	}
	s.srv = &http.Server{
		Addr:              cfg.EndpointAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/auth", s.handleAuthenticate).Methods(http.MethodPost)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(mux.MiddlewareFunc(authMiddleware(s.secretKey)))

	authed.HandleFunc("/members", s.handleListMembers).Methods(http.MethodGet)
	authed.HandleFunc("/presence/heartbeat", s.handleHeartbeat).Methods(http.MethodPost)

	authed.HandleFunc("/messages", s.handleSendMessage).Methods(http.MethodPost)
	authed.HandleFunc("/messages", s.handleHistory).Methods(http.MethodGet)
	authed.HandleFunc("/messages/mark-read", s.handleMarkRead).Methods(http.MethodPost)
	authed.HandleFunc("/messages/unread-counts", s.handleUnreadCounts).Methods(http.MethodGet)

	authed.HandleFunc("/groups", s.handleCreateGroup).Methods(http.MethodPost)
	authed.HandleFunc("/groups", s.handleListGroups).Methods(http.MethodGet)
	authed.HandleFunc("/groups/{id}", s.handleGetGroup).Methods(http.MethodGet)
	authed.HandleFunc("/groups/{id}", s.handleDeleteGroup).Methods(http.MethodDelete)
	authed.HandleFunc("/groups/{id}/members", s.handleAddGroupMember).Methods(http.MethodPut)
	authed.HandleFunc("/groups/{id}/members/{memberID}", s.handleRemoveGroupMember).Methods(http.MethodDelete)

	authed.HandleFunc("/typing/start", s.handleTypingStart).Methods(http.MethodPost)
	authed.HandleFunc("/typing/stop", s.handleTypingStop).Methods(http.MethodPost)
	authed.HandleFunc("/typing", s.handleTypingActive).Methods(http.MethodGet)

	authed.HandleFunc("/files", s.handleIssueUpload).Methods(http.MethodPost)
	authed.HandleFunc("/attachments", s.handleDownloadAttachment).Methods(http.MethodGet)

	authed.HandleFunc("/work-schedule", s.handleGetWorkSchedule).Methods(http.MethodGet)
	authed.HandleFunc("/work-schedule", s.handleSetWorkSchedule).Methods(http.MethodPut)

	authed.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)

	var h http.Handler = r
	h = loggingMiddleware(s.logger)(h)
	h = corsMiddleware(h)
	return h
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info(context.Background(), "http server listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
