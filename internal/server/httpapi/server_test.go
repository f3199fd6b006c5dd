package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/common"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/server/auth"
	"github.com/parleyhq/parley/internal/server/config"
	"github.com/parleyhq/parley/internal/server/models"
	"github.com/parleyhq/parley/internal/server/notify"
	"github.com/parleyhq/parley/internal/server/services"
)

// --- fakes ---

type fakeMembers struct {
	registerOut *models.Member
	registerErr error

	authToken  string
	authMember *models.Member
	authErr    error

	listOut []*services.MemberStatus

	heartbeats []string

	scheduleOut json.RawMessage
	scheduleSet json.RawMessage
	scheduleErr error
}

func (f *fakeMembers) Register(ctx context.Context, email, displayName, password string) (*models.Member, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registerOut, nil
}

func (f *fakeMembers) Authenticate(ctx context.Context, email, password string) (string, *models.Member, error) {
	if f.authErr != nil {
		return "", nil, f.authErr
	}
	return f.authToken, f.authMember, nil
}

func (f *fakeMembers) List(ctx context.Context) ([]*services.MemberStatus, error) {
	return f.listOut, nil
}

func (f *fakeMembers) Heartbeat(ctx context.Context, memberID string) error {
	f.heartbeats = append(f.heartbeats, memberID)
	return nil
}

func (f *fakeMembers) WorkSchedule(ctx context.Context, memberID string) (json.RawMessage, error) {
	return f.scheduleOut, f.scheduleErr
}

func (f *fakeMembers) SetWorkSchedule(ctx context.Context, memberID string, schedule json.RawMessage) error {
	f.scheduleSet = schedule
	return f.scheduleErr
}

type fakeGroups struct {
	group   *models.Group
	err     error
	added   []string
	removed []string
	deleted []string
}

func (f *fakeGroups) Create(ctx context.Context, name, creatorID string, memberIDs []string) (*models.Group, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.group, nil
}

func (f *fakeGroups) Get(ctx context.Context, groupID string) (*models.Group, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.group, nil
}

func (f *fakeGroups) List(ctx context.Context, memberID string) ([]*models.Group, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []*models.Group{f.group}, nil
}

func (f *fakeGroups) AddMember(ctx context.Context, groupID, memberID string) error {
	f.added = append(f.added, groupID+"/"+memberID)
	return f.err
}

func (f *fakeGroups) RemoveMember(ctx context.Context, groupID, memberID string) error {
	f.removed = append(f.removed, groupID+"/"+memberID)
	return f.err
}

func (f *fakeGroups) Delete(ctx context.Context, groupID string) error {
	f.deleted = append(f.deleted, groupID)
	return f.err
}

type fakeMessages struct {
	sendIn  services.SendMessageInput
	sendOut *models.Message
	sendErr error

	histKey   string
	histLimit int
	histToken string
	histOut   []*models.Message
	histNext  string
	histErr   error

	marked []string

	countsOut []*models.UnreadCount
}

func (f *fakeMessages) Send(ctx context.Context, in services.SendMessageInput) (*models.Message, error) {
	f.sendIn = in
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return f.sendOut, nil
}

func (f *fakeMessages) History(ctx context.Context, key string, limit int, pageToken string) ([]*models.Message, string, error) {
	f.histKey, f.histLimit, f.histToken = key, limit, pageToken
	if f.histErr != nil {
		return nil, "", f.histErr
	}
	return f.histOut, f.histNext, nil
}

func (f *fakeMessages) MarkRead(ctx context.Context, memberID, key string) error {
	f.marked = append(f.marked, memberID+"/"+key)
	return nil
}

func (f *fakeMessages) UnreadCounts(ctx context.Context, memberID string) ([]*models.UnreadCount, error) {
	return f.countsOut, nil
}

type fakeTyping struct {
	started []string
	stopped []string
	active  []string
	err     error
}

func (f *fakeTyping) Start(ctx context.Context, key, memberID string) error {
	f.started = append(f.started, key+"/"+memberID)
	return f.err
}

func (f *fakeTyping) Stop(ctx context.Context, key, memberID string) error {
	f.stopped = append(f.stopped, key+"/"+memberID)
	return f.err
}

func (f *fakeTyping) Active(ctx context.Context, key string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.active, nil
}

type fakeAttachments struct {
	key, uploadURL, downloadURL string
	err                         error
}

func (f *fakeAttachments) IssueUpload(ctx context.Context, fileName, contentType string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return f.key, f.uploadURL, nil
}

func (f *fakeAttachments) IssueDownload(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.downloadURL, nil
}

type testEnv struct {
	server      *Server
	members     *fakeMembers
	groups      *fakeGroups
	messages    *fakeMessages
	typing      *fakeTyping
	attachments *fakeAttachments
	token       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	cfg := &config.Config{EndpointAddr: ":0", SecretKey: "test-secret"}

	env := &testEnv{
		members:     &fakeMembers{},
		groups:      &fakeGroups{},
		messages:    &fakeMessages{},
		typing:      &fakeTyping{},
		attachments: &fakeAttachments{},
	}
	env.server = NewServer(cfg, logger,
		env.members, env.groups, env.messages, env.typing, env.attachments,
		notify.NewHub(logger))

	token, err := auth.GenerateToken("alice@example.com", "Alice", "", []byte("test-secret"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}
	env.token = token
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if authed {
		r.Header.Set("Authorization", "Bearer "+e.token)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, r)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return body
}

// --- tests ---

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodOptions, "/messages", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("preflight status: %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS headers")
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
		t.Fatalf("Authorization not advertised")
	}
	body := decodeEnvelope(t, w)
	if body["success"] != true {
		t.Fatalf("preflight body: %v", body)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/members", "", false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	body := decodeEnvelope(t, w)
	if body["success"] != false || body["error"] != "invalid credentials" {
		t.Fatalf("unauthorized body: %v", body)
	}

	r := httptest.NewRequest(http.MethodGet, "/members", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: %d", rec.Code)
	}

	w = env.do(t, http.MethodGet, "/members", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: %d (%s)", w.Code, w.Body.String())
	}
}

func TestRegisterHandler(t *testing.T) {
	env := newTestEnv(t)
	env.members.registerOut = &models.Member{ID: "bob@example.com", DisplayName: "Bob"}

	w := env.do(t, http.MethodPost, "/register",
		`{"email":"Bob@Example.com","displayName":"Bob","password":"password1"}`, false)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: %d (%s)", w.Code, w.Body.String())
	}
	body := decodeEnvelope(t, w)
	member := body["member"].(map[string]any)
	if member["id"] != "bob@example.com" {
		t.Fatalf("member: %v", member)
	}

	env.members.registerErr = common.ErrAlreadyExists
	w = env.do(t, http.MethodPost, "/register",
		`{"email":"bob@example.com","displayName":"Bob","password":"password1"}`, false)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate status: %d", w.Code)
	}
}

func TestAuthenticateHandler(t *testing.T) {
	env := newTestEnv(t)
	env.members.authToken = "jwt-token"
	env.members.authMember = &models.Member{ID: "alice@example.com", DisplayName: "Alice"}

	w := env.do(t, http.MethodPost, "/auth", `{"email":"alice@example.com","password":"password1"}`, false)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	body := decodeEnvelope(t, w)
	if body["token"] != "jwt-token" {
		t.Fatalf("token: %v", body)
	}

	// unknown id and bad password produce the identical response
	env.members.authErr = common.ErrUnauthorized
	w = env.do(t, http.MethodPost, "/auth", `{"email":"ghost@example.com","password":"x"}`, false)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad creds status: %d", w.Code)
	}
	if decodeEnvelope(t, w)["error"] != "invalid credentials" {
		t.Fatalf("bad creds body: %s", w.Body.String())
	}

	w = env.do(t, http.MethodPost, "/auth", `not json`, false)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status: %d", w.Code)
	}
}

func TestHeartbeatUsesCallerIdentity(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/presence/heartbeat", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if len(env.members.heartbeats) != 1 || env.members.heartbeats[0] != "alice@example.com" {
		t.Fatalf("heartbeats: %v", env.members.heartbeats)
	}
}

func TestSendMessageHandler(t *testing.T) {
	env := newTestEnv(t)
	env.messages.sendOut = &models.Message{
		ID:              "m1",
		ConversationKey: "DIRECT#alice@example.com#bob@example.com",
		SenderID:        "alice@example.com",
		RecipientID:     "bob@example.com",
		Body:            "hi",
		CreatedAt:       time.Now().UTC(),
	}

	w := env.do(t, http.MethodPost, "/messages", `{"recipientId":"bob@example.com","body":"hi"}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: %d (%s)", w.Code, w.Body.String())
	}
	if env.messages.sendIn.SenderID != "alice@example.com" {
		t.Fatalf("sender not taken from token: %q", env.messages.sendIn.SenderID)
	}
	body := decodeEnvelope(t, w)
	msg := body["message"].(map[string]any)
	if msg["conversationKey"] != "DIRECT#alice@example.com#bob@example.com" {
		t.Fatalf("message view: %v", msg)
	}

	env.messages.sendErr = common.ErrUnauthorized
	w = env.do(t, http.MethodPost, "/messages", `{"groupId":"g1","body":"hi"}`, true)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("non-member send status: %d", w.Code)
	}
}

func TestHistoryHandler(t *testing.T) {
	env := newTestEnv(t)
	env.groups.group = &models.Group{ID: "g1", Members: []string{"alice@example.com"}}
	env.messages.histOut = []*models.Message{{ID: "m1"}, {ID: "m2"}}
	env.messages.histNext = "tok"

	w := env.do(t, http.MethodGet,
		"/messages?conversationKey=GROUP%23g1&limit=2&pageToken=prev", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	if env.messages.histKey != "GROUP#g1" || env.messages.histLimit != 2 || env.messages.histToken != "prev" {
		t.Fatalf("query passthrough: key=%q limit=%d token=%q",
			env.messages.histKey, env.messages.histLimit, env.messages.histToken)
	}
	body := decodeEnvelope(t, w)
	if body["nextPageToken"] != "tok" {
		t.Fatalf("next token: %v", body)
	}
	if len(body["messages"].([]any)) != 2 {
		t.Fatalf("messages: %v", body["messages"])
	}

	env.messages.histErr = common.ErrValidation
	w = env.do(t, http.MethodGet, "/messages", "", true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unscoped status: %d", w.Code)
	}
}

func TestHistoryHandler_RequiresParticipation(t *testing.T) {
	env := newTestEnv(t)
	env.messages.histOut = []*models.Message{{ID: "m1"}}

	// alice is not a participant of this direct stream
	w := env.do(t, http.MethodGet,
		"/messages?conversationKey=DIRECT%23bob%40example.com%23carol%40example.com", "", true)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("foreign direct stream status: %d", w.Code)
	}
	if env.messages.histKey != "" {
		t.Fatalf("history queried before authorization: %q", env.messages.histKey)
	}

	// nor a member of this group
	env.groups.group = &models.Group{ID: "g1", Members: []string{"bob@example.com"}}
	w = env.do(t, http.MethodGet, "/messages?conversationKey=GROUP%23g1", "", true)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("foreign group stream status: %d", w.Code)
	}

	// a participant reads as before
	w = env.do(t, http.MethodGet,
		"/messages?conversationKey=DIRECT%23alice%40example.com%23bob%40example.com", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("own stream status: %d", w.Code)
	}
}

func TestMarkReadAndUnreadCounts(t *testing.T) {
	env := newTestEnv(t)
	env.messages.countsOut = []*models.UnreadCount{{ConversationKey: "GROUP#g1", Count: 3}}

	w := env.do(t, http.MethodPost, "/messages/mark-read", `{"conversationKey":"GROUP#g1"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("mark-read status: %d", w.Code)
	}
	if len(env.messages.marked) != 1 || env.messages.marked[0] != "alice@example.com/GROUP#g1" {
		t.Fatalf("marked: %v", env.messages.marked)
	}

	w = env.do(t, http.MethodGet, "/messages/unread-counts", "", true)
	body := decodeEnvelope(t, w)
	unread := body["unread"].([]any)
	first := unread[0].(map[string]any)
	if first["conversationKey"] != "GROUP#g1" || first["count"] != float64(3) {
		t.Fatalf("unread: %v", unread)
	}
}

func TestGroupHandlers(t *testing.T) {
	env := newTestEnv(t)
	env.groups.group = &models.Group{
		ID: "g1", Name: "Team", CreatorID: "alice@example.com",
		Members: []string{"alice@example.com", "bob@example.com"},
	}

	w := env.do(t, http.MethodPost, "/groups", `{"name":"Team","members":["bob@example.com"]}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: %d", w.Code)
	}
	group := decodeEnvelope(t, w)["group"].(map[string]any)
	if group["conversationKey"] != "GROUP#g1" {
		t.Fatalf("group view: %v", group)
	}

	w = env.do(t, http.MethodGet, "/groups/g1", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: %d", w.Code)
	}

	w = env.do(t, http.MethodPut, "/groups/g1/members", `{"memberId":"carol@example.com"}`, true)
	if w.Code != http.StatusOK || env.groups.added[0] != "g1/carol@example.com" {
		t.Fatalf("add member: %d %v", w.Code, env.groups.added)
	}

	w = env.do(t, http.MethodDelete, "/groups/g1/members/bob@example.com", "", true)
	if w.Code != http.StatusOK || env.groups.removed[0] != "g1/bob@example.com" {
		t.Fatalf("remove member: %d %v", w.Code, env.groups.removed)
	}

	w = env.do(t, http.MethodDelete, "/groups/g1", "", true)
	if w.Code != http.StatusOK || env.groups.deleted[0] != "g1" {
		t.Fatalf("delete: %d %v", w.Code, env.groups.deleted)
	}

	env.groups.err = common.ErrNotFound
	w = env.do(t, http.MethodGet, "/groups/missing", "", true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing group status: %d", w.Code)
	}
}

func TestTypingHandlers(t *testing.T) {
	env := newTestEnv(t)
	env.typing.active = []string{"bob@example.com"}

	w := env.do(t, http.MethodPost, "/typing/start", `{"conversationKey":"GROUP#g1"}`, true)
	if w.Code != http.StatusOK || env.typing.started[0] != "GROUP#g1/alice@example.com" {
		t.Fatalf("start: %d %v", w.Code, env.typing.started)
	}

	w = env.do(t, http.MethodPost, "/typing/stop", `{"conversationKey":"GROUP#g1"}`, true)
	if w.Code != http.StatusOK || env.typing.stopped[0] != "GROUP#g1/alice@example.com" {
		t.Fatalf("stop: %d %v", w.Code, env.typing.stopped)
	}

	w = env.do(t, http.MethodGet, "/typing?conversationKey=GROUP%23g1", "", true)
	body := decodeEnvelope(t, w)
	typers := body["typing"].([]any)
	if len(typers) != 1 || typers[0] != "bob@example.com" {
		t.Fatalf("typing: %v", typers)
	}
}

func TestFileHandlers(t *testing.T) {
	env := newTestEnv(t)
	env.attachments.key = "attachments/2026/03/01/u-report.pdf"
	env.attachments.uploadURL = "http://signed/put"
	env.attachments.downloadURL = "http://signed/get"

	w := env.do(t, http.MethodPost, "/files", `{"fileName":"report.pdf","contentType":"application/pdf"}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("upload status: %d", w.Code)
	}
	body := decodeEnvelope(t, w)
	if body["uploadUrl"] != "http://signed/put" || body["key"] != env.attachments.key {
		t.Fatalf("upload body: %v", body)
	}

	w = env.do(t, http.MethodGet, "/attachments?key=attachments/2026/03/01/u-report.pdf", "", true)
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("download status: %d", w.Code)
	}
	if w.Header().Get("Location") != "http://signed/get" {
		t.Fatalf("redirect target: %q", w.Header().Get("Location"))
	}

	w = env.do(t, http.MethodGet, "/attachments", "", true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing key status: %d", w.Code)
	}
}

func TestWorkScheduleHandlers(t *testing.T) {
	env := newTestEnv(t)
	env.members.scheduleOut = json.RawMessage(`{"mon":"9-17"}`)

	w := env.do(t, http.MethodGet, "/work-schedule", "", true)
	body := decodeEnvelope(t, w)
	schedule := body["schedule"].(map[string]any)
	if schedule["mon"] != "9-17" {
		t.Fatalf("schedule: %v", body)
	}

	w = env.do(t, http.MethodPut, "/work-schedule", `{"schedule":{"mon":"10-18"}}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("set status: %d", w.Code)
	}
	if string(env.members.scheduleSet) != `{"mon":"10-18"}` {
		t.Fatalf("stored schedule: %s", env.members.scheduleSet)
	}
}

func TestInternalErrorIsGeneric(t *testing.T) {
	env := newTestEnv(t)
	env.groups.group = &models.Group{ID: "g1", Members: []string{"alice@example.com"}}
	env.messages.histErr = common.ErrInternal

	w := env.do(t, http.MethodGet, "/messages?conversationKey=GROUP%23g1", "", true)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status: %d", w.Code)
	}
	body := decodeEnvelope(t, w)
	if body["error"] != "internal error" {
		t.Fatalf("detail leaked: %v", body)
	}
}
