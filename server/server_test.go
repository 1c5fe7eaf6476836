package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/techagentng/quizchat/config"
	"github.com/techagentng/quizchat/db"
	"github.com/techagentng/quizchat/realtime"
	"github.com/techagentng/quizchat/services"
	"github.com/techagentng/quizchat/services/jwt"
)

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStore) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
	return "https://bucket.example.com/" + key, nil
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  string          `json:"errors"`
	Status  string          `json:"status"`
}

type testServer struct {
	*Server
	handler http.Handler
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conf := &config.Config{
		JoinCodeRetries:      5,
		SendMessageRateLimit: 100,
		ShutdownTimeout:      time.Second,
	}
	if mutate != nil {
		mutate(conf)
	}

	g, err := db.OpenSQLite("file::memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stores := g.Stores()

	logger := zerolog.Nop()
	hub := realtime.NewHub(logger)
	dispatcher := realtime.NewDispatcher(logger, hub)
	t.Cleanup(func() {
		_ = dispatcher.Shutdown(context.Background())
		hub.Close()
		_ = stores.Close(context.Background())
	})

	convs := services.NewConversationService(stores.Conversations, dispatcher, logger, conf)
	s := &Server{
		Config:              conf,
		Logger:              logger,
		Stores:              stores,
		ConversationService: convs,
		MessageService:      services.NewMessageService(stores.Messages, stores.Conversations, convs, dispatcher, logger, conf),
		PostService:         services.NewPostService(stores.Posts, logger, conf),
		MediaService:        services.NewMediaService(&memoryStore{objects: map[string][]byte{}}, logger),
		Hub:                 hub,
		Dispatcher:          dispatcher,
		RateLimitStore: ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  time.Minute,
			Limit: conf.SendMessageRateLimit,
		}),
	}
	return &testServer{Server: s, handler: s.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func (ts *testServer) createGroup(t *testing.T, creator string) (id, joinCode string) {
	t.Helper()
	rec, env := ts.do(t, http.MethodPost, "/api/v1/conversation/create-group", map[string]interface{}{
		"name":      "Quiz Night",
		"creatorId": creator,
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create group status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var data struct {
		ConversationID string `json:"conversationId"`
		JoinCode       string `json:"joinCode"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return data.ConversationID, data.JoinCode
}

func TestGroupLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	id, code := ts.createGroup(t, "u1")

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/conversation/join", map[string]string{
		"userId":   "u2",
		"joinCode": strings.ToLower(code),
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec, env := ts.do(t, http.MethodPost, "/api/v1/conversation/"+id+"/add-members", map[string]interface{}{
		"memberIds":     []string{"u3"},
		"requestedById": "u2",
	}, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin add status = %d, want 403", rec.Code)
	}
	if env.Errors == "" {
		t.Error("expected an error message for a forbidden add")
	}

	rec, env = ts.do(t, http.MethodPost, "/api/v1/conversation/"+id+"/add-members", map[string]interface{}{
		"memberIds":     []string{"u3", "u2"},
		"requestedById": "u1",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin add status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var added struct {
		AddedMembers []string `json:"addedMembers"`
	}
	if err := json.Unmarshal(env.Data, &added); err != nil {
		t.Fatalf("decode added: %v", err)
	}
	if len(added.AddedMembers) != 1 || added.AddedMembers[0] != "u3" {
		t.Errorf("addedMembers = %v, want [u3]", added.AddedMembers)
	}

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/conversation/"+id+"/leave", map[string]string{"userId": "u1"}, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("creator leave status = %d, want 403", rec.Code)
	}

	rec, _ = ts.do(t, http.MethodDelete, "/api/v1/conversation/"+id+"/remove-member/u3?requestedById=u1", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("remove status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec, _ = ts.do(t, http.MethodDelete, "/api/v1/conversation/"+id+"?requestedById=u1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec, _ = ts.do(t, http.MethodGet, "/api/v1/conversation/"+id, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", rec.Code)
	}
}

func TestStatusMapping(t *testing.T) {
	ts := newTestServer(t, nil)
	id, _ := ts.createGroup(t, "u1")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"missing body", http.MethodPost, "/api/v1/conversation/create-group", nil, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/v1/conversation/create-group", map[string]string{"creatorId": "u1"}, http.StatusBadRequest},
		{"unknown conversation", http.MethodGet, "/api/v1/conversation/nope", nil, http.StatusNotFound},
		{"bad join code", http.MethodPost, "/api/v1/conversation/join", map[string]string{"userId": "u2", "joinCode": "ZZZZZZZZ"}, http.StatusNotFound},
		{"grant admin to non member", http.MethodPost, "/api/v1/conversation/" + id + "/manage-admin", map[string]interface{}{
			"requestedById": "u1", "userId": "u9", "isAddAdmin": true,
		}, http.StatusBadRequest},
		{"revoke creator", http.MethodPost, "/api/v1/conversation/" + id + "/manage-admin", map[string]interface{}{
			"requestedById": "u1", "userId": "u1", "isAddAdmin": false,
		}, http.StatusForbidden},
		{"missing actor", http.MethodGet, "/api/v1/conversation/GetUserConversations", nil, http.StatusBadRequest},
		{"unknown post", http.MethodGet, "/api/v1/post/nope", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := ts.do(t, tt.method, tt.path, tt.body, "")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestCapacityOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	rec, env := ts.do(t, http.MethodPost, "/api/v1/conversation/create-group", map[string]interface{}{
		"name":       "Duo",
		"creatorId":  "u1",
		"maxMembers": 2,
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var data struct {
		ConversationID string `json:"conversationId"`
	}
	_ = json.Unmarshal(env.Data, &data)

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/conversation/"+data.ConversationID+"/add-members", map[string]interface{}{
		"memberIds":     []string{"u2", "u3"},
		"requestedById": "u1",
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("over capacity status = %d, want 400", rec.Code)
	}
}

func TestSendMessageOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	id, _ := ts.createGroup(t, "u1")

	rec, env := ts.do(t, http.MethodPost, "/api/v1/message/SendMessage", map[string]string{
		"senderId":       "u1",
		"conversationId": id,
		"content":        "first question",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var msg struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &msg); err != nil || msg.ID == "" {
		t.Fatalf("decode message: %v, data = %s", err, env.Data)
	}

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/message/SendMessage", map[string]string{
		"senderId":       "outsider",
		"conversationId": id,
		"content":        "let me in",
	}, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-member send status = %d, want 403", rec.Code)
	}

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/message/SendMessage?userId=u2", map[string]string{
		"senderId":       "u1",
		"conversationId": id,
		"content":        "spoofed",
	}, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("mismatched sender status = %d, want 403", rec.Code)
	}

	rec, env = ts.do(t, http.MethodGet, "/api/v1/message?conversationId="+id, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var msgs []json.RawMessage
	_ = json.Unmarshal(env.Data, &msgs)
	if len(msgs) != 1 {
		t.Errorf("got %d messages, want 1", len(msgs))
	}

	rec, _ = ts.do(t, http.MethodPut, "/api/v1/message/"+msg.ID+"/pin", map[string]bool{"isPinned": true}, "")
	if rec.Code != http.StatusOK {
		t.Errorf("pin status = %d", rec.Code)
	}
	rec, _ = ts.do(t, http.MethodDelete, "/api/v1/message/"+msg.ID, nil, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	rec, _ = ts.do(t, http.MethodPut, "/api/v1/message/"+msg.ID+"/read", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("read deleted status = %d, want 404", rec.Code)
	}
}

func TestSendMessageRateLimited(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.SendMessageRateLimit = 2 })

	body := map[string]string{"senderId": "u1", "receiverId": "u2", "content": "hi"}
	for i := 0; i < 2; i++ {
		rec, _ := ts.do(t, http.MethodPost, "/api/v1/message/SendMessage?userId=u1", body, "")
		if rec.Code != http.StatusCreated {
			t.Fatalf("send %d status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
	}
	rec, env := ts.do(t, http.MethodPost, "/api/v1/message/SendMessage?userId=u1", body, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third send status = %d, want 429", rec.Code)
	}
	if !strings.Contains(env.Errors, "too many requests") {
		t.Errorf("errors = %q", env.Errors)
	}

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/message/SendMessage?userId=u2", map[string]string{
		"senderId": "u2", "receiverId": "u1", "content": "separate bucket",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Errorf("other sender status = %d, want 201", rec.Code)
	}
}

func TestAuthorization(t *testing.T) {
	const secret = "test-secret"
	ts := newTestServer(t, func(c *config.Config) { c.JWTSecret = secret })

	rec, _ := ts.do(t, http.MethodGet, "/api/v1/conversation/GetUserConversations", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}
	rec, _ = ts.do(t, http.MethodGet, "/api/v1/conversation/GetUserConversations", nil, "garbage")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}

	token, err := jwt.GenerateToken("u1", secret, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/conversation/create-group", map[string]string{
		"name":      "Impostor",
		"creatorId": "u2",
	}, token)
	if rec.Code != http.StatusForbidden {
		t.Errorf("mismatched creator status = %d, want 403", rec.Code)
	}

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/conversation/create-group", map[string]string{
		"name":      "Mine",
		"creatorId": "u1",
	}, token)
	if rec.Code != http.StatusCreated {
		t.Errorf("own group status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec, env := ts.do(t, http.MethodGet, "/api/v1/conversation/GetUserConversations", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var convs []json.RawMessage
	_ = json.Unmarshal(env.Data, &convs)
	if len(convs) != 1 {
		t.Errorf("got %d conversations, want 1", len(convs))
	}

	rec, _ = ts.do(t, http.MethodPost, "/api/v1/conversation/CreateConversation", map[string]string{
		"userId1": "u2",
		"userId2": "u3",
	}, token)
	if rec.Code != http.StatusForbidden {
		t.Errorf("third-party direct status = %d, want 403", rec.Code)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestPostsOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "avatar.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write(pngBytes(t))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/post/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var uploaded struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &uploaded); err != nil || uploaded.Data.URL == "" {
		t.Fatalf("decode upload: %v, body = %s", err, rec.Body.String())
	}

	rec, env := ts.do(t, http.MethodPost, "/api/v1/post", map[string]interface{}{
		"userId":    "u1",
		"content":   "who won the quiz?",
		"imageUrls": []string{uploaded.Data.URL},
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create post status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var post struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &post)

	path := fmt.Sprintf("/api/v1/post/like?userId=u2&postId=%s", post.ID)
	if rec, _ = ts.do(t, http.MethodPost, path, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("like status = %d", rec.Code)
	}
	if rec, _ = ts.do(t, http.MethodPost, path, nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("double like status = %d, want 400", rec.Code)
	}

	rec, env = ts.do(t, http.MethodGet, "/api/v1/post?page=1&pageSize=5", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list posts status = %d", rec.Code)
	}
	var posts []struct {
		Likes int `json:"likes"`
	}
	_ = json.Unmarshal(env.Data, &posts)
	if len(posts) != 1 || posts[0].Likes != 1 {
		t.Errorf("posts = %+v", posts)
	}
}

func TestWebsocketReceivesMessages(t *testing.T) {
	ts := newTestServer(t, nil)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?userId=u2"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for ts.Hub.Connected("u2") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec, _ := ts.do(t, http.MethodPost, "/api/v1/message/SendMessage", map[string]string{
		"senderId":   "u1",
		"receiverId": "u2",
		"content":    "ready?",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d, body = %s", rec.Code, rec.Body.String())
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Event string            `json:"event"`
		Args  []json.RawMessage `json:"args"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Event != realtime.EventReceiveMessage {
		t.Errorf("event = %q, want %q", frame.Event, realtime.EventReceiveMessage)
	}
	if len(frame.Args) != 2 || string(frame.Args[0]) != `"u1"` {
		t.Errorf("args = %s", frame.Args)
	}
}

func TestMessageAccessWithAuth(t *testing.T) {
	const secret = "test-secret"
	ts := newTestServer(t, func(c *config.Config) { c.JWTSecret = secret })

	tokens := map[string]string{}
	for _, user := range []string{"u1", "u2", "outsider"} {
		token, err := jwt.GenerateToken(user, secret, time.Hour)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		tokens[user] = token
	}

	rec, env := ts.do(t, http.MethodPost, "/api/v1/message/SendMessage", map[string]string{
		"receiverId": "u2",
		"content":    "round one",
	}, tokens["u1"])
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var msg struct {
		ID             string `json:"id"`
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		user   string
		want   int
	}{
		{"outsider lists", http.MethodGet, "/api/v1/message?conversationId=" + msg.ConversationID, nil, "outsider", http.StatusForbidden},
		{"outsider marks read", http.MethodPut, "/api/v1/message/" + msg.ID + "/read", nil, "outsider", http.StatusForbidden},
		{"outsider pins", http.MethodPut, "/api/v1/message/" + msg.ID + "/pin", map[string]bool{"isPinned": true}, "outsider", http.StatusForbidden},
		{"receiver deletes", http.MethodDelete, "/api/v1/message/" + msg.ID, nil, "u2", http.StatusForbidden},
		{"impersonation", http.MethodPut, "/api/v1/message/" + msg.ID + "/read?userId=u2", nil, "outsider", http.StatusForbidden},
		{"receiver lists", http.MethodGet, "/api/v1/message?conversationId=" + msg.ConversationID, nil, "u2", http.StatusOK},
		{"receiver marks read", http.MethodPut, "/api/v1/message/" + msg.ID + "/read", nil, "u2", http.StatusOK},
		{"sender deletes", http.MethodDelete, "/api/v1/message/" + msg.ID, nil, "u1", http.StatusNoContent},
	}
	for _, tt := range tests {
		rec, _ := ts.do(t, tt.method, tt.path, tt.body, tokens[tt.user])
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d, body = %s", tt.name, rec.Code, tt.want, rec.Body.String())
		}
	}
}
