package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fitpulse-chat/auth"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/pubsub"
	"fitpulse-chat/repositories"
	"fitpulse-chat/search"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenService
	orch   *Orchestrator
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	index, err := search.OpenIndex(t.TempDir(), log)
	req.NoError(err)
	t.Cleanup(func() { _ = index.Close() })

	config := Config{
		LogLevel:             "DEBUG",
		JWTSecret:            testSecret,
		ConnectionBufferSize: 32,
		InboundBufferSize:    8,
		BufferSize:           64,
		StoreTimeout:         2 * time.Second,
		SinkTimeout:          100 * time.Millisecond,
		WriteTimeout:         time.Second,
		RestartInterval:      50 * time.Millisecond,
		MetricInterval:       50 * time.Millisecond,
		LimitMessages:        lo.ToPtr(20),
		MaxContentLength:     500,
		CharReplacement:      "*",
	}
	tokens := auth.NewTokenService(testSecret)
	orch, err := NewOrchestrator(log, config, db, index, pubsub.NewLogPublisher(log), tokens)
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		orch.Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	app := fiber.New()
	orch.Server().Register(app)
	RegisterDebugRoutes(app, db, orch.Monitoring(), true)
	return testServer{app: app, tokens: tokens, orch: orch}
}

func (s testServer) token(t *testing.T, user domain.UserID) string {
	token, err := s.tokens.GenerateToken(user, time.Hour)
	require.NoError(t, err)
	return token
}

func (s testServer) do(t *testing.T, method, path string, user domain.UserID, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if user != "" {
		r.Header.Set(fiber.HeaderAuthorization, "Bearer "+s.token(t, user))
	}
	resp, err := s.app.Test(r, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, payload
}

func TestServer_RejectsHandshakeWithoutKnownUser(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodGet, "/ws", "", nil)
	req.Equal(fiber.StatusUnauthorized, status)
	req.Contains(string(body), "authentication required")

	// Valid token, but the profile was never synced
	status, body = s.do(t, fiber.MethodGet, "/ws", "stranger", nil)
	req.Equal(fiber.StatusUnauthorized, status)
	req.Contains(string(body), "user not found")

	status, _ = s.do(t, fiber.MethodGet, "/healthz", "", nil)
	req.Equal(fiber.StatusOK, status)
}

func TestServer_RestRoutes(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)

	for _, user := range []domain.UserID{"coach", "alice", "bob"} {
		status, _ := s.do(t, fiber.MethodPut, "/api/me", user, map[string]string{"name": string(user)})
		req.Equal(fiber.StatusOK, status)
	}

	status, body := s.do(t, fiber.MethodPost, "/api/groups", "coach", map[string]any{"name": "Spin class", "members": []string{"alice"}})
	req.Equal(fiber.StatusCreated, status)
	var group domain.Group
	req.NoError(json.Unmarshal(body, &group))

	status, _ = s.do(t, fiber.MethodPost, "/api/groups/"+string(group.ID)+"/members", "alice", map[string]string{"userId": "bob"})
	req.Equal(fiber.StatusForbidden, status)
	status, _ = s.do(t, fiber.MethodPost, "/api/groups/"+string(group.ID)+"/members", "coach", map[string]string{"userId": "bob"})
	req.Equal(fiber.StatusOK, status)

	status, _ = s.do(t, fiber.MethodGet, "/api/conversations/"+string(group.ConversationID)+"/messages", "bob", nil)
	req.Equal(fiber.StatusOK, status)
	status, _ = s.do(t, fiber.MethodGet, "/api/conversations/"+string(group.ConversationID)+"/search", "bob", nil)
	req.Equal(fiber.StatusBadRequest, status)

	status, _ = s.do(t, fiber.MethodDelete, "/api/groups/"+string(group.ID)+"/members/bob", "bob", nil)
	req.Equal(fiber.StatusOK, status)
	status, _ = s.do(t, fiber.MethodGet, "/api/conversations/"+string(group.ConversationID)+"/messages", "bob", nil)
	req.Equal(fiber.StatusForbidden, status)

	status, _ = s.do(t, fiber.MethodGet, "/api/conversations/direct:nobody/messages", "bob", nil)
	req.Equal(fiber.StatusNotFound, status)

	status, body = s.do(t, fiber.MethodGet, "/debug/inspect?prefix=group:", "", nil)
	req.Equal(fiber.StatusOK, status)
	var page InspectPage
	req.NoError(json.Unmarshal(body, &page))
	req.Len(page.Items, 1)
}

func dial(t *testing.T, addr string, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws?token=%s", addr, token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil skips frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want event.Type) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame event.Inbound
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == want {
			return frame.Data
		}
	}
}

func TestServer_WebsocketRoundTrip(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	for _, user := range []domain.UserID{"alice", "bob"} {
		status, _ := s.do(t, fiber.MethodPut, "/api/me", user, map[string]string{"name": string(user)})
		req.Equal(fiber.StatusOK, status)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	go func() { _ = s.app.Listener(listener) }()
	t.Cleanup(func() { _ = s.app.Shutdown() })
	addr := listener.Addr().String()

	alice := dial(t, addr, s.token(t, "alice"))
	bob := dial(t, addr, s.token(t, "bob"))

	var online event.Presence
	req.NoError(json.Unmarshal(readUntil(t, alice, event.UserOnlineType), &online))
	req.Equal(domain.UserID("bob"), online.UserID)

	// When alice writes to bob
	req.NoError(alice.WriteJSON(map[string]any{
		"event": event.SendMessageType,
		"data":  map[string]any{"conversationId": "direct:bob", "content": "tempo run tonight?"},
	}))

	// Then alice gets the ack and bob the message
	var sent event.MessageSent
	req.NoError(json.Unmarshal(readUntil(t, alice, event.MessageSentType), &sent))
	var received event.ReceiveMessage
	req.NoError(json.Unmarshal(readUntil(t, bob, event.ReceiveMessageType), &received))
	req.Equal(sent.Message.ID, received.Message.ID)
	req.Equal("tempo run tonight?", *received.Message.Content)

	var unread event.UnreadCount
	req.NoError(json.Unmarshal(readUntil(t, bob, event.UpdateUnreadCountType), &unread))
	req.Equal(1, unread.UnreadCount)

	// A bad frame answers with an error and keeps the connection open
	req.NoError(bob.WriteJSON(map[string]any{"event": "dance", "data": map[string]any{}}))
	var failure event.Error
	req.NoError(json.Unmarshal(readUntil(t, bob, event.ErrorType), &failure))
	req.Contains(failure.Message, "invalid payload")

	req.NoError(bob.WriteJSON(map[string]any{
		"event": event.MarkAsReadType,
		"data":  map[string]any{"conversationId": string(sent.ConversationID), "messageId": string(sent.Message.ID)},
	}))
	var read event.MessageRead
	req.NoError(json.Unmarshal(readUntil(t, alice, event.MessageReadType), &read))
	req.Equal(domain.UserID("bob"), read.ReadBy)

	// When bob leaves, alice sees him go offline
	req.NoError(bob.Close())
	var offline event.Presence
	req.NoError(json.Unmarshal(readUntil(t, alice, event.UserOfflineType), &offline))
	req.Equal(domain.UserID("bob"), offline.UserID)
}

func TestServer_ShutdownClosesLiveConnections(t *testing.T) {
	req := require.New(t)
	s := newTestServer(t)
	status, _ := s.do(t, fiber.MethodPut, "/api/me", "alice", map[string]string{"name": "alice"})
	req.Equal(fiber.StatusOK, status)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	go func() { _ = s.app.Listener(listener) }()
	t.Cleanup(func() { _ = s.app.Shutdown() })

	users := repositories.NewUserRepository(repositories.NewStore(s.orch.DB()))
	isOnline := func() bool {
		user, err := users.GetUser(context.Background(), "alice")
		return err == nil && user.IsOnline
	}

	// Given alice connected and stored as online
	alice := dial(t, listener.Addr().String(), s.token(t, "alice"))
	req.Eventually(isOnline, 3*time.Second, 10*time.Millisecond)

	// When the chat server shuts down
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req.NoError(s.orch.Server().Shutdown(ctx))

	// Then her socket is closed and she is stored offline before anything else closes
	req.False(isOnline())
	req.NoError(alice.SetReadDeadline(time.Now().Add(3 * time.Second)))
	for {
		if _, _, err := alice.ReadMessage(); err != nil {
			break
		}
	}

	// A late upgrade is closed without going online
	late, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/ws?token=%s", listener.Addr().String(), s.token(t, "alice")), nil)
	if err == nil {
		req.NoError(late.SetReadDeadline(time.Now().Add(3 * time.Second)))
		_, _, err = late.ReadMessage()
		req.Error(err)
		_ = late.Close()
	}
	req.False(isOnline())
}
