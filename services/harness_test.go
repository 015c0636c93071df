package services

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/moderation"
	"fitpulse-chat/observability"
	"fitpulse-chat/repositories"
	"fitpulse-chat/runtime"
	"fitpulse-chat/search"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// recorder is an in-memory connection keeping every event it accepted.
type recorder struct {
	id     string
	user   domain.UserID
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) ID() string            { return r.id }
func (r *recorder) UserID() domain.UserID { return r.user }

func (r *recorder) Consume(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(r.events, func(e event.Event, _ int) event.Type { return e.Type })
}

func (r *recorder) Of(t event.Type) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Filter(r.events, func(e event.Event, _ int) bool { return e.Type == t })
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type harness struct {
	log           *slog.Logger
	users         *repositories.UserRepository
	conversations *repositories.ConversationRepository
	groupRepo     *repositories.GroupRepository
	messages      *repositories.MessageRepository
	presence      *runtime.Registry
	channels      *runtime.Channels
	fanout        *runtime.Fanout
	monitoring    *observability.MonitoringManager
	directory     *Directory
	router        *Router
	pipeline      *MessagePipeline
	typing        *TypingCoordinator
	receipts      *ReadReceipts
	groups        *GroupService
	history       *HistoryService
	index         *search.Index
	chat          *ChatService
	persisted     chan event.MessagePersisted
	offline       chan event.OfflineDelivery
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })
	index, err := search.OpenIndex(t.TempDir(), log)
	req.NoError(err)
	t.Cleanup(func() { _ = index.Close() })

	moderator, err := moderation.NewModerator([]string{"merde"}, '*', log)
	req.NoError(err)

	store := repositories.NewStore(db)
	h := &harness{
		log:           log,
		users:         repositories.NewUserRepository(store),
		conversations: repositories.NewConversationRepository(store),
		groupRepo:     repositories.NewGroupRepository(store),
		messages:      repositories.NewMessageRepository(store, log, lo.ToPtr(50)),
		presence:      runtime.NewRegistry(),
		channels:      runtime.NewChannels(),
		monitoring:    observability.NewMonitoringManager(log),
		index:         index,
		persisted:     make(chan event.MessagePersisted, 100),
		offline:       make(chan event.OfflineDelivery, 100),
	}
	storeTimeout := 2 * time.Second
	h.fanout = runtime.NewFanout(log, h.monitoring, time.Second)
	h.directory = NewDirectory(h.users, h.conversations, h.groupRepo)
	h.router = NewRouter(h.presence, h.channels)
	h.pipeline = NewMessagePipeline(log, h.directory, h.conversations, h.messages, h.router, h.fanout, moderator, h.monitoring,
		PipelineConfig{StoreTimeout: storeTimeout, MaxContentLength: 200}, h.persisted, h.offline)
	h.typing = NewTypingCoordinator(h.directory, h.router, h.fanout, storeTimeout)
	h.receipts = NewReadReceipts(log, h.directory, h.conversations, h.messages, h.router, h.fanout, storeTimeout)
	h.groups = NewGroupService(h.users, h.groupRepo, h.channels, storeTimeout)
	h.history = NewHistoryService(log, h.directory, h.messages, index, storeTimeout)
	h.chat = NewChatService(log, h.pipeline, h.typing, h.receipts, h.groups, h.monitoring)
	return h
}

// user stores a profile for id.
func (h *harness) user(t *testing.T, id domain.UserID) domain.User {
	t.Helper()
	user, err := h.users.UpsertProfile(context.Background(), domain.UserSummary{ID: id, Name: string(id)})
	require.NoError(t, err)
	return user
}

// connect stores the user if needed and registers a live connection.
func (h *harness) connect(t *testing.T, id domain.UserID, connID string) *recorder {
	t.Helper()
	user := h.user(t, id)
	sink := &recorder{id: connID, user: id}
	h.presence.Register(user, sink)
	return sink
}

func (h *harness) group(t *testing.T, admin domain.UserID, members ...domain.UserID) domain.Group {
	t.Helper()
	h.user(t, admin)
	for _, m := range members {
		h.user(t, m)
	}
	group, err := h.groups.Create(context.Background(), admin, "Morning runners", members)
	require.NoError(t, err)
	return group
}

func text(conversationID, content string) domain.SendMessageCommand {
	return domain.SendMessageCommand{ConversationID: conversationID, Content: lo.ToPtr(content)}
}
