package internal

import (
	"context"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/infrastructure/ws"
	"fitpulse-chat/moderation"
	"fitpulse-chat/observability"
	"fitpulse-chat/repositories"
	"fitpulse-chat/runtime"
	"fitpulse-chat/runtime/workers"
	"fitpulse-chat/services"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const publishTimeout = 5 * time.Second

// Orchestrator wires the chat core: stores, runtime tables, services, transport
// and the background workers it supervises. It holds no business logic.
type Orchestrator struct {
	log        *slog.Logger
	config     Config
	db         *badger.DB
	supervisor *workers.Supervisor
	presence   *runtime.Registry
	channels   *runtime.Channels
	monitoring *observability.MonitoringManager
	persisted  chan event.MessagePersisted
	offline    chan event.OfflineDelivery
	index      contract.IMessageIndex
	publisher  contract.IPublisher
	server     *ws.Server
}

func NewOrchestrator(log *slog.Logger,
	config Config,
	db *badger.DB,
	index contract.IMessageIndex,
	publisher contract.IPublisher,
	verifier contract.ICredentialVerifier) (*Orchestrator, error) {
	moderator, err := prepareModeration(log, config.CharReplacement)
	if err != nil {
		return nil, err
	}

	monitoring := observability.NewMonitoringManager(log)
	o := &Orchestrator{
		log:        log,
		config:     config,
		db:         db,
		supervisor: workers.NewSupervisor(log, config.RestartInterval, monitoring),
		presence:   runtime.NewRegistry(),
		channels:   runtime.NewChannels(),
		monitoring: monitoring,
		persisted:  make(chan event.MessagePersisted, config.BufferSize),
		offline:    make(chan event.OfflineDelivery, config.BufferSize),
		index:      index,
		publisher:  publisher,
	}

	store := repositories.NewStore(db)
	users := repositories.NewUserRepository(store)
	conversations := repositories.NewConversationRepository(store)
	groups := repositories.NewGroupRepository(store)
	messages := repositories.NewMessageRepository(store, log, config.LimitMessages)

	fanout := runtime.NewFanout(log, o.monitoring, config.SinkTimeout)
	directory := services.NewDirectory(users, conversations, groups)
	router := services.NewRouter(o.presence, o.channels)
	pipeline := services.NewMessagePipeline(log, directory, conversations, messages, router, fanout, moderator, o.monitoring,
		services.PipelineConfig{StoreTimeout: config.StoreTimeout, MaxContentLength: config.MaxContentLength},
		o.persisted, o.offline)
	typing := services.NewTypingCoordinator(directory, router, fanout, config.StoreTimeout)
	receipts := services.NewReadReceipts(log, directory, conversations, messages, router, fanout, config.StoreTimeout)
	groupService := services.NewGroupService(users, groups, o.channels, config.StoreTimeout)
	history := services.NewHistoryService(log, directory, messages, index, config.StoreTimeout)
	profiles := services.NewProfileService(users, config.StoreTimeout)
	gateway := services.NewGateway(log, verifier, users, o.presence, o.channels, fanout, o.monitoring, config.StoreTimeout)
	chat := services.NewChatService(log, pipeline, typing, receipts, groupService, o.monitoring)

	o.server = ws.NewServer(log, verifier, gateway, chat, groupService, history, profiles, ws.ConnectionOptions{
		OutboundBufferSize: config.ConnectionBufferSize,
		InboundBufferSize:  config.InboundBufferSize,
		WriteTimeout:       config.WriteTimeout,
	})
	return o, nil
}

// prepareModeration loads censored words and builds the Aho-Corasick automaton.
func prepareModeration(log *slog.Logger, charReplacement string) (*moderation.Moderator, error) {
	char, err := CharacterRune(charReplacement)
	if err != nil {
		return nil, err
	}
	data, err := moderation.NewCensoredLoader(moderation.Censored).LoadAll(moderation.CensoredDir)
	if err != nil {
		return nil, err
	}
	log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	return moderation.NewModerator(data.Words, char, log)
}

func (o *Orchestrator) Server() *ws.Server {
	return o.server
}

func (o *Orchestrator) Monitoring() *observability.MonitoringManager {
	return o.monitoring
}

func (o *Orchestrator) DB() *badger.DB {
	return o.db
}

// Start runs the supervised workers until ctx is canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.supervisor.Add(
		workers.NewIndexWorker(o.index, o.persisted, o.monitoring, o.log),
		workers.NewNotifierWorker(o.publisher, o.offline, publishTimeout, o.log),
		workers.NewTelemetryWorker(o.log, o.config.MetricInterval, o.presence, o.channels, o.monitoring),
		workers.NewChannelCapacityWorker(o.log, []workers.NamedChannel{
			{Name: "persisted", Channel: o.persisted},
			{Name: "offline", Channel: o.offline},
		}, o.monitoring, o.config.MetricInterval, o.config.LowCapacityThreshold),
	)
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
}

func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
