package services

import (
	"context"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"fitpulse-chat/observability"
	"fitpulse-chat/repositories"
	"fitpulse-chat/runtime"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

const transitionStripes = 64

// Gateway authenticates connections and announces presence transitions.
type Gateway struct {
	log          *slog.Logger
	verifier     contract.ICredentialVerifier
	users        repositories.IUserRepository
	presence     *runtime.Registry
	channels     *runtime.Channels
	fanout       *runtime.Fanout
	monitoring   *observability.MonitoringManager
	storeTimeout time.Duration

	// transitions serializes the presence effects of one user: registry change,
	// persisted flag and broadcast happen in the same order for every transition.
	transitions [transitionStripes]sync.Mutex
}

func NewGateway(log *slog.Logger,
	verifier contract.ICredentialVerifier,
	users repositories.IUserRepository,
	presence *runtime.Registry,
	channels *runtime.Channels,
	fanout *runtime.Fanout,
	monitoring *observability.MonitoringManager,
	storeTimeout time.Duration) *Gateway {
	return &Gateway{
		log:          log,
		verifier:     verifier,
		users:        users,
		presence:     presence,
		channels:     channels,
		fanout:       fanout,
		monitoring:   monitoring,
		storeTimeout: storeTimeout,
	}
}

// Authenticate maps a credential to a known user. Every failure is handshake-fatal.
func (g *Gateway) Authenticate(ctx context.Context, credential string) (domain.User, error) {
	user, err := g.authenticate(ctx, credential)
	if err != nil {
		g.monitoring.IncrRejected()
	}
	return user, err
}

func (g *Gateway) authenticate(ctx context.Context, credential string) (domain.User, error) {
	if credential == "" {
		return domain.User{}, errors.ErrNoCredential
	}
	userID, err := g.verifier.Verify(credential)
	if err != nil {
		return domain.User{}, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, g.storeTimeout)
	defer cancel()
	user, err := g.users.GetUser(storeCtx, userID)
	if errors.Is(err, errors.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: %s", errors.ErrUnknownUser, userID)
	}
	return user, err
}

// Connect registers an authenticated connection. The user's first connection
// marks it online and tells every other connected peer.
func (g *Gateway) Connect(ctx context.Context, user domain.User, sink contract.EventSink) {
	g.monitoring.IncrConnectionsOpened()
	user.IsOnline = true
	unlock := g.lockTransitions(user.ID)
	defer unlock()
	if !g.presence.Register(user, sink) {
		return
	}

	now := time.Now().UTC()
	g.persistPresence(ctx, user.ID, true, time.Time{})
	g.fanout.Deliver(ctx, g.presence.Everyone(user.ID), event.New(event.UserOnlineType, event.Presence{
		UserID:   user.ID,
		User:     user.Summary(),
		LastSeen: now,
	}))
	g.log.Info("User online", "user", user.ID)
}

// Disconnect is safe to call more than once per connection: only the removal of the
// user's last connection marks it offline and broadcasts.
func (g *Gateway) Disconnect(ctx context.Context, user domain.User, sink contract.EventSink) {
	g.channels.Remove(sink.ID())
	unlock := g.lockTransitions(user.ID)
	defer unlock()
	if !g.presence.Unregister(user.ID, sink.ID()) {
		return
	}

	lastSeen := time.Now().UTC()
	g.persistPresence(ctx, user.ID, false, lastSeen)
	g.fanout.Deliver(ctx, g.presence.Everyone(user.ID), event.New(event.UserOfflineType, event.Presence{
		UserID:   user.ID,
		User:     user.Summary(),
		LastSeen: lastSeen,
	}))
	g.log.Info("User offline", "user", user.ID)
}

func (g *Gateway) lockTransitions(user domain.UserID) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(user))
	mu := &g.transitions[h.Sum32()%transitionStripes]
	mu.Lock()
	return mu.Unlock
}

func (g *Gateway) persistPresence(ctx context.Context, user domain.UserID, online bool, lastSeen time.Time) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.storeTimeout)
	defer cancel()
	if err := g.users.SetPresence(storeCtx, user, online, lastSeen); err != nil {
		g.log.Warn("Unable to persist presence", "user", user, "online", online, "error", err)
	}
}
