package ws

import (
	"context"
	"fitpulse-chat/auth"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/errors"
	"fitpulse-chat/services"
	"log/slog"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const (
	userLocal     = "user"
	userIDLocal   = "user_id"
	tokenQueryKey = "token"
)

// SessionGateway authenticates connections and tracks their presence.
type SessionGateway interface {
	Authenticate(ctx context.Context, credential string) (domain.User, error)
	Connect(ctx context.Context, user domain.User, sink contract.EventSink)
	Disconnect(ctx context.Context, user domain.User, sink contract.EventSink)
}

type Server struct {
	log      *slog.Logger
	verifier contract.ICredentialVerifier
	gateway  SessionGateway
	chat     contract.IChatService
	groups   *services.GroupService
	history  *services.HistoryService
	profiles *services.ProfileService
	options  ConnectionOptions

	// live connections run under ctx; Shutdown cancels it and waits for their Disconnect.
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	closed bool
	live   sync.WaitGroup
}

func NewServer(log *slog.Logger,
	verifier contract.ICredentialVerifier,
	gateway SessionGateway,
	chat contract.IChatService,
	groups *services.GroupService,
	history *services.HistoryService,
	profiles *services.ProfileService,
	options ConnectionOptions) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
		verifier: verifier,
		gateway:  gateway,
		chat:     chat,
		groups:   groups,
		history:  history,
		profiles: profiles,
		options:  options,
	}
}

// Register mounts the websocket endpoint and the REST routes on app.
func (s *Server) Register(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	app.Use("/ws", s.authenticate, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	app.Get("/ws", websocket.New(s.serveConnection))

	api := app.Group("/api")
	api.Put("/me", s.identify, s.syncProfile)
	api.Post("/groups", s.authenticate, s.createGroup)
	api.Post("/groups/:id/members", s.authenticate, s.addMember)
	api.Delete("/groups/:id/members/:userId", s.authenticate, s.removeMember)
	api.Get("/conversations/:id/messages", s.authenticate, s.messages)
	api.Get("/conversations/:id/search", s.authenticate, s.search)
}

// authenticate rejects the request before any upgrade unless the credential belongs to a known user.
func (s *Server) authenticate(c *fiber.Ctx) error {
	credential := auth.ExtractCredential(c.Get(fiber.HeaderAuthorization), c.Query(tokenQueryKey))
	user, err := s.gateway.Authenticate(c.UserContext(), credential)
	if err != nil {
		s.log.Debug("Handshake rejected", "path", c.Path(), "error", err)
		return fail(c, err)
	}
	c.Locals(userLocal, user)
	c.Locals(userIDLocal, user.ID)
	return c.Next()
}

// identify only verifies the credential: the user may not be stored yet.
func (s *Server) identify(c *fiber.Ctx) error {
	credential := auth.ExtractCredential(c.Get(fiber.HeaderAuthorization), c.Query(tokenQueryKey))
	if credential == "" {
		return fail(c, errors.ErrNoCredential)
	}
	userID, err := s.verifier.Verify(credential)
	if err != nil {
		return fail(c, err)
	}
	c.Locals(userIDLocal, userID)
	return c.Next()
}

func (s *Server) serveConnection(wc *websocket.Conn) {
	user, ok := wc.Locals(userLocal).(domain.User)
	if !ok || !s.track() {
		_ = wc.Close()
		return
	}
	defer s.live.Done()

	conn := NewConnection(s.log, user, wc, s.chat, s.options)
	s.gateway.Connect(s.ctx, user, conn)
	defer s.gateway.Disconnect(s.ctx, user, conn)

	reason := conn.Serve(s.ctx)
	s.log.Debug("Connection closed", "connection", conn.ID(), "user", user.ID, "reason", reason)
}

// track counts a new live connection unless Shutdown already ran.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.live.Add(1)
	return true
}

// Shutdown closes every live websocket and waits until each one went through
// Disconnect, so presence is persisted before the store closes.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusOf(err)).JSON(fiber.Map{"error": errors.ClientMessage(err)})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrNoCredential),
		errors.Is(err, errors.ErrInvalidCredential),
		errors.Is(err, errors.ErrCredentialExpired),
		errors.Is(err, errors.ErrUnknownUser):
		return fiber.StatusUnauthorized
	case errors.Is(err, errors.ErrInvalidPayload):
		return fiber.StatusBadRequest
	case errors.Is(err, errors.ErrAccessDenied):
		return fiber.StatusForbidden
	case errors.Is(err, errors.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errors.ErrTimeout):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
