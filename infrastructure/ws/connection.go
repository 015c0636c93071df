package ws

import (
	"context"
	"encoding/json"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Conn is the part of a websocket the connection uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type ConnectionOptions struct {
	OutboundBufferSize int
	InboundBufferSize  int
	WriteTimeout       time.Duration
}

// Connection is one authenticated websocket. It owns three goroutines: the
// reader, the processor handling frames one at a time, and the writer.
type Connection struct {
	id       string
	user     domain.User
	conn     Conn
	chat     contract.IChatService
	log      *slog.Logger
	options  ConnectionOptions
	outbound chan event.Event
	inbound  chan event.Inbound
	done     chan struct{}
	once     sync.Once
	reason   error
}

func NewConnection(log *slog.Logger, user domain.User, conn Conn, chat contract.IChatService, options ConnectionOptions) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:       id,
		user:     user,
		conn:     conn,
		chat:     chat,
		log:      log.With("connection", id, "user", user.ID),
		options:  options,
		outbound: make(chan event.Event, options.OutboundBufferSize),
		inbound:  make(chan event.Inbound, options.InboundBufferSize),
		done:     make(chan struct{}),
	}
}

func (c *Connection) ID() string            { return c.id }
func (c *Connection) UserID() domain.UserID { return c.user.ID }

// Consume queues e for the writer without blocking. A full queue closes the connection.
func (c *Connection) Consume(_ context.Context, e event.Event) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.outbound <- e:
		return nil
	default:
		c.Close(errors.ErrSlowConsumer)
		return errors.ErrSlowConsumer
	}
}

// Close is idempotent; the first reason wins.
func (c *Connection) Close(reason error) {
	c.once.Do(func() {
		c.reason = reason
		close(c.done)
		if err := c.conn.Close(); err != nil {
			c.log.Debug("Error while closing websocket", "error", err)
		}
	})
}

func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Serve blocks until the connection is closed by either side and every goroutine has returned.
func (c *Connection) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.write()
	}()
	go func() {
		defer wg.Done()
		c.process(ctx)
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.Close(errors.ErrConnectionClosed)
		case <-c.done:
		}
	}()

	c.read()
	wg.Wait()
	return c.reason
}

func (c *Connection) read() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.Close(errors.ErrConnectionClosed)
			return
		}
		var frame event.Inbound
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Debug("Unreadable frame", "error", err)
			_ = c.Consume(context.Background(), event.New(event.ErrorType, event.Error{Message: errors.ErrInvalidPayload.Error()}))
			continue
		}
		select {
		case c.inbound <- frame:
		case <-c.done:
			return
		}
	}
}

func (c *Connection) process(ctx context.Context) {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.inbound:
			c.chat.Handle(ctx, c.user.ID, c, frame)
		}
	}
}

func (c *Connection) write() {
	for {
		select {
		case <-c.done:
			return
		case e := <-c.outbound:
			data, err := json.Marshal(e)
			if err != nil {
				c.log.Error("Unable to encode event", "event", e.Type, "error", err)
				continue
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout)); err != nil {
				c.Close(err)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Write failed", "event", e.Type, "error", err)
				c.Close(errors.ErrConnectionClosed)
				return
			}
		}
	}
}
