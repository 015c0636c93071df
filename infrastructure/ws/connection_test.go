package ws

import (
	"context"
	"encoding/json"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"fitpulse-chat/mocks"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeConn feeds reads from a channel and records writes.
type fakeConn struct {
	reads  chan []byte
	mu     sync.Mutex
	writes [][]byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan []byte, 10), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.reads:
		return 1, data, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) written() []event.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []event.Type
	for _, w := range f.writes {
		var frame event.Inbound
		if err := json.Unmarshal(w, &frame); err == nil {
			types = append(types, frame.Type)
		}
	}
	return types
}

var options = ConnectionOptions{OutboundBufferSize: 4, InboundBufferSize: 4, WriteTimeout: time.Second}

func TestConnection_FramesHandledInOrder(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	chat := mocks.NewMockIChatService(ctrl)
	conn := newFakeConn()
	c := NewConnection(logs.GetLoggerFromLevel(slog.LevelDebug), domain.User{ID: "alice"}, conn, chat, options)

	var handled []event.Type
	chat.EXPECT().
		Handle(gomock.Any(), domain.UserID("alice"), c, gomock.Any()).
		Do(func(_ context.Context, _ domain.UserID, _ contract.EventSink, frame event.Inbound) {
			handled = append(handled, frame.Type)
			if len(handled) == 3 {
				c.Close(nil)
			}
		}).
		Times(3)

	conn.reads <- []byte(`{"event":"typing","data":{"conversationId":"c1","isTyping":true}}`)
	conn.reads <- []byte(`{"event":"send_message","data":{"conversationId":"c1","content":"hi"}}`)
	conn.reads <- []byte(`{"event":"mark_as_read","data":{"conversationId":"c1","messageId":"m1"}}`)

	req.NoError(c.Serve(context.Background()))
	req.Equal([]event.Type{event.TypingType, event.SendMessageType, event.MarkAsReadType}, handled)
}

func TestConnection_WritesQueuedEvents(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	conn := newFakeConn()
	c := NewConnection(logs.GetLoggerFromLevel(slog.LevelDebug), domain.User{ID: "alice"}, conn, mocks.NewMockIChatService(ctrl), options)

	done := make(chan error)
	go func() { done <- c.Serve(context.Background()) }()

	req.NoError(c.Consume(context.Background(), event.New(event.UserOnlineType, event.Presence{UserID: "bob"})))
	req.Eventually(func() bool { return len(conn.written()) == 1 }, time.Second, 5*time.Millisecond)

	_ = conn.Close()
	<-done
	req.Equal([]event.Type{event.UserOnlineType}, conn.written())
	req.ErrorIs(c.Consume(context.Background(), event.New(event.UserOfflineType, nil)), errors.ErrConnectionClosed)
}

func TestConnection_OverflowClosesSlowConsumer(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	conn := newFakeConn()
	c := NewConnection(logs.GetLoggerFromLevel(slog.LevelDebug), domain.User{ID: "alice"}, conn, mocks.NewMockIChatService(ctrl), options)

	// Given nobody drains the queue
	for i := 0; i < options.OutboundBufferSize; i++ {
		req.NoError(c.Consume(context.Background(), event.New(event.UserTypingType, nil)))
	}

	// When one more event arrives
	err := c.Consume(context.Background(), event.New(event.UserTypingType, nil))

	// Then the connection is closed rather than blocking the sender
	req.ErrorIs(err, errors.ErrSlowConsumer)
	select {
	case <-c.Done():
	default:
		req.Fail("connection should be closed")
	}
	req.ErrorIs(c.Serve(context.Background()), errors.ErrSlowConsumer)
}

func TestConnection_UnreadableFrameAnsweredWithError(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	conn := newFakeConn()
	c := NewConnection(logs.GetLoggerFromLevel(slog.LevelDebug), domain.User{ID: "alice"}, conn, mocks.NewMockIChatService(ctrl), options)

	done := make(chan error)
	go func() { done <- c.Serve(context.Background()) }()

	conn.reads <- []byte(`not json`)
	req.Eventually(func() bool { return len(conn.written()) == 1 }, time.Second, 5*time.Millisecond)
	req.Equal([]event.Type{event.ErrorType}, conn.written())

	_ = conn.Close()
	req.ErrorIs(<-done, errors.ErrConnectionClosed)
}
