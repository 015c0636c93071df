//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is one live connection as seen by the fan-out.
// Consume must never block on a slow peer.
type EventSink interface {
	ID() string
	UserID() domain.UserID
	Consume(ctx context.Context, e event.Event) error
}

// ICredentialVerifier turns a bearer credential into a verified identity.
type ICredentialVerifier interface {
	Verify(credential string) (domain.UserID, error)
}

type IPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
	Close() error
}

type IMessageIndex interface {
	Index(ctx context.Context, msg domain.Message, lang string) error
	Search(ctx context.Context, conversationID domain.ConversationID, terms string, sender *domain.UserID, limit int) ([]domain.MessageID, error)
	Close() error
}

// IChatService handles the client frames of one connection.
type IChatService interface {
	Handle(ctx context.Context, user domain.UserID, sink EventSink, frame event.Inbound)
}
