package services

import (
	"context"
	"encoding/json"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"fitpulse-chat/observability"
	"fmt"
	"log/slog"
)

var _ contract.IChatService = (*ChatService)(nil)

// ChatService routes the client frames of one connection to the matching component.
// Frames of one connection are handled one at a time by the caller.
type ChatService struct {
	log        *slog.Logger
	pipeline   *MessagePipeline
	typing     *TypingCoordinator
	receipts   *ReadReceipts
	groups     *GroupService
	monitoring *observability.MonitoringManager
}

func NewChatService(log *slog.Logger,
	pipeline *MessagePipeline,
	typing *TypingCoordinator,
	receipts *ReadReceipts,
	groups *GroupService,
	monitoring *observability.MonitoringManager) *ChatService {
	return &ChatService{
		log:        log,
		pipeline:   pipeline,
		typing:     typing,
		receipts:   receipts,
		groups:     groups,
		monitoring: monitoring,
	}
}

// Handle never returns an error: failures go back to the originating connection
// as an error event and the connection stays open.
func (s *ChatService) Handle(ctx context.Context, user domain.UserID, sink contract.EventSink, frame event.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Handler panic recovered", "event", frame.Type, "user", user, "panic", r)
			s.fail(ctx, sink, fmt.Errorf("handler panic: %v", r))
		}
	}()

	if err := s.dispatch(ctx, user, sink, frame); err != nil {
		s.fail(ctx, sink, err)
	}
}

func (s *ChatService) dispatch(ctx context.Context, user domain.UserID, sink contract.EventSink, frame event.Inbound) error {
	switch frame.Type {
	case event.SendMessageType:
		var cmd domain.SendMessageCommand
		if err := decode(frame, &cmd); err != nil {
			return err
		}
		_, err := s.pipeline.Send(ctx, user, cmd)
		return err
	case event.TypingType:
		var cmd domain.TypingCommand
		if err := decode(frame, &cmd); err != nil {
			return err
		}
		return s.typing.SetTyping(ctx, user, cmd)
	case event.MarkAsReadType:
		var cmd domain.MarkReadCommand
		if err := decode(frame, &cmd); err != nil {
			return err
		}
		return s.receipts.MarkRead(ctx, user, cmd)
	case event.JoinGroupType:
		var cmd domain.GroupCommand
		if err := decode(frame, &cmd); err != nil {
			return err
		}
		return s.groups.JoinChannel(ctx, user, sink, cmd)
	case event.LeaveGroupType:
		var cmd domain.GroupCommand
		if err := decode(frame, &cmd); err != nil {
			return err
		}
		return s.groups.LeaveChannel(sink, cmd)
	default:
		return fmt.Errorf("%w: unknown event %q", errors.ErrInvalidPayload, frame.Type)
	}
}

func (s *ChatService) fail(ctx context.Context, sink contract.EventSink, err error) {
	s.monitoring.IncrActionErrors()
	switch {
	case errors.Is(err, errors.ErrInvalidPayload),
		errors.Is(err, errors.ErrNotFound),
		errors.Is(err, errors.ErrAccessDenied):
		s.log.Debug("Action rejected", "connection", sink.ID(), "error", err)
	default:
		s.log.Warn("Action failed", "connection", sink.ID(), "error", err)
	}
	if consumeErr := sink.Consume(ctx, event.New(event.ErrorType, event.Error{Message: errors.ClientMessage(err)})); consumeErr != nil {
		s.log.Debug("Error event not delivered", "connection", sink.ID(), "error", consumeErr)
	}
}

func decode(frame event.Inbound, v any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%w: missing data", errors.ErrInvalidPayload)
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}
