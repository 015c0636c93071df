package services

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"fitpulse-chat/moderation"
	"fitpulse-chat/observability"
	"fitpulse-chat/repositories"
	"fitpulse-chat/runtime"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type PipelineConfig struct {
	StoreTimeout     time.Duration
	MaxContentLength int
}

// MessagePipeline validates, persists and fans out chat messages.
type MessagePipeline struct {
	log           *slog.Logger
	directory     *Directory
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	router        *Router
	fanout        *runtime.Fanout
	moderator     *moderation.Moderator
	monitoring    *observability.MonitoringManager
	config        PipelineConfig
	persisted     chan<- event.MessagePersisted
	offline       chan<- event.OfflineDelivery
}

func NewMessagePipeline(log *slog.Logger,
	directory *Directory,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	router *Router,
	fanout *runtime.Fanout,
	moderator *moderation.Moderator,
	monitoring *observability.MonitoringManager,
	config PipelineConfig,
	persisted chan<- event.MessagePersisted,
	offline chan<- event.OfflineDelivery) *MessagePipeline {
	return &MessagePipeline{
		log:           log,
		directory:     directory,
		conversations: conversations,
		messages:      messages,
		router:        router,
		fanout:        fanout,
		moderator:     moderator,
		monitoring:    monitoring,
		config:        config,
		persisted:     persisted,
		offline:       offline,
	}
}

// Send runs one send_message through the pipeline. Nothing is fanned out unless the message is durable.
func (p *MessagePipeline) Send(ctx context.Context, sender domain.UserID, cmd domain.SendMessageCommand) (domain.Message, error) {
	content, media, messageType, err := p.validate(cmd)
	if err != nil {
		return domain.Message{}, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, p.config.StoreTimeout)
	defer cancel()

	conv, err := p.directory.Open(storeCtx, sender, cmd.ConversationID, false, true)
	if err != nil {
		return domain.Message{}, err
	}
	if err := p.checkReplyTo(storeCtx, conv.ID, cmd.ReplyTo); err != nil {
		return domain.Message{}, err
	}

	now := time.Now().UTC()
	msg := domain.Message{
		ID:             domain.MessageID(uuid.NewString()),
		ConversationID: conv.ID,
		SenderID:       sender,
		Content:        content,
		Media:          media,
		Type:           messageType,
		Status:         domain.StatusSent,
		ReplyTo:        cmd.ReplyTo,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if conv.IsGroup() {
		groupID := conv.GroupID
		msg.GroupID = &groupID
	} else if peer, ok := conv.Peer(sender); ok {
		msg.ReceiverID = &peer
	}

	group := conv.Group
	conv, err = p.conversations.AppendMessage(storeCtx, msg)
	if err != nil {
		return domain.Message{}, err
	}
	conv.Group = group
	p.monitoring.IncrMessagesSent()

	p.dispatch(ctx, storeCtx, conv, msg)
	return msg, nil
}

// checkReplyTo accepts only a reply to a message of the same conversation.
func (p *MessagePipeline) checkReplyTo(ctx context.Context, conv domain.ConversationID, replyTo *domain.MessageID) error {
	if replyTo == nil {
		return nil
	}
	original, err := p.messages.GetMessage(ctx, *replyTo)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return fmt.Errorf("%w: reply to unknown message %s", errors.ErrInvalidPayload, *replyTo)
	case err != nil:
		return err
	case original.ConversationID != conv:
		return fmt.Errorf("%w: reply to a message of another conversation", errors.ErrInvalidPayload)
	}
	return nil
}

func (p *MessagePipeline) validate(cmd domain.SendMessageCommand) (*string, *domain.Media, domain.MessageType, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, nil, "", fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}

	var content *string
	if cmd.Content != nil && strings.TrimSpace(*cmd.Content) != "" {
		text := *cmd.Content
		if p.config.MaxContentLength > 0 && utf8.RuneCountInString(text) > p.config.MaxContentLength {
			return nil, nil, "", fmt.Errorf("%w: content exceeds %d characters", errors.ErrInvalidPayload, p.config.MaxContentLength)
		}
		if p.moderator != nil {
			text, _ = p.moderator.Censor(text)
		}
		content = &text
	}
	if content == nil && cmd.Media == nil {
		return nil, nil, "", fmt.Errorf("%w: message must have content or media", errors.ErrInvalidPayload)
	}

	messageType := cmd.MessageType
	if cmd.Media != nil {
		inferred, err := cmd.Media.Type()
		if err != nil {
			return nil, nil, "", fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		}
		if messageType == "" {
			messageType = inferred
		}
	}
	if messageType == "" {
		messageType = domain.TextMessage
	}
	return content, cmd.Media, messageType, nil
}

// dispatch acknowledges the sender, then per recipient: receive_message,
// update_unread_count and stop_typing, in that order.
func (p *MessagePipeline) dispatch(ctx, storeCtx context.Context, conv domain.Conversation, msg domain.Message) {
	p.fanout.Deliver(ctx, p.router.Own(msg.SenderID), event.New(event.MessageSentType, event.MessageSent{
		ConversationID: conv.ID,
		Message:        msg,
	}))

	var groupName string
	var groupID *domain.GroupID
	if conv.Group != nil {
		groupName = conv.Group.Name
		groupID = &conv.Group.ID
	}
	receive := event.New(event.ReceiveMessageType, event.ReceiveMessage{
		ConversationID: conv.ID,
		Message:        msg,
		GroupName:      groupName,
	})
	stopTyping := event.New(event.StopTypingType, event.UserTyping{
		UserID:         msg.SenderID,
		User:           p.router.Summary(msg.SenderID),
		ConversationID: conv.ID,
		GroupID:        groupID,
		IsTyping:       false,
	})

	recipients := p.router.Recipients(conv, msg.SenderID)
	live := false
	for user, conns := range recipients {
		if p.fanout.Deliver(ctx, conns, receive) == 0 {
			delete(recipients, user)
			continue
		}
		live = true
		p.fanout.Deliver(ctx, conns, event.New(event.UpdateUnreadCountType, event.UnreadCount{
			ConversationID: conv.ID,
			UnreadCount:    conv.UnreadFor(user),
		}))
		p.fanout.Deliver(ctx, conns, stopTyping)
	}

	if live {
		if _, _, err := p.messages.AdvanceStatus(storeCtx, msg.ID, domain.StatusDelivered); err != nil {
			p.log.Warn("Unable to mark message as delivered", "message", msg.ID, "error", err)
		}
	}

	select {
	case p.persisted <- event.MessagePersisted{Message: msg}:
	default:
		p.log.Debug("Index queue full, message not indexed", "message", msg.ID)
	}

	var offline []domain.UserID
	for _, user := range conv.Others(msg.SenderID) {
		if _, ok := recipients[user]; ok || conv.Settings[user].Muted {
			continue
		}
		offline = append(offline, user)
	}
	if len(offline) == 0 {
		return
	}
	select {
	case p.offline <- event.OfflineDelivery{Message: msg, GroupName: groupName, Recipients: offline}:
		p.monitoring.IncrOfflineQueued()
	default:
		p.log.Warn("Offline queue full, notification dropped", "message", msg.ID, "recipients", len(offline))
	}
}
