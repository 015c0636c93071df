package services

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/errors"
	"fitpulse-chat/repositories"
	"fmt"
)

// Directory turns a raw conversation identifier into a conversation and decides who may use it.
type Directory struct {
	users         repositories.IUserRepository
	conversations repositories.IConversationRepository
	groups        repositories.IGroupRepository
}

func NewDirectory(users repositories.IUserRepository,
	conversations repositories.IConversationRepository,
	groups repositories.IGroupRepository) *Directory {
	return &Directory{users: users, conversations: conversations, groups: groups}
}

// Parse inspects the raw identifier. forceGroup treats a bare id as a group id.
func (d *Directory) Parse(raw string, forceGroup bool) (domain.ConversationRef, error) {
	ref, ok := domain.ParseConversationRef(raw)
	if !ok {
		return ref, fmt.Errorf("%w: conversationId is required", errors.ErrInvalidPayload)
	}
	if forceGroup && ref.Kind == domain.RefDirectID {
		ref.Kind = domain.RefGroup
	}
	return ref, nil
}

// Resolve loads the conversation a reference points to. With create, a
// direct:<peer> reference opens the conversation when it doesn't exist yet.
func (d *Directory) Resolve(ctx context.Context, caller domain.UserID, ref domain.ConversationRef, create bool) (domain.Conversation, error) {
	switch ref.Kind {
	case domain.RefGroup:
		return d.resolveGroup(ctx, domain.GroupID(ref.ID))
	case domain.RefDirectPeer:
		peer := domain.UserID(ref.ID)
		if !create {
			return d.conversations.FindDirect(ctx, caller, peer)
		}
		if _, err := d.users.GetUser(ctx, peer); err != nil {
			return domain.Conversation{}, err
		}
		return d.conversations.FindOrCreateDirect(ctx, caller, peer)
	default:
		conv, err := d.conversations.GetConversation(ctx, domain.ConversationID(ref.ID))
		if err != nil {
			return domain.Conversation{}, err
		}
		if conv.IsGroup() {
			return d.resolveGroup(ctx, conv.GroupID)
		}
		return conv, nil
	}
}

func (d *Directory) resolveGroup(ctx context.Context, id domain.GroupID) (domain.Conversation, error) {
	group, err := d.groups.GetGroup(ctx, id)
	if err != nil {
		return domain.Conversation{}, err
	}
	conv, err := d.conversations.GetConversation(ctx, group.ConversationID)
	if err != nil {
		return domain.Conversation{}, err
	}
	conv.Group = &group
	return conv, nil
}

// Authorize checks the caller belongs to the conversation: one of the two
// participants of a direct one, a member of the group otherwise.
func (d *Directory) Authorize(caller domain.UserID, conv domain.Conversation) error {
	allowed := conv.HasParticipant(caller)
	if conv.IsGroup() && conv.Group != nil {
		allowed = conv.Group.HasMember(caller)
	}
	if !allowed {
		return fmt.Errorf("%w: %s is not part of %s", errors.ErrAccessDenied, caller, conv.ID)
	}
	return nil
}

// Open parses, resolves and authorizes in one go.
func (d *Directory) Open(ctx context.Context, caller domain.UserID, raw string, forceGroup, create bool) (domain.Conversation, error) {
	ref, err := d.Parse(raw, forceGroup)
	if err != nil {
		return domain.Conversation{}, err
	}
	conv, err := d.Resolve(ctx, caller, ref, create)
	if err != nil {
		return domain.Conversation{}, err
	}
	if err := d.Authorize(caller, conv); err != nil {
		return domain.Conversation{}, err
	}
	return conv, nil
}
