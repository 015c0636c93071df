package repositories

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

type IGroupRepository interface {
	CreateGroup(ctx context.Context, group domain.Group) (domain.Group, error)
	GetGroup(ctx context.Context, id domain.GroupID) (domain.Group, error)
	AddMember(ctx context.Context, id domain.GroupID, member domain.GroupMembership) (domain.Group, error)
	RemoveMember(ctx context.Context, id domain.GroupID, user domain.UserID) (domain.Group, error)
}

// GroupRepository keeps a group and its conversation in step: every write touches
// both rows in the same transaction so participants always equal members.
type GroupRepository struct {
	store Store
}

func NewGroupRepository(store Store) *GroupRepository {
	return &GroupRepository{store: store}
}

func groupKey(id domain.GroupID) string {
	return groupPrefix + string(id)
}

func (g *GroupRepository) CreateGroup(ctx context.Context, group domain.Group) (domain.Group, error) {
	group.ConversationID = domain.GroupConversationID(group.ID)
	err := g.store.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(groupKey(group.ID))); err == nil {
			return fmt.Errorf("%w: group %s already exists", errors.ErrInvalidPayload, group.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		conv := domain.Conversation{
			ID:           group.ConversationID,
			Kind:         domain.GroupConversation,
			Participants: group.MemberIDs(),
			GroupID:      group.ID,
			Settings:     map[domain.UserID]domain.ParticipantSettings{},
			Unread:       map[domain.UserID]int{},
			CreatedAt:    group.CreatedAt,
			UpdatedAt:    group.CreatedAt,
		}
		for _, member := range conv.Participants {
			conv.Unread[member] = 0
		}
		if err := setJSON(txn, groupKey(group.ID), group); err != nil {
			return err
		}
		return setJSON(txn, conversationKey(conv.ID), conv)
	})
	return group, err
}

func (g *GroupRepository) GetGroup(ctx context.Context, id domain.GroupID) (domain.Group, error) {
	var group domain.Group
	err := g.store.view(ctx, func(txn *badger.Txn) error {
		return getJSON(txn, groupKey(id), &group)
	})
	return group, err
}

// AddMember is idempotent: adding an existing member leaves both rows unchanged.
func (g *GroupRepository) AddMember(ctx context.Context, id domain.GroupID, member domain.GroupMembership) (domain.Group, error) {
	return g.mutate(ctx, id, func(group *domain.Group, conv *domain.Conversation) bool {
		if !group.AddMember(member) {
			return false
		}
		if _, ok := conv.Unread[member.UserID]; !ok {
			conv.Unread[member.UserID] = 0
		}
		return true
	})
}

func (g *GroupRepository) RemoveMember(ctx context.Context, id domain.GroupID, user domain.UserID) (domain.Group, error) {
	return g.mutate(ctx, id, func(group *domain.Group, conv *domain.Conversation) bool {
		if !group.RemoveMember(user) {
			return false
		}
		delete(conv.Unread, user)
		delete(conv.Settings, user)
		return true
	})
}

func (g *GroupRepository) mutate(ctx context.Context, id domain.GroupID, fn func(*domain.Group, *domain.Conversation) bool) (domain.Group, error) {
	var group domain.Group
	err := g.store.update(ctx, func(txn *badger.Txn) error {
		group = domain.Group{}
		if err := getJSON(txn, groupKey(id), &group); err != nil {
			return err
		}
		var conv domain.Conversation
		if err := getJSON(txn, conversationKey(group.ConversationID), &conv); err != nil {
			return err
		}
		if conv.Unread == nil {
			conv.Unread = map[domain.UserID]int{}
		}
		if !fn(&group, &conv) {
			return nil
		}
		conv.Participants = group.MemberIDs()
		if err := setJSON(txn, groupKey(id), group); err != nil {
			return err
		}
		return setJSON(txn, conversationKey(conv.ID), conv)
	})
	return group, err
}
