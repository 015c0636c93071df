package services

import (
	"context"
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/errors"
	"fitpulse-chat/repositories"
	"fitpulse-chat/runtime"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// GroupService manages memberships and binds connections to group channels.
type GroupService struct {
	users        repositories.IUserRepository
	groups       repositories.IGroupRepository
	channels     *runtime.Channels
	storeTimeout time.Duration
}

func NewGroupService(users repositories.IUserRepository, groups repositories.IGroupRepository, channels *runtime.Channels, storeTimeout time.Duration) *GroupService {
	return &GroupService{users: users, groups: groups, channels: channels, storeTimeout: storeTimeout}
}

// Create makes the creator the group's admin and every listed user a member.
func (s *GroupService) Create(ctx context.Context, creator domain.UserID, name string, members []domain.UserID) (domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Group{}, fmt.Errorf("%w: group name is required", errors.ErrInvalidPayload)
	}
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	now := time.Now().UTC()
	group := domain.Group{ID: domain.GroupID(uuid.NewString()), Name: name, CreatedBy: creator, CreatedAt: now}
	group.AddMember(domain.GroupMembership{UserID: creator, Role: domain.RoleAdmin, JoinedAt: now, AddedBy: creator})
	for _, member := range lo.Uniq(members) {
		if err := s.mustExist(storeCtx, member); err != nil {
			return domain.Group{}, err
		}
		group.AddMember(domain.GroupMembership{UserID: member, Role: domain.RoleMember, JoinedAt: now, AddedBy: creator})
	}
	return s.groups.CreateGroup(storeCtx, group)
}

// AddMember is restricted to admins.
func (s *GroupService) AddMember(ctx context.Context, actor domain.UserID, id domain.GroupID, user domain.UserID) (domain.Group, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	group, err := s.groups.GetGroup(storeCtx, id)
	if err != nil {
		return domain.Group{}, err
	}
	if !group.IsAdmin(actor) {
		return domain.Group{}, fmt.Errorf("%w: only admins add members", errors.ErrAccessDenied)
	}
	if err := s.mustExist(storeCtx, user); err != nil {
		return domain.Group{}, err
	}
	return s.groups.AddMember(storeCtx, id, domain.GroupMembership{
		UserID:   user,
		Role:     domain.RoleMember,
		JoinedAt: time.Now().UTC(),
		AddedBy:  actor,
	})
}

// RemoveMember lets admins remove anyone and members remove themselves.
// The removed user's connections leave the group channel at once.
func (s *GroupService) RemoveMember(ctx context.Context, actor domain.UserID, id domain.GroupID, user domain.UserID) (domain.Group, error) {
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	group, err := s.groups.GetGroup(storeCtx, id)
	if err != nil {
		return domain.Group{}, err
	}
	if actor != user && !group.IsAdmin(actor) {
		return domain.Group{}, fmt.Errorf("%w: only admins remove other members", errors.ErrAccessDenied)
	}
	if !group.HasMember(user) {
		return domain.Group{}, fmt.Errorf("%w: %s is not a member", errors.ErrNotFound, user)
	}
	group, err = s.groups.RemoveMember(storeCtx, id, user)
	if err != nil {
		return domain.Group{}, err
	}
	s.channels.Evict(runtime.ChannelFor(id), user)
	return group, nil
}

// JoinChannel binds a connection to the group channel, members only.
func (s *GroupService) JoinChannel(ctx context.Context, user domain.UserID, sink contract.EventSink, cmd domain.GroupCommand) error {
	if err := domain.Validate(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	storeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	group, err := s.groups.GetGroup(storeCtx, cmd.GroupID)
	if err != nil {
		return err
	}
	if !group.HasMember(user) {
		return fmt.Errorf("%w: %s is not a member of %s", errors.ErrAccessDenied, user, group.ID)
	}
	s.channels.Join(runtime.ChannelFor(group.ID), sink)
	return nil
}

// LeaveChannel only unbinds the connection; membership is untouched.
func (s *GroupService) LeaveChannel(sink contract.EventSink, cmd domain.GroupCommand) error {
	if err := domain.Validate(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	s.channels.Leave(runtime.ChannelFor(cmd.GroupID), sink.ID())
	return nil
}

func (s *GroupService) mustExist(ctx context.Context, user domain.UserID) error {
	_, err := s.users.GetUser(ctx, user)
	if errors.Is(err, errors.ErrNotFound) {
		return fmt.Errorf("%w: unknown user %s", errors.ErrInvalidPayload, user)
	}
	return err
}
