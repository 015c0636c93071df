package services

import (
	"context"
	"fitpulse-chat/domain"
	"fitpulse-chat/domain/event"
	"fitpulse-chat/errors"
	"fitpulse-chat/runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupService_Create(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	group := h.group(t, "coach", "alice", "bob", "alice")

	req.True(group.IsAdmin("coach"))
	req.ElementsMatch([]domain.UserID{"coach", "alice", "bob"}, group.MemberIDs())

	conv, err := h.conversations.GetConversation(context.Background(), group.ConversationID)
	req.NoError(err)
	req.True(conv.IsGroup())
	req.ElementsMatch(group.MemberIDs(), conv.Participants)
}

func TestGroupService_Create_Invalid(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.user(t, "coach")

	_, err := h.groups.Create(context.Background(), "coach", "  ", nil)
	req.ErrorIs(err, errors.ErrInvalidPayload)

	_, err = h.groups.Create(context.Background(), "coach", "Spin class", []domain.UserID{"ghost"})
	req.ErrorIs(err, errors.ErrInvalidPayload)
}

func TestGroupService_AdminOnlyAdds(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	group := h.group(t, "coach", "alice")
	h.user(t, "bob")

	_, err := h.groups.AddMember(context.Background(), "alice", group.ID, "bob")
	req.ErrorIs(err, errors.ErrAccessDenied)

	updated, err := h.groups.AddMember(context.Background(), "coach", group.ID, "bob")
	req.NoError(err)
	req.True(updated.HasMember("bob"))

	// Adding twice changes nothing
	again, err := h.groups.AddMember(context.Background(), "coach", group.ID, "bob")
	req.NoError(err)
	req.Len(again.Members, len(updated.Members))
}

func TestGroupService_RemoveMemberEvictsConnections(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	group := h.group(t, "coach", "alice", "bob")
	h.connect(t, "coach", "c1")
	alice := h.connect(t, "alice", "a1")
	bob := h.connect(t, "bob", "b1")

	_, err := h.pipeline.Send(context.Background(), "coach", text(string(group.ConversationID), "warm up"))
	req.NoError(err)
	req.Len(alice.Of(event.ReceiveMessageType), 1)

	// When the coach removes alice
	_, err = h.groups.RemoveMember(context.Background(), "coach", group.ID, "alice")
	req.NoError(err)
	for _, sink := range h.channels.Members(runtime.ChannelFor(group.ID)) {
		req.NotEqual(domain.UserID("alice"), sink.UserID())
	}

	// Then she no longer gets group messages
	_, err = h.pipeline.Send(context.Background(), "coach", text(string(group.ConversationID), "sprints"))
	req.NoError(err)
	req.Len(alice.Of(event.ReceiveMessageType), 1)
	req.Len(bob.Of(event.ReceiveMessageType), 2)

	// And cannot write to it any more
	_, err = h.pipeline.Send(context.Background(), "alice", text(string(group.ConversationID), "wait"))
	req.ErrorIs(err, errors.ErrAccessDenied)
}

func TestGroupService_RemoveMemberRules(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	group := h.group(t, "coach", "alice", "bob")

	_, err := h.groups.RemoveMember(context.Background(), "alice", group.ID, "bob")
	req.ErrorIs(err, errors.ErrAccessDenied)

	updated, err := h.groups.RemoveMember(context.Background(), "bob", group.ID, "bob")
	req.NoError(err)
	req.False(updated.HasMember("bob"))

	_, err = h.groups.RemoveMember(context.Background(), "coach", group.ID, "bob")
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestGroupService_JoinChannel(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	group := h.group(t, "coach", "alice")
	alice := h.connect(t, "alice", "a1")
	mallory := h.connect(t, "mallory", "m1")

	req.NoError(h.groups.JoinChannel(context.Background(), "alice", alice, domain.GroupCommand{GroupID: group.ID}))
	req.ErrorIs(h.groups.JoinChannel(context.Background(), "mallory", mallory, domain.GroupCommand{GroupID: group.ID}), errors.ErrAccessDenied)
	req.ErrorIs(h.groups.JoinChannel(context.Background(), "alice", alice, domain.GroupCommand{GroupID: "nope"}), errors.ErrNotFound)
	req.ErrorIs(h.groups.JoinChannel(context.Background(), "alice", alice, domain.GroupCommand{}), errors.ErrInvalidPayload)

	members := h.channels.Members(runtime.ChannelFor(group.ID))
	req.Len(members, 1)
	req.Equal("a1", members[0].ID())
}
