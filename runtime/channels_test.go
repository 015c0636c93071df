package runtime

import (
	"fitpulse-chat/contract"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestChannels_EnsureJoined_SkipsConnectionsThatLeft(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	channels := NewChannels()
	room := ChannelFor("g1")
	alice := newSink(ctrl, "c1", "alice")
	bob := newSink(ctrl, "c2", "bob")

	// Given bob left the channel
	channels.Leave(room, "c2")

	// When the group is addressed
	channels.EnsureJoined(room, []contract.EventSink{alice, bob})

	// Then only alice is bound
	members := channels.Members(room)
	req.Len(members, 1)
	req.Equal("c1", members[0].ID())

	// When bob joins again explicitly
	channels.Join(room, bob)
	req.Len(channels.Members(room), 2)
}

func TestChannels_Remove_And_Evict(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	channels := NewChannels()
	room := ChannelFor("g1")
	alice1 := newSink(ctrl, "c1", "alice")
	alice2 := newSink(ctrl, "c2", "alice")
	bob := newSink(ctrl, "c3", "bob")
	channels.Join(room, alice1)
	channels.Join(room, alice2)
	channels.Join(room, bob)

	channels.Remove("c1")
	req.Len(channels.Members(room), 2)

	channels.Evict(room, "alice")
	members := channels.Members(room)
	req.Len(members, 1)
	req.Equal("c3", members[0].ID())

	channels.Remove("c3")
	req.Empty(channels.Members(room))
	req.Equal(0, channels.Count())
}
