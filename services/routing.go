package services

import (
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"fitpulse-chat/runtime"
)

// Router finds the live connections a conversation event must reach.
type Router struct {
	presence *runtime.Registry
	channels *runtime.Channels
}

func NewRouter(presence *runtime.Registry, channels *runtime.Channels) *Router {
	return &Router{presence: presence, channels: channels}
}

// Recipients groups by user the live connections of every participant except sender.
// Group connections are bound to the group channel on first use; a connection that left
// the channel is not reached.
func (r *Router) Recipients(conv domain.Conversation, sender domain.UserID) map[domain.UserID][]contract.EventSink {
	recipients := make(map[domain.UserID][]contract.EventSink)
	if !conv.IsGroup() {
		if peer, ok := conv.Peer(sender); ok {
			if conns := r.presence.ConnectionsFor(peer); len(conns) > 0 {
				recipients[peer] = conns
			}
		}
		return recipients
	}

	channel := runtime.ChannelFor(conv.GroupID)
	members := conv.Participants
	if conv.Group != nil {
		members = conv.Group.MemberIDs()
	}
	r.channels.EnsureJoined(channel, r.presence.ConnectionsForAll(members))

	allowed := make(map[domain.UserID]struct{}, len(members))
	for _, m := range members {
		allowed[m] = struct{}{}
	}
	for _, sink := range r.channels.Members(channel) {
		user := sink.UserID()
		if user == sender {
			continue
		}
		if _, ok := allowed[user]; !ok {
			continue
		}
		recipients[user] = append(recipients[user], sink)
	}
	return recipients
}

func (r *Router) Own(user domain.UserID) []contract.EventSink {
	return r.presence.ConnectionsFor(user)
}

func (r *Router) Summary(user domain.UserID) domain.UserSummary {
	if u, ok := r.presence.User(user); ok {
		return u.Summary()
	}
	return domain.UserSummary{ID: user}
}
