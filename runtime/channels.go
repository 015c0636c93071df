package runtime

import (
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"sync"
)

// Channels maps a group channel to the connections currently bound to it.
// Connections are bound lazily the first time the group is addressed; a
// connection that explicitly left is not bound again until it joins.
type Channels struct {
	mu       sync.RWMutex
	members  map[string]map[string]contract.EventSink // map channel -> connection id -> Sink
	optedOut map[string]Set                           // map channel -> connection ids that left
	rooms    map[string]Set                           // map connection id -> channels
}

func NewChannels() *Channels {
	return &Channels{
		members:  make(map[string]map[string]contract.EventSink),
		optedOut: make(map[string]Set),
		rooms:    make(map[string]Set),
	}
}

func ChannelFor(group domain.GroupID) string {
	return string(domain.GroupConversationID(group))
}

func (c *Channels) Join(channel string, sink contract.EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if opted, ok := c.optedOut[channel]; ok {
		delete(opted, sink.ID())
		if len(opted) == 0 {
			delete(c.optedOut, channel)
		}
	}
	c.bind(channel, sink)
}

func (c *Channels) Leave(channel string, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unbind(channel, connID)
	if _, ok := c.optedOut[channel]; !ok {
		c.optedOut[channel] = make(Set)
	}
	c.optedOut[channel][connID] = struct{}{}
	c.track(connID, channel)
}

// EnsureJoined binds every given connection that has not left the channel.
func (c *Channels) EnsureJoined(channel string, sinks []contract.EventSink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	opted := c.optedOut[channel]
	for _, sink := range sinks {
		if _, left := opted[sink.ID()]; left {
			continue
		}
		c.bind(channel, sink)
	}
}

func (c *Channels) Members(channel string) []contract.EventSink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conns := c.members[channel]
	sinks := make([]contract.EventSink, 0, len(conns))
	for _, sink := range conns {
		sinks = append(sinks, sink)
	}
	return sinks
}

// Remove forgets a closed connection everywhere.
func (c *Channels) Remove(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for channel := range c.rooms[connID] {
		c.unbind(channel, connID)
		if opted, ok := c.optedOut[channel]; ok {
			delete(opted, connID)
			if len(opted) == 0 {
				delete(c.optedOut, channel)
			}
		}
	}
	delete(c.rooms, connID)
}

// Evict unbinds every connection of a user removed from the group.
func (c *Channels) Evict(channel string, userID domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for connID, sink := range c.members[channel] {
		if sink.UserID() == userID {
			c.unbind(channel, connID)
		}
	}
}

func (c *Channels) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

func (c *Channels) bind(channel string, sink contract.EventSink) {
	if _, ok := c.members[channel]; !ok {
		c.members[channel] = make(map[string]contract.EventSink)
	}
	c.members[channel][sink.ID()] = sink
	c.track(sink.ID(), channel)
}

func (c *Channels) unbind(channel, connID string) {
	if conns, ok := c.members[channel]; ok {
		delete(conns, connID)
		// If no one is left in the channel, remove the entry entirely
		if len(conns) == 0 {
			delete(c.members, channel)
		}
	}
}

func (c *Channels) track(connID, channel string) {
	if _, ok := c.rooms[connID]; !ok {
		c.rooms[connID] = make(Set)
	}
	c.rooms[connID][channel] = struct{}{}
}
