package runtime

import (
	"fitpulse-chat/contract"
	"fitpulse-chat/domain"
	"sync"
	"time"
)

type Set map[string]struct{}

type presenceEntry struct {
	user     domain.User
	conns    map[string]contract.EventSink // map connection id -> Sink
	lastSeen time.Time
}

// Registry is the process-wide table of connected users.
// A user is online as long as at least one of its connections is registered.
// The registry never broadcasts: callers act on the first/last transitions it reports.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]*presenceEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.UserID]*presenceEntry)}
}

// Register adds a connection and reports whether it is the user's first one.
func (r *Registry) Register(user domain.User, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[user.ID]
	if !ok {
		entry = &presenceEntry{conns: make(map[string]contract.EventSink)}
		r.sessions[user.ID] = entry
	}
	entry.user = user
	entry.lastSeen = time.Now().UTC()
	entry.conns[sink.ID()] = sink
	return !ok
}

// Unregister removes a connection and reports whether it was the user's last one.
// Removing an unknown connection is a no-op and never reports last.
func (r *Registry) Unregister(userID domain.UserID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if _, exists := entry.conns[connID]; !exists {
		return false
	}
	delete(entry.conns, connID)
	entry.lastSeen = time.Now().UTC()

	// No empty entries are kept around
	if len(entry.conns) == 0 {
		delete(r.sessions, userID)
		return true
	}
	return false
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// ConnectionsFor is the user's private channel.
func (r *Registry) ConnectionsFor(userID domain.UserID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.sessions[userID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(entry.conns))
	for _, sink := range entry.conns {
		sinks = append(sinks, sink)
	}
	return sinks
}

// ConnectionsForAll flattens the connections of several users.
func (r *Registry) ConnectionsForAll(userIDs []domain.UserID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for _, userID := range userIDs {
		if entry, ok := r.sessions[userID]; ok {
			for _, sink := range entry.conns {
				sinks = append(sinks, sink)
			}
		}
	}
	return sinks
}

// Everyone returns every live connection that does not belong to except.
func (r *Registry) Everyone(except domain.UserID) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sinks []contract.EventSink
	for userID, entry := range r.sessions {
		if userID == except {
			continue
		}
		for _, sink := range entry.conns {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// User returns the read-through copy held while the user is connected.
func (r *Registry) User(userID domain.UserID) (domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[userID]
	if !ok {
		return domain.User{}, false
	}
	return entry.user, true
}

// Counts returns the number of online users and live connections.
func (r *Registry) Counts() (users, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.sessions {
		connections += len(entry.conns)
	}
	return len(r.sessions), connections
}
