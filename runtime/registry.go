// Package runtime holds the live-connection machinery of the engine:
// the connection registry, the fan-out router, the read-receipt aggregator,
// and the presence broadcast. It orchestrates delivery without containing
// transport or storage details.
package runtime

import (
	"chatter/contract"
	"sort"
	"sync"
)

type sinkSet map[contract.EventSink]struct{}

// userEntry carries its own lock so that register/unregister traffic of one
// user never serializes against unrelated users.
type userEntry struct {
	mu    sync.Mutex
	sinks sinkSet
}

// Registry maps user identities to their live connection sinks. The global
// lock guards the user map; per-user connection churn takes it shared, so
// churn on one user never serializes against unrelated users.
type Registry struct {
	mu      sync.RWMutex
	users   map[string]*userEntry
	changes chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*userEntry),
		// Buffered by one: rapid transitions coalesce, the presence worker
		// always rereads current state before broadcasting.
		changes: make(chan struct{}, 1),
	}
}

// Changes signals presence transitions: a user's first connection arriving
// or last connection leaving.
func (r *Registry) Changes() <-chan struct{} {
	return r.changes
}

// Register adds a connection sink to the user's live set. Registering the
// same sink twice for the same user is idempotent: no duplicate entry, no
// duplicate presence notification.
func (r *Registry) Register(userID string, sink contract.EventSink) {
	for {
		entry := r.entryFor(userID)

		// Holding the map read lock across the mutation keeps Unregister's
		// empty-entry removal out: it needs the write lock to delete, so the
		// entry cannot be orphaned while the sink is added. An entry removed
		// between entryFor and here fails the identity check and we retry.
		r.mu.RLock()
		if r.users[userID] != entry {
			r.mu.RUnlock()
			continue
		}

		entry.mu.Lock()
		if _, ok := entry.sinks[sink]; ok {
			entry.mu.Unlock()
			r.mu.RUnlock()
			return
		}
		wasOffline := len(entry.sinks) == 0
		entry.sinks[sink] = struct{}{}
		entry.mu.Unlock()
		r.mu.RUnlock()

		if wasOffline {
			r.notify()
		}
		return
	}
}

// Unregister removes the sink from the user's live set. When the set becomes
// empty the user entry is dropped entirely and the user counts as offline.
func (r *Registry) Unregister(userID string, sink contract.EventSink) {
	r.mu.RLock()
	entry, ok := r.users[userID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	if _, present := entry.sinks[sink]; !present {
		entry.mu.Unlock()
		return
	}
	delete(entry.sinks, sink)
	stillOnline := len(entry.sinks) > 0
	entry.mu.Unlock()

	if stillOnline {
		return
	}

	// Last connection gone: remove the entry, unless a concurrent register
	// repopulated it between the unlock above and here.
	r.mu.Lock()
	if current, ok := r.users[userID]; ok && current == entry {
		current.mu.Lock()
		if len(current.sinks) == 0 {
			delete(r.users, userID)
		}
		current.mu.Unlock()
	}
	r.mu.Unlock()
	r.notify()
}

// SinksFor returns a snapshot of the user's live sinks. Connections can
// close concurrently, so the snapshot may already be stale when it is used;
// delivery to a vanished sink is simply a no-op drop.
func (r *Registry) SinksFor(userID string) []contract.EventSink {
	r.mu.RLock()
	entry, ok := r.users[userID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	sinks := make([]contract.EventSink, 0, len(entry.sinks))
	for sink := range entry.sinks {
		sinks = append(sinks, sink)
	}
	return sinks
}

// AllSinks snapshots every live sink across all users.
func (r *Registry) AllSinks() []contract.EventSink {
	r.mu.RLock()
	entries := make([]*userEntry, 0, len(r.users))
	for _, entry := range r.users {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	var sinks []contract.EventSink
	for _, entry := range entries {
		entry.mu.Lock()
		for sink := range entry.sinks {
			sinks = append(sinks, sink)
		}
		entry.mu.Unlock()
	}
	return sinks
}

// Online returns the sorted set of users with at least one live connection.
// Presence is exactly this derived set, nothing is stored.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.users))
	for userID := range r.users {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

func (r *Registry) entryFor(userID string) *userEntry {
	r.mu.RLock()
	entry, ok := r.users[userID]
	r.mu.RUnlock()
	if ok {
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.users[userID]; ok {
		return entry
	}
	entry = &userEntry{sinks: make(sinkSet)}
	r.users[userID] = entry
	return entry
}

func (r *Registry) notify() {
	select {
	case r.changes <- struct{}{}:
	default:
		// A broadcast is already pending; it will observe this state too.
	}
}
