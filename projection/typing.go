package projection

import (
	"sort"
	"sync"
	"time"
)

// TypingTTL is how long a typing indicator stays alive without a repeated
// signal. There is no explicit "stopped typing" frame; silence ends it.
const TypingTTL = 2500 * time.Millisecond

type typingKey struct {
	from    string
	groupID string
}

// TypingState tracks who is currently typing in which conversation on the
// receiving side. Safe for concurrent use.
type TypingState struct {
	mu        sync.Mutex
	deadlines map[typingKey]time.Time
}

func NewTypingState() *TypingState {
	return &TypingState{deadlines: make(map[typingKey]time.Time)}
}

// Observe records a typing signal, refreshing the sender's deadline.
func (t *TypingState) Observe(from, groupID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadlines[typingKey{from: from, groupID: groupID}] = now.Add(TypingTTL)
}

// Active returns the users still typing in the given conversation scope
// (empty groupID means the direct conversation), pruning expired entries.
func (t *TypingState) Active(groupID string, now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var active []string
	for key, deadline := range t.deadlines {
		if !now.Before(deadline) {
			delete(t.deadlines, key)
			continue
		}
		if key.groupID == groupID {
			active = append(active, key.from)
		}
	}
	sort.Strings(active)
	return active
}
