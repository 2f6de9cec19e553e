package domain

// Conversation identifies either a direct exchange between two users or a
// group. Direct conversations are order-normalized so that both sides
// resolve to the same key.
type Conversation struct {
	GroupID string
	PeerA   string
	PeerB   string
}

func DirectConversation(a, b string) Conversation {
	if b < a {
		a, b = b, a
	}
	return Conversation{PeerA: a, PeerB: b}
}

func GroupConversation(groupID string) Conversation {
	return Conversation{GroupID: groupID}
}

func (c Conversation) IsGroup() bool {
	return c.GroupID != ""
}

// Key is the stable identifier used for storage prefixes and the
// conversationId field of outbound events.
func (c Conversation) Key() string {
	if c.IsGroup() {
		return "g:" + c.GroupID
	}
	return "d:" + c.PeerA + ":" + c.PeerB
}
