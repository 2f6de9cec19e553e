// Package domain contains the core concepts of the chat engine.
// This file defines messages and the rules that shape them.
// A message is immutable once persisted, except for its read-by set
// (monotonic append) and its reaction map (set-semantic toggle).
package domain

import (
	"time"
)

// Media describes an attachment carried by a message.
// URL may be a plain URL or a base64 data URL, the engine never decodes it
// beyond sniffing the kind when the client omitted it.
type Media struct {
	URL  string
	Kind string // "image", "video", "file", ...
	Name string // original filename
}

// Message represents a chat message as persisted by the store.
// Exactly one of ReceiverID / GroupID is set.
type Message struct {
	ID            string
	SenderID      string
	ReceiverID    string
	GroupID       string
	Content       string
	Media         *Media
	ParentID      string // set when the message is a threaded reply
	CorrelationID string // client temp id, echoed back so senders can reconcile
	CreatedAt     time.Time
	ReadBy        []string
	Reactions     map[string][]string // reaction type -> user ids, each at most once
}

// IsReply reports whether the message belongs to a thread instead of the
// top-level conversation timeline.
func (m Message) IsReply() bool {
	return m.ParentID != ""
}

// Conversation returns the conversation the message belongs to.
func (m Message) Conversation() Conversation {
	if m.GroupID != "" {
		return GroupConversation(m.GroupID)
	}
	return DirectConversation(m.SenderID, m.ReceiverID)
}

// HasReadBy reports whether userID already acknowledged the message.
func (m Message) HasReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ReadCountFor is the read feedback exposed to senders: the sender's own
// entry never counts as meaningful read state.
func (m Message) ReadCountFor(senderID string) int {
	count := 0
	for _, id := range m.ReadBy {
		if id != senderID {
			count++
		}
	}
	return count
}
