// Package event defines the outbound events fanned out to live connections.
// Events map one-to-one onto the frames of the wire protocol.
package event

import (
	"chatter/domain"
)

// DomainEvent is anything the engine pushes to connected clients.
type DomainEvent interface {
	// Kind is the wire frame type of the event.
	Kind() string
}

// MessageDelivered carries a persisted message to the connections of its
// recipients and of the sender's other devices.
type MessageDelivered struct {
	Message domain.Message
}

func (MessageDelivered) Kind() string { return "message" }

// OnlineUsers is the full presence snapshot, broadcast to every registered
// connection on any transition.
type OnlineUsers struct {
	Users []string
}

func (OnlineUsers) Kind() string { return "onlineUsers" }

// TypingSignal is ephemeral. Receivers expire it locally, there is no
// explicit stop signal.
type TypingSignal struct {
	From    string
	GroupID string
}

func (TypingSignal) Kind() string { return "typing" }

// ReadReceipt carries the delta of message IDs newly acknowledged by UserID.
type ReadReceipt struct {
	MessageIDs []string
	UserID     string
}

func (ReadReceipt) Kind() string { return "read" }

// MessageDeleted tells viewers to drop the message from their local state.
type MessageDeleted struct {
	MessageID      string
	ConversationID string
}

func (MessageDeleted) Kind() string { return "deleteMessage" }

// ReactionUpdate carries the full resulting reaction map of a message after
// a toggle.
type ReactionUpdate struct {
	MessageID string
	Reactions map[string][]string
}

func (ReactionUpdate) Kind() string { return "reactionUpdate" }
