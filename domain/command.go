package domain

// Command is an intent submitted to the fan-out router by an authenticated
// connection (or by an outer HTTP layer, for Delete).
type Command interface {
	// IssuedBy returns the user the command acts on behalf of.
	IssuedBy() string
}

// SendDirect posts a message to a single receiver, subject to the blocking
// policy. CorrelationID is the client temp id used for optimistic
// reconciliation on the sender's devices.
type SendDirect struct {
	SenderID      string
	ReceiverID    string
	Content       string
	Media         *Media
	ParentID      string
	CorrelationID string
}

func (c SendDirect) IssuedBy() string { return c.SenderID }

// SendGroup posts a message to all current members of a group.
type SendGroup struct {
	SenderID      string
	GroupID       string
	Content       string
	Media         *Media
	ParentID      string
	CorrelationID string
}

func (c SendGroup) IssuedBy() string { return c.SenderID }

// Typing is an ephemeral signal, never persisted. Exactly one of ReceiverID
// or GroupID is set.
type Typing struct {
	SenderID   string
	ReceiverID string
	GroupID    string
}

func (c Typing) IssuedBy() string { return c.SenderID }

// React toggles the user's membership in one reaction-type set of a message.
type React struct {
	UserID       string
	MessageID    string
	ReactionType string
}

func (c React) IssuedBy() string { return c.UserID }

// Delete removes a message. Only the original sender may delete.
type Delete struct {
	RequesterID string
	MessageID   string
}

func (c Delete) IssuedBy() string { return c.RequesterID }
