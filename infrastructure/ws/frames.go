// Package ws is the WebSocket transport of the engine: JSON frames over a
// persistent duplex connection, one reader goroutine per connection.
package ws

import (
	"chatter/domain"
	"chatter/domain/event"
	"chatter/errors"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// InboundFrame is the union of every client-to-server frame. Type decides
// which fields matter.
type InboundFrame struct {
	Type          string        `json:"type" validate:"required,oneof=auth message typing read react"`
	Token         string        `json:"token,omitempty"`
	ReceiverID    string        `json:"receiverId,omitempty"`
	GroupID       string        `json:"groupId,omitempty"`
	Content       string        `json:"content,omitempty"`
	Media         *mediaPayload `json:"media,omitempty"`
	ParentMessage string        `json:"parentMessage,omitempty"`
	ClientTempID  string        `json:"clientTempId,omitempty"`
	MessageIDs    []string      `json:"messageIds,omitempty"`
	MessageID     string        `json:"messageId,omitempty"`
	ReactionType  string        `json:"reactionType,omitempty"`
}

type mediaPayload struct {
	URL  string `json:"url"`
	Kind string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
}

// DecodeFrame parses and validates a raw inbound frame.
func DecodeFrame(raw []byte) (InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	if err := validate.Struct(frame); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", errors.ErrMalformedFrame, err)
	}
	return frame, nil
}

// target enforces the exactly-one-of receiverId / groupId rule shared by
// message, typing, and read frames.
func (f InboundFrame) target() error {
	if (f.ReceiverID == "") == (f.GroupID == "") {
		return fmt.Errorf("%w: %v", errors.ErrMalformedFrame, errors.ErrMissingTarget)
	}
	return nil
}

// Command translates an authenticated frame into the router command it
// stands for. Auth frames never reach this point.
func (f InboundFrame) Command(userID string) (domain.Command, error) {
	switch f.Type {
	case "message":
		if err := f.target(); err != nil {
			return nil, err
		}
		media := f.Media.toDomain()
		if f.GroupID != "" {
			return domain.SendGroup{
				SenderID:      userID,
				GroupID:       f.GroupID,
				Content:       f.Content,
				Media:         media,
				ParentID:      f.ParentMessage,
				CorrelationID: f.ClientTempID,
			}, nil
		}
		return domain.SendDirect{
			SenderID:      userID,
			ReceiverID:    f.ReceiverID,
			Content:       f.Content,
			Media:         media,
			ParentID:      f.ParentMessage,
			CorrelationID: f.ClientTempID,
		}, nil

	case "typing":
		if err := f.target(); err != nil {
			return nil, err
		}
		return domain.Typing{SenderID: userID, ReceiverID: f.ReceiverID, GroupID: f.GroupID}, nil

	case "react":
		if f.MessageID == "" || f.ReactionType == "" {
			return nil, fmt.Errorf("%w: react needs messageId and reactionType", errors.ErrMalformedFrame)
		}
		return domain.React{UserID: userID, MessageID: f.MessageID, ReactionType: f.ReactionType}, nil

	default:
		return nil, fmt.Errorf("%w: %q is not a command frame", errors.ErrMalformedFrame, f.Type)
	}
}

// Conversation resolves the read frame's context.
func (f InboundFrame) Conversation(userID string) (domain.Conversation, error) {
	if err := f.target(); err != nil {
		return domain.Conversation{}, err
	}
	if f.GroupID != "" {
		return domain.GroupConversation(f.GroupID), nil
	}
	return domain.DirectConversation(userID, f.ReceiverID), nil
}

func (m *mediaPayload) toDomain() *domain.Media {
	if m == nil {
		return nil
	}
	return &domain.Media{URL: m.URL, Kind: m.Kind, Name: m.Name}
}

type messagePayload struct {
	ID            string              `json:"_id"`
	Sender        string              `json:"sender"`
	Receiver      string              `json:"receiver,omitempty"`
	GroupID       string              `json:"groupId,omitempty"`
	Content       string              `json:"content,omitempty"`
	Media         *mediaPayload       `json:"media,omitempty"`
	ParentMessage string              `json:"parentMessage,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
	ClientTempID  string              `json:"clientTempId,omitempty"`
	ReadBy        []string            `json:"readBy,omitempty"`
	Reactions     map[string][]string `json:"reactions,omitempty"`
}

// EncodeEvent renders an outbound event as its wire frame.
func EncodeEvent(e event.DomainEvent) ([]byte, error) {
	switch evt := e.(type) {
	case event.MessageDelivered:
		return json.Marshal(struct {
			Type    string         `json:"type"`
			Message messagePayload `json:"message"`
		}{Type: evt.Kind(), Message: toMessagePayload(evt.Message)})

	case event.OnlineUsers:
		return json.Marshal(struct {
			Type  string   `json:"type"`
			Users []string `json:"users"`
		}{Type: evt.Kind(), Users: evt.Users})

	case event.TypingSignal:
		return json.Marshal(struct {
			Type    string `json:"type"`
			From    string `json:"from"`
			GroupID string `json:"groupId,omitempty"`
		}{Type: evt.Kind(), From: evt.From, GroupID: evt.GroupID})

	case event.ReadReceipt:
		return json.Marshal(struct {
			Type       string   `json:"type"`
			MessageIDs []string `json:"messageIds"`
			UserID     string   `json:"userId"`
		}{Type: evt.Kind(), MessageIDs: evt.MessageIDs, UserID: evt.UserID})

	case event.MessageDeleted:
		return json.Marshal(struct {
			Type           string `json:"type"`
			MessageID      string `json:"messageId"`
			ConversationID string `json:"conversationId"`
		}{Type: evt.Kind(), MessageID: evt.MessageID, ConversationID: evt.ConversationID})

	case event.ReactionUpdate:
		return json.Marshal(struct {
			Type      string  `json:"type"`
			MessageID string  `json:"messageId"`
			Reactions [][]any `json:"reactions"`
		}{Type: evt.Kind(), MessageID: evt.MessageID, Reactions: reactionPairs(evt.Reactions)})

	default:
		return nil, fmt.Errorf("unknown event %T", e)
	}
}

// reactionPairs renders the reaction map as [[type, [userIds]], ...] pairs,
// sorted by type so encodings are deterministic.
func reactionPairs(reactions map[string][]string) [][]any {
	types := make([]string, 0, len(reactions))
	for reactionType := range reactions {
		types = append(types, reactionType)
	}
	sort.Strings(types)

	pairs := make([][]any, 0, len(types))
	for _, reactionType := range types {
		pairs = append(pairs, []any{reactionType, reactions[reactionType]})
	}
	return pairs
}

func toMessagePayload(message domain.Message) messagePayload {
	payload := messagePayload{
		ID:            message.ID,
		Sender:        message.SenderID,
		Receiver:      message.ReceiverID,
		GroupID:       message.GroupID,
		Content:       message.Content,
		ParentMessage: message.ParentID,
		Timestamp:     message.CreatedAt,
		ClientTempID:  message.CorrelationID,
		ReadBy:        message.ReadBy,
		Reactions:     message.Reactions,
	}
	if message.Media != nil {
		payload.Media = &mediaPayload{
			URL:  message.Media.URL,
			Kind: message.Media.Kind,
			Name: message.Media.Name,
		}
	}
	return payload
}
