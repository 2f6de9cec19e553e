package ws

import (
	"encoding/json"
	"testing"
	"time"

	"chatter/domain"
	"chatter/domain/event"
	"chatter/errors"

	"github.com/stretchr/testify/require"
)

func Test_DecodeFrame_Rejects_Garbage_And_Unknown_Types(t *testing.T) {
	req := require.New(t)

	_, err := DecodeFrame([]byte("not json"))
	req.ErrorIs(err, errors.ErrMalformedFrame)

	_, err = DecodeFrame([]byte(`{"type":"selfdestruct"}`))
	req.ErrorIs(err, errors.ErrMalformedFrame)

	_, err = DecodeFrame([]byte(`{"content":"no type"}`))
	req.ErrorIs(err, errors.ErrMalformedFrame)
}

func Test_Message_Frame_To_Direct_Command(t *testing.T) {
	req := require.New(t)

	frame, err := DecodeFrame([]byte(`{
		"type": "message",
		"receiverId": "bob",
		"content": "hello",
		"clientTempId": "tmp-1",
		"parentMessage": "parent-id"
	}`))
	req.NoError(err)

	cmd, err := frame.Command("alice")
	req.NoError(err)

	direct, ok := cmd.(domain.SendDirect)
	req.True(ok)
	req.Equal("alice", direct.SenderID)
	req.Equal("bob", direct.ReceiverID)
	req.Equal("hello", direct.Content)
	req.Equal("tmp-1", direct.CorrelationID)
	req.Equal("parent-id", direct.ParentID)
}

func Test_Message_Frame_To_Group_Command_With_Media(t *testing.T) {
	req := require.New(t)

	frame, err := DecodeFrame([]byte(`{
		"type": "message",
		"groupId": "g1",
		"media": {"url": "https://cdn.example/pic.png", "type": "image", "name": "pic.png"}
	}`))
	req.NoError(err)

	cmd, err := frame.Command("alice")
	req.NoError(err)

	group, ok := cmd.(domain.SendGroup)
	req.True(ok)
	req.Equal("g1", group.GroupID)
	req.NotNil(group.Media)
	req.Equal("image", group.Media.Kind)
}

func Test_Target_Exactly_One_Of(t *testing.T) {
	req := require.New(t)

	// Neither receiver nor group
	frame, err := DecodeFrame([]byte(`{"type": "message", "content": "hi"}`))
	req.NoError(err)
	_, err = frame.Command("alice")
	req.ErrorIs(err, errors.ErrMalformedFrame)

	// Both at once
	frame, err = DecodeFrame([]byte(`{"type": "typing", "receiverId": "bob", "groupId": "g1"}`))
	req.NoError(err)
	_, err = frame.Command("alice")
	req.ErrorIs(err, errors.ErrMalformedFrame)
}

func Test_React_Frame_Requires_Message_And_Type(t *testing.T) {
	req := require.New(t)

	frame, err := DecodeFrame([]byte(`{"type": "react", "messageId": "m1"}`))
	req.NoError(err)
	_, err = frame.Command("alice")
	req.ErrorIs(err, errors.ErrMalformedFrame)

	frame, err = DecodeFrame([]byte(`{"type": "react", "messageId": "m1", "reactionType": "heart"}`))
	req.NoError(err)
	cmd, err := frame.Command("alice")
	req.NoError(err)
	react := cmd.(domain.React)
	req.Equal("alice", react.UserID)
	req.Equal("m1", react.MessageID)
	req.Equal("heart", react.ReactionType)
}

func Test_Read_Frame_Resolves_Conversation(t *testing.T) {
	req := require.New(t)

	frame, err := DecodeFrame([]byte(`{"type": "read", "receiverId": "alice", "messageIds": ["m1", "m2"]}`))
	req.NoError(err)

	conv, err := frame.Conversation("bob")
	req.NoError(err)
	// Order-normalized: both sides resolve to the same key
	req.Equal("d:alice:bob", conv.Key())
	req.Equal([]string{"m1", "m2"}, frame.MessageIDs)

	frame, err = DecodeFrame([]byte(`{"type": "read", "groupId": "g1", "messageIds": ["m1"]}`))
	req.NoError(err)
	conv, err = frame.Conversation("bob")
	req.NoError(err)
	req.Equal("g:g1", conv.Key())
}

func Test_EncodeEvent_Message_Frame_Shape(t *testing.T) {
	req := require.New(t)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	raw, err := EncodeEvent(event.MessageDelivered{Message: domain.Message{
		ID:            "m1",
		SenderID:      "alice",
		ReceiverID:    "bob",
		Content:       "hello",
		CorrelationID: "tmp-1",
		CreatedAt:     at,
		ReadBy:        []string{"bob"},
	}})
	req.NoError(err)

	var decoded map[string]any
	req.NoError(json.Unmarshal(raw, &decoded))
	req.Equal("message", decoded["type"])

	message := decoded["message"].(map[string]any)
	req.Equal("m1", message["_id"])
	req.Equal("alice", message["sender"])
	req.Equal("bob", message["receiver"])
	req.Equal("tmp-1", message["clientTempId"])
	req.Equal([]any{"bob"}, message["readBy"])
}

func Test_EncodeEvent_ReactionUpdate_Pairs_Sorted(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeEvent(event.ReactionUpdate{
		MessageID: "m1",
		Reactions: map[string][]string{
			"thumbsup": {"carol"},
			"heart":    {"alice", "bob"},
		},
	})
	req.NoError(err)

	var decoded struct {
		Type      string  `json:"type"`
		MessageID string  `json:"messageId"`
		Reactions [][]any `json:"reactions"`
	}
	req.NoError(json.Unmarshal(raw, &decoded))
	req.Equal("reactionUpdate", decoded.Type)
	req.Len(decoded.Reactions, 2)
	req.Equal("heart", decoded.Reactions[0][0])
	req.Equal("thumbsup", decoded.Reactions[1][0])
}

func Test_EncodeEvent_Presence_And_Receipts(t *testing.T) {
	req := require.New(t)

	raw, err := EncodeEvent(event.OnlineUsers{Users: []string{"alice", "bob"}})
	req.NoError(err)
	req.JSONEq(`{"type":"onlineUsers","users":["alice","bob"]}`, string(raw))

	raw, err = EncodeEvent(event.ReadReceipt{MessageIDs: []string{"m1"}, UserID: "bob"})
	req.NoError(err)
	req.JSONEq(`{"type":"read","messageIds":["m1"],"userId":"bob"}`, string(raw))

	raw, err = EncodeEvent(event.MessageDeleted{MessageID: "m1", ConversationID: "d:alice:bob"})
	req.NoError(err)
	req.JSONEq(`{"type":"deleteMessage","messageId":"m1","conversationId":"d:alice:bob"}`, string(raw))
}
