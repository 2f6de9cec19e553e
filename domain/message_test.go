package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Conversation_Key_Is_Order_Normalized(t *testing.T) {
	req := require.New(t)

	req.Equal(DirectConversation("alice", "bob").Key(), DirectConversation("bob", "alice").Key())
	req.Equal("d:alice:bob", DirectConversation("bob", "alice").Key())
	req.Equal("g:g1", GroupConversation("g1").Key())
}

func Test_Message_Conversation(t *testing.T) {
	req := require.New(t)

	direct := Message{SenderID: "bob", ReceiverID: "alice"}
	req.False(direct.Conversation().IsGroup())
	req.Equal("d:alice:bob", direct.Conversation().Key())

	grouped := Message{SenderID: "bob", GroupID: "g1"}
	req.True(grouped.Conversation().IsGroup())
}

func Test_ReadCountFor_Ignores_Senders_Own_Entry(t *testing.T) {
	req := require.New(t)

	m := Message{SenderID: "alice", ReadBy: []string{"alice", "bob", "carol"}}
	req.Equal(2, m.ReadCountFor("alice"))
	req.True(m.HasReadBy("bob"))
	req.False(m.HasReadBy("dave"))
}
