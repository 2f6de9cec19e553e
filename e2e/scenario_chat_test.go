package e2e

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type testChatScenarioSuite struct {
	BaseWsSuite
}

func TestChatScenarioSuite(t *testing.T) {
	suite.Run(t, &testChatScenarioSuite{})
}

func (s *testChatScenarioSuite) TestFullDirectMessageFlow() {
	alice := s.Dial("alice")
	defer alice.Close()
	bob := s.Dial("bob")
	defer bob.Close()

	var messageID string

	s.Run("Step 1: Presence snapshots reach both parties", func() {
		frame := s.WaitForFrame(alice, "onlineUsers")
		s.Require().Contains(frame["users"], "alice")

		frame = s.WaitForFrame(bob, "onlineUsers")
		s.Require().Contains(frame["users"], "alice")
		s.Require().Contains(frame["users"], "bob")
	})

	s.Run("Step 2: Direct message is delivered and echoed", func() {
		err := alice.WriteJSON(map[string]any{
			"type":         "message",
			"receiverId":   "bob",
			"content":      "hello from e2e",
			"clientTempId": "tmp-e2e-1",
		})
		s.Require().NoError(err)

		frame := s.WaitForFrame(bob, "message")
		message := frame["message"].(map[string]any)
		s.Require().Equal("alice", message["sender"])
		s.Require().Equal("hello from e2e", message["content"])
		messageID = message["_id"].(string)
		s.Require().NotEmpty(messageID)

		// The sender's echo carries the temp id for optimistic reconciliation
		frame = s.WaitForFrame(alice, "message")
		echo := frame["message"].(map[string]any)
		s.Require().Equal(messageID, echo["_id"])
		s.Require().Equal("tmp-e2e-1", echo["clientTempId"])
	})

	s.Run("Step 3: Typing signal reaches the receiver only", func() {
		err := alice.WriteJSON(map[string]any{"type": "typing", "receiverId": "bob"})
		s.Require().NoError(err)

		frame := s.WaitForFrame(bob, "typing")
		s.Require().Equal("alice", frame["from"])
	})

	s.Run("Step 4: Read receipt flows back to the sender", func() {
		err := bob.WriteJSON(map[string]any{
			"type":       "read",
			"receiverId": "alice",
			"messageIds": []string{messageID},
		})
		s.Require().NoError(err)

		frame := s.WaitForFrame(alice, "read")
		s.Require().Equal("bob", frame["userId"])
		s.Require().Contains(frame["messageIds"], messageID)
	})

	s.Run("Step 5: Reaction toggle broadcasts the resulting map", func() {
		err := bob.WriteJSON(map[string]any{
			"type":         "react",
			"messageId":    messageID,
			"reactionType": "heart",
		})
		s.Require().NoError(err)

		frame := s.WaitForFrame(alice, "reactionUpdate")
		s.Require().Equal(messageID, frame["messageId"])
		pairs := frame["reactions"].([]any)
		s.Require().Len(pairs, 1)
		pair := pairs[0].([]any)
		s.Require().Equal("heart", pair[0])
	})
}

func (s *testChatScenarioSuite) TestRejectedHandshakes() {
	url := s.server.URL

	s.Run("Invalid token closes the connection", func() {
		conn := s.dialRaw(url)
		defer conn.Close()

		s.Require().NoError(conn.WriteJSON(map[string]string{"type": "auth", "token": "garbage"}))
		s.expectClosed(conn)
	})

	s.Run("Non-auth first frame closes the connection", func() {
		conn := s.dialRaw(url)
		defer conn.Close()

		s.Require().NoError(conn.WriteJSON(map[string]any{
			"type": "message", "receiverId": "bob", "content": "sneaky",
		}))
		s.expectClosed(conn)
	})
}
