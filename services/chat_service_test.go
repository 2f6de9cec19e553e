package services

import (
	"context"
	"testing"

	"chatter/domain"
	"chatter/errors"
	"chatter/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func Test_DirectHistory_Forbidden_When_Viewer_Blocked_Other(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	usersMock := mocks.NewMockIUserRepository(ctrl)
	usersMock.EXPECT().BlockedIDs("alice").Return([]string{"bob"}, nil)

	service := NewChatService(nil, nil, nil, nil, nil, usersMock, NewBlockPolicy(usersMock))

	_, _, err := service.DirectHistory("alice", "bob", nil)
	req.ErrorIs(err, errors.ErrForbidden)
}

func Test_DirectHistory_Uses_Normalized_Conversation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	usersMock := mocks.NewMockIUserRepository(ctrl)
	usersMock.EXPECT().BlockedIDs("bob").Return(nil, nil)

	page := []domain.Message{{ID: uuid.NewString()}}
	messagesMock := mocks.NewMockIMessageRepository(ctrl)
	// Both orderings resolve to the same conversation key
	messagesMock.EXPECT().
		ListConversation(domain.DirectConversation("alice", "bob"), gomock.Nil()).
		Return(page, nil, nil)

	service := NewChatService(nil, nil, nil, messagesMock, nil, usersMock, NewBlockPolicy(usersMock))

	messages, _, err := service.DirectHistory("bob", "alice", nil)
	req.NoError(err)
	req.Equal(page, messages)
}

func Test_GroupHistory_Members_Only(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	groupID := uuid.NewString()
	groupsMock := mocks.NewMockIGroupRepository(ctrl)
	groupsMock.EXPECT().FindByID(groupID).Return(domain.Group{
		ID:      groupID,
		Members: []string{"alice", "bob"},
	}, nil)

	service := NewChatService(nil, nil, nil, nil, groupsMock, nil, BlockPolicy{})

	_, _, err := service.GroupHistory("carol", groupID, nil)
	req.ErrorIs(err, errors.ErrForbidden)
}

func Test_GroupHistory_For_Member(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	groupID := uuid.NewString()
	groupsMock := mocks.NewMockIGroupRepository(ctrl)
	groupsMock.EXPECT().FindByID(groupID).Return(domain.Group{
		ID:      groupID,
		Members: []string{"alice", "bob"},
	}, nil)

	page := []domain.Message{{ID: uuid.NewString(), GroupID: groupID}}
	messagesMock := mocks.NewMockIMessageRepository(ctrl)
	messagesMock.EXPECT().
		ListConversation(domain.GroupConversation(groupID), gomock.Nil()).
		Return(page, nil, nil)

	service := NewChatService(nil, nil, nil, messagesMock, groupsMock, nil, BlockPolicy{})

	messages, _, err := service.GroupHistory("alice", groupID, nil)
	req.NoError(err)
	req.Equal(page, messages)
}

func Test_Submit_Delegates_To_Router(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	cmd := domain.SendDirect{SenderID: "alice", ReceiverID: "bob", Content: "hi"}
	routerMock := mocks.NewMockIRouter(ctrl)
	routerMock.EXPECT().Submit(gomock.Any(), cmd).Return(nil)

	service := NewChatService(routerMock, nil, nil, nil, nil, nil, BlockPolicy{})

	req.NoError(service.Submit(context.Background(), cmd))
}
