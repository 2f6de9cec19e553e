package services

import (
	"chatter/contract"
	"chatter/domain"
	"chatter/errors"
	"chatter/repositories"
	"chatter/runtime"
	"context"
)

// IChatService is the single surface the transport (and an outer HTTP layer)
// talks to: connection lifecycle, command submission, read receipts, and
// history queries with visibility rules applied.
type IChatService interface {
	Attach(userID string, sink contract.EventSink)
	Detach(userID string, sink contract.EventSink)
	Submit(ctx context.Context, cmd domain.Command) error
	MarkRead(ctx context.Context, readerID string, messageIDs []string, conv domain.Conversation) ([]string, error)
	DirectHistory(viewerID, otherID string, cursor *string) ([]domain.Message, *string, error)
	GroupHistory(viewerID, groupID string, cursor *string) ([]domain.Message, *string, error)
	Replies(parentID string) ([]domain.Message, error)
	ReplyCount(parentID string) (int, error)
	Block(userID, otherID string) error
	Unblock(userID, otherID string) error
}

type ChatService struct {
	router   contract.IRouter
	receipts *runtime.Receipts
	registry contract.IRegistry
	messages repositories.IMessageRepository
	groups   repositories.IGroupRepository
	users    repositories.IUserRepository
	policy   BlockPolicy
}

func NewChatService(router contract.IRouter, receipts *runtime.Receipts,
	registry contract.IRegistry, messages repositories.IMessageRepository,
	groups repositories.IGroupRepository, users repositories.IUserRepository,
	policy BlockPolicy) *ChatService {
	return &ChatService{
		router:   router,
		receipts: receipts,
		registry: registry,
		messages: messages,
		groups:   groups,
		users:    users,
		policy:   policy,
	}
}

func (s *ChatService) Attach(userID string, sink contract.EventSink) {
	s.registry.Register(userID, sink)
}

func (s *ChatService) Detach(userID string, sink contract.EventSink) {
	s.registry.Unregister(userID, sink)
}

func (s *ChatService) Submit(ctx context.Context, cmd domain.Command) error {
	return s.router.Submit(ctx, cmd)
}

func (s *ChatService) MarkRead(ctx context.Context, readerID string, messageIDs []string,
	conv domain.Conversation) ([]string, error) {
	return s.receipts.MarkRead(ctx, readerID, messageIDs, conv)
}

// DirectHistory pages through the viewer's conversation with another user.
// A viewer who blocked the other side gets Forbidden; the outer layer maps
// it to its status code.
func (s *ChatService) DirectHistory(viewerID, otherID string, cursor *string) ([]domain.Message, *string, error) {
	visible, err := s.policy.CanViewHistory(viewerID, otherID)
	if err != nil {
		return nil, nil, err
	}
	if !visible {
		return nil, nil, errors.ErrForbidden
	}
	return s.messages.ListConversation(domain.DirectConversation(viewerID, otherID), cursor)
}

// GroupHistory pages through a group's timeline; only current members may
// read it. Blocks never gate group history.
func (s *ChatService) GroupHistory(viewerID, groupID string, cursor *string) ([]domain.Message, *string, error) {
	group, err := s.groups.FindByID(groupID)
	if err != nil {
		return nil, nil, err
	}
	if !group.HasMember(viewerID) {
		return nil, nil, errors.ErrForbidden
	}
	return s.messages.ListConversation(domain.GroupConversation(groupID), cursor)
}

func (s *ChatService) Replies(parentID string) ([]domain.Message, error) {
	return s.messages.ListReplies(parentID)
}

func (s *ChatService) ReplyCount(parentID string) (int, error) {
	return s.messages.CountReplies(parentID)
}

func (s *ChatService) Block(userID, otherID string) error {
	return s.users.Block(userID, otherID)
}

func (s *ChatService) Unblock(userID, otherID string) error {
	return s.users.Unblock(userID, otherID)
}
