package services

import (
	"chatter/repositories"

	"github.com/samber/lo"
)

// BlockPolicy answers the two questions the engine asks about blocks.
// Blocking is directed; delivery is suppressed when either direction holds
// a block, history only when the viewer's own side does.
type BlockPolicy struct {
	users repositories.IUserRepository
}

func NewBlockPolicy(users repositories.IUserRepository) BlockPolicy {
	return BlockPolicy{users: users}
}

// CanDeliver is false when the receiver blocked the sender or the sender
// blocked the receiver. Group messages never consult this.
func (p BlockPolicy) CanDeliver(senderID, receiverID string) (bool, error) {
	senderBlocked, err := p.users.BlockedIDs(senderID)
	if err != nil {
		return false, err
	}
	if lo.Contains(senderBlocked, receiverID) {
		return false, nil
	}
	receiverBlocked, err := p.users.BlockedIDs(receiverID)
	if err != nil {
		return false, err
	}
	return !lo.Contains(receiverBlocked, senderID), nil
}

// CanViewHistory is false only when the viewer blocked the other side. The
// server does not also hide history when the other side blocked the viewer;
// the viewer's own suppression is authoritative for what they may request.
func (p BlockPolicy) CanViewHistory(viewerID, otherID string) (bool, error) {
	blocked, err := p.users.BlockedIDs(viewerID)
	if err != nil {
		return false, err
	}
	return !lo.Contains(blocked, otherID), nil
}
