package runtime

import (
	"chatter/contract"
	"chatter/domain"
	"chatter/domain/event"
	"chatter/errors"
	"context"
	goerrors "errors"
	"log/slog"

	"chatter/repositories"
)

// Receipts merges "read by" acknowledgements idempotently and broadcasts
// only real deltas. It has no opinion on which messages need marking; it
// trusts the caller's list.
type Receipts struct {
	log      *slog.Logger
	registry contract.IRegistry
	messages repositories.IMessageRepository
	groups   repositories.IGroupRepository
}

func NewReceipts(log *slog.Logger, registry contract.IRegistry,
	messages repositories.IMessageRepository, groups repositories.IGroupRepository) *Receipts {
	return &Receipts{log: log, registry: registry, messages: messages, groups: groups}
}

// MarkRead appends readerID to each message's read-by set and returns the
// subset of IDs that actually changed. Re-marking an already read message is
// a no-op; an empty delta produces no broadcast. Unknown message IDs are
// logged and skipped, they never abort the batch.
func (r *Receipts) MarkRead(ctx context.Context, readerID string, messageIDs []string,
	conv domain.Conversation) ([]string, error) {
	var delta []string
	for _, id := range messageIDs {
		changed, err := r.messages.AppendReadBy(id, readerID)
		if goerrors.Is(err, errors.ErrNotFound) {
			r.log.Debug("Read receipt for unknown message", "message_id", id)
			continue
		}
		if err != nil {
			return delta, err
		}
		if changed {
			delta = append(delta, id)
		}
	}

	if len(delta) == 0 {
		return nil, nil
	}

	receipt := event.ReadReceipt{MessageIDs: delta, UserID: readerID}
	for _, s := range r.recipients(conv) {
		if err := s.Consume(ctx, receipt); err != nil {
			r.log.Debug("Read receipt not delivered", "error", err)
		}
	}
	return delta, nil
}

// recipients resolves the conversation to live sinks: all member connections
// for a group, both parties' connections for a direct exchange.
func (r *Receipts) recipients(conv domain.Conversation) []contract.EventSink {
	if conv.IsGroup() {
		members, err := r.groups.Members(conv.GroupID)
		if err != nil {
			r.log.Debug("Receipt recipients unavailable", "group_id", conv.GroupID, "error", err)
			return nil
		}
		var sinks []contract.EventSink
		for _, member := range members {
			sinks = append(sinks, r.registry.SinksFor(member)...)
		}
		return sinks
	}
	return append(r.registry.SinksFor(conv.PeerA), r.registry.SinksFor(conv.PeerB)...)
}
