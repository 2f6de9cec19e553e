package runtime

import (
	"chatter/contract"
	"chatter/domain"
	"chatter/domain/event"
	"chatter/errors"
	"chatter/repositories"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

// DeliveryPolicy gates direct-message delivery. Group traffic never goes
// through it.
type DeliveryPolicy interface {
	CanDeliver(senderID, receiverID string) (bool, error)
}

// Router decides the recipient connection set for every command and delivers
// best-effort: each sink gets its own attempt, a dead or slow connection
// never aborts the batch.
type Router struct {
	log      *slog.Logger
	registry contract.IRegistry
	messages repositories.IMessageRepository
	groups   repositories.IGroupRepository
	policy   DeliveryPolicy
}

func NewRouter(log *slog.Logger, registry contract.IRegistry,
	messages repositories.IMessageRepository, groups repositories.IGroupRepository,
	policy DeliveryPolicy) *Router {
	return &Router{
		log:      log,
		registry: registry,
		messages: messages,
		groups:   groups,
		policy:   policy,
	}
}

func (r *Router) Submit(ctx context.Context, cmd domain.Command) error {
	switch c := cmd.(type) {
	case domain.SendDirect:
		return r.sendDirect(ctx, c)
	case domain.SendGroup:
		return r.sendGroup(ctx, c)
	case domain.Typing:
		return r.typing(ctx, c)
	case domain.React:
		return r.react(ctx, c)
	case domain.Delete:
		return r.delete(ctx, c)
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

// sendDirect persists and delivers a direct message to every live connection
// of the receiver and of the sender, so all sender devices converge and the
// sender's optimistic copy can be reconciled against the echo.
//
// A blocked pairing is a silent drop, not an error: nothing is persisted, no
// echo is sent, and the blocked party learns nothing.
func (r *Router) sendDirect(ctx context.Context, cmd domain.SendDirect) error {
	allowed, err := r.policy.CanDeliver(cmd.SenderID, cmd.ReceiverID)
	if err != nil {
		return fmt.Errorf("blocking check failed: %w", err)
	}
	if !allowed {
		r.log.Debug("Direct message suppressed by blocking policy", "sender", cmd.SenderID)
		return nil
	}

	message, err := r.persist(domain.Message{
		SenderID:      cmd.SenderID,
		ReceiverID:    cmd.ReceiverID,
		Content:       cmd.Content,
		Media:         cmd.Media,
		ParentID:      cmd.ParentID,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return err
	}

	targets := append(r.registry.SinksFor(cmd.ReceiverID), r.registry.SinksFor(cmd.SenderID)...)
	r.deliver(ctx, targets, event.MessageDelivered{Message: message})
	return nil
}

// sendGroup persists unconditionally and delivers to every connection of
// every *current* member, sender included. Membership is read at delivery
// time: a member added a moment ago receives the message, a removed one
// does not, even if their connection is still open.
func (r *Router) sendGroup(ctx context.Context, cmd domain.SendGroup) error {
	members, err := r.groups.Members(cmd.GroupID)
	if err != nil {
		return err
	}

	message, err := r.persist(domain.Message{
		SenderID:      cmd.SenderID,
		GroupID:       cmd.GroupID,
		Content:       cmd.Content,
		Media:         cmd.Media,
		ParentID:      cmd.ParentID,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return err
	}

	r.deliver(ctx, r.sinksForUsers(members), event.MessageDelivered{Message: message})
	return nil
}

// typing forwards the ephemeral signal without persistence. Receivers expire
// the indicator locally; absence of a repeated signal is the stop condition.
func (r *Router) typing(ctx context.Context, cmd domain.Typing) error {
	signal := event.TypingSignal{From: cmd.SenderID, GroupID: cmd.GroupID}

	if cmd.GroupID == "" {
		r.deliver(ctx, r.registry.SinksFor(cmd.ReceiverID), signal)
		return nil
	}

	members, err := r.groups.Members(cmd.GroupID)
	if err != nil {
		return err
	}
	others := lo.Filter(members, func(id string, _ int) bool { return id != cmd.SenderID })
	r.deliver(ctx, r.sinksForUsers(others), signal)
	return nil
}

// react toggles the user's membership in the reaction set and broadcasts the
// resulting map to every live connection system-wide, mirroring the source
// behavior this engine replaces (reaction delivery is not conversation-scoped).
func (r *Router) react(ctx context.Context, cmd domain.React) error {
	reactions, err := r.messages.ToggleReaction(cmd.MessageID, cmd.UserID, cmd.ReactionType)
	if err != nil {
		return err
	}
	r.deliver(ctx, r.registry.AllSinks(), event.ReactionUpdate{
		MessageID: cmd.MessageID,
		Reactions: reactions,
	})
	return nil
}

// delete hard-removes a sender's own message and tells every live connection
// to drop it. Replies to the deleted message are left dangling on purpose.
func (r *Router) delete(ctx context.Context, cmd domain.Delete) error {
	deleted, err := r.messages.Delete(cmd.MessageID, cmd.RequesterID)
	if err != nil {
		return err
	}
	r.deliver(ctx, r.registry.AllSinks(), event.MessageDeleted{
		MessageID:      cmd.MessageID,
		ConversationID: deleted.Conversation().Key(),
	})
	return nil
}

func (r *Router) persist(message domain.Message) (domain.Message, error) {
	if message.Content == "" && message.Media == nil {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	if message.Media != nil && message.Media.Kind == "" {
		message.Media.Kind = detectMediaKind(message.Media)
	}

	correlationID := message.CorrelationID
	persisted, err := r.messages.Create(message)
	if err != nil {
		return domain.Message{}, fmt.Errorf("persist failed: %w", err)
	}
	// The correlation id is not stored; reattach it so the sender's devices
	// can match the echo against their optimistic entry.
	persisted.CorrelationID = correlationID
	return persisted, nil
}

func (r *Router) sinksForUsers(userIDs []string) []contract.EventSink {
	var sinks []contract.EventSink
	for _, id := range userIDs {
		sinks = append(sinks, r.registry.SinksFor(id)...)
	}
	return sinks
}

// deliver is fire-and-forget per sink. Consume is non-blocking by contract;
// an error only means that one recipient missed the event.
func (r *Router) deliver(ctx context.Context, sinks []contract.EventSink, e event.DomainEvent) {
	for _, s := range sinks {
		if err := s.Consume(ctx, e); err != nil {
			r.log.Debug("Event not delivered", "kind", e.Kind(), "error", err)
		}
	}
}
