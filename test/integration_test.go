package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chatter/domain"
	"chatter/domain/event"
	"chatter/repositories"
	"chatter/runtime"
	"chatter/runtime/workers"
	"chatter/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// waitingSink forwards events to a channel the scenario can wait on.
type waitingSink struct {
	events chan event.DomainEvent
}

func newWaitingSink() *waitingSink {
	return &waitingSink{events: make(chan event.DomainEvent, 32)}
}

func (s *waitingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.events <- e
	return nil
}

func (s *waitingSink) next(t *testing.T) event.DomainEvent {
	t.Helper()
	select {
	case e := <-s.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout: event never reached the sink")
		return nil
	}
}

func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	log := slog.Default()
	registry := runtime.NewRegistry()
	messages := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	groups := repositories.NewGroupRepository(db)
	users := repositories.NewUserRepository(db)
	policy := services.NewBlockPolicy(users)
	router := runtime.NewRouter(log, registry, messages, groups, policy)
	receipts := runtime.NewReceipts(log, registry, messages, groups)
	service := services.NewChatService(router, receipts, registry, messages, groups, users, policy)

	supervisorCtx, cancelWorkers := context.WithCancel(ctx)
	sup := workers.NewSupervisor(log)
	go sup.Add(workers.NewPresenceWorker(log, registry, registry.Changes())).Run(supervisorCtx)

	t.Cleanup(func() {
		cancelWorkers()
		_ = db.Close()
	})

	// When Alice connects, she receives the presence snapshot
	alice := newWaitingSink()
	service.Attach("alice", alice)
	snapshot := alice.next(t).(event.OnlineUsers)
	req.Equal([]string{"alice"}, snapshot.Users)

	// When Bob connects, both see the updated snapshot
	bob := newWaitingSink()
	service.Attach("bob", bob)
	snapshot = alice.next(t).(event.OnlineUsers)
	req.Equal([]string{"alice", "bob"}, snapshot.Users)
	_ = bob.next(t)

	// When Alice posts a direct message with an optimistic temp id
	err = service.Submit(ctx, domain.SendDirect{
		SenderID:      "alice",
		ReceiverID:    "bob",
		Content:       "this message will self destruct in 5 seconds",
		CorrelationID: "tmp-1",
	})
	req.NoError(err)

	// Then Bob receives it, and Alice gets the echo carrying her temp id
	delivered := bob.next(t).(event.MessageDelivered)
	req.Equal("alice", delivered.Message.SenderID)
	echo := alice.next(t).(event.MessageDelivered)
	req.Equal("tmp-1", echo.Message.CorrelationID)
	req.Equal(delivered.Message.ID, echo.Message.ID)

	// And the message is persisted in the shared conversation timeline
	history, _, err := service.DirectHistory("bob", "alice", nil)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(delivered.Message.ID, history[0].ID)

	// When Bob acknowledges reading it, Alice observes the receipt
	delta, err := service.MarkRead(ctx, "bob", []string{delivered.Message.ID},
		domain.DirectConversation("alice", "bob"))
	req.NoError(err)
	req.Equal([]string{delivered.Message.ID}, delta)
	receipt := alice.next(t).(event.ReadReceipt)
	req.Equal("bob", receipt.UserID)
	_ = bob.next(t)

	// Re-acknowledging is an idempotent no-op, nothing is broadcast
	delta, err = service.MarkRead(ctx, "bob", []string{delivered.Message.ID},
		domain.DirectConversation("alice", "bob"))
	req.NoError(err)
	req.Empty(delta)

	// When Bob blocks Alice, her next message disappears silently
	req.NoError(service.Block("bob", "alice"))
	err = service.Submit(ctx, domain.SendDirect{
		SenderID:   "alice",
		ReceiverID: "bob",
		Content:    "are you still there?",
	})
	req.NoError(err)

	select {
	case e := <-bob.events:
		req.Failf("unexpected delivery", "got %v", e)
	case <-time.After(300 * time.Millisecond):
	}

	history, _, err = service.DirectHistory("alice", "bob", nil)
	req.NoError(err)
	req.Len(history, 1)

	// When Bob disconnects, Alice sees him leave
	service.Detach("bob", bob)
	snapshot = alice.next(t).(event.OnlineUsers)
	req.Equal([]string{"alice"}, snapshot.Users)
}
