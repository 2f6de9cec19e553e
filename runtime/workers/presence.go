package workers

import (
	"chatter/contract"
	"chatter/domain/event"
	"context"
	"log/slog"
)

// PresenceWorker drains registry transition signals and pushes the full
// online-user snapshot to every registered connection. The snapshot is
// always reread at broadcast time, so coalesced transitions still produce a
// broadcast reflecting current registry state. A client may render a
// presence update that is already stale; that is accepted.
type PresenceWorker struct {
	log      *slog.Logger
	registry contract.IRegistry
	changes  <-chan struct{}
}

func NewPresenceWorker(log *slog.Logger, registry contract.IRegistry,
	changes <-chan struct{}) *PresenceWorker {
	return &PresenceWorker{log: log, registry: registry, changes: changes}
}

func (w *PresenceWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence broadcast")
			return nil
		case <-w.changes:
			w.broadcast(ctx)
		}
	}
}

func (w *PresenceWorker) broadcast(ctx context.Context) {
	snapshot := event.OnlineUsers{Users: w.registry.Online()}
	for _, s := range w.registry.AllSinks() {
		if err := s.Consume(ctx, snapshot); err != nil {
			w.log.Debug("Presence update not delivered", "error", err)
		}
	}
}
