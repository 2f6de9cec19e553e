// Package sink provides the delivery endpoints events are fanned out to.
package sink

import (
	"chatter/domain/event"
	"context"
	"log/slog"
)

// ConnectionSink is the buffered outbound queue of one live connection.
// The transport's write pump drains Events; the fan-out side never blocks
// on a slow or dead connection.
type ConnectionSink struct {
	Events chan event.DomainEvent
	log    *slog.Logger
}

func NewConnectionSink(log *slog.Logger, bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		Events: make(chan event.DomainEvent, bufferSize),
		log:    log,
	}
}

// Consume is called by the fan-out. A full buffer drops the event: delivery
// is best-effort and a stalled peer only loses its own updates.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.log.Debug("Connection buffer full, dropping event", "kind", e.Kind())
		return nil
	}
}
