//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chatter/domain"
	"chatter/domain/event"
	"context"
	"reflect"
)

// EventSink is one delivery target, usually the buffered outbound queue of a
// live connection. Consume must never block the caller indefinitely: a full
// or dead sink drops the event and the fan-out moves on.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry maps user identities to their live connection sinks.
// A user owns zero or more sinks (multi-device); presence is derived from
// the non-empty key set, never stored as independent truth.
type IRegistry interface {
	Register(userID string, sink EventSink)
	Unregister(userID string, sink EventSink)
	SinksFor(userID string) []EventSink
	AllSinks() []EventSink
	Online() []string
}

// IRouter accepts commands from authenticated connections and decides the
// recipient set for each resulting event.
type IRouter interface {
	Submit(ctx context.Context, cmd domain.Command) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
