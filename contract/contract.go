//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-rooms/domain"
	"chat-rooms/domain/event"
)

// EventSink is one connection's outbound queue. Consume must never block
// the caller: a full or closed sink is the sink's problem, not the broadcaster's.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the process-wide map from room to live connections.
type IRegistry interface {
	Join(roomID domain.RoomID, connID string, sink EventSink)
	Leave(roomID domain.RoomID, connID string)
	Broadcast(ctx context.Context, roomID domain.RoomID, e event.DomainEvent)
	Gauge() (rooms, connections int)
}

type WorkerName string

// Worker doesn't protect itself. Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the Worker interface.
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
