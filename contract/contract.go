//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-presence/domain"
	"context"
	"reflect"
	"time"
)

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
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
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

// IParticipantRepository owns the set of live participants.
//
// Join and EvictStale are atomic: a name is created only if absent, and a
// participant is evicted only if the LastSeen read during the sweep is still
// the stored one. A Heartbeat that loses the race against an eviction fails
// with errors.ErrNotFound instead of resurrecting the participant.
type IParticipantRepository interface {
	Join(ctx context.Context, name string, at time.Time) (domain.Participant, error)
	Heartbeat(ctx context.Context, name string, at time.Time) error
	Get(ctx context.Context, name string) (domain.Participant, error)
	List(ctx context.Context) ([]domain.Participant, error)
	EvictStale(ctx context.Context, ttl time.Duration, now time.Time) ([]domain.Participant, error)
}

// IMessageRepository is the append-only message log.
// QueryAll returns messages in insertion order.
type IMessageRepository interface {
	Append(ctx context.Context, message domain.Message) (domain.Message, error)
	QueryAll(ctx context.Context) ([]domain.Message, error)
}
