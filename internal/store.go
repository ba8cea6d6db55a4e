package internal

import (
	"chat-presence/contract"
	"chat-presence/projection"
	"chat-presence/repositories"
	"chat-presence/repositories/postgres"
	"chat-presence/runtime"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Store bundles the participant and message repositories of one driver.
type Store struct {
	Participants contract.IParticipantRepository
	Messages     contract.IMessageRepository
	closers      []func() error
}

// OpenStore builds the repositories selected by config.StoreDriver.
// now stamps stored messages; nil means time.Now.
func OpenStore(ctx context.Context, config Config, log *slog.Logger, now func() time.Time) (*Store, error) {
	switch config.StoreDriver {
	case DriverMemory:
		log.Info("Using in-memory store")
		return &Store{
			Participants: runtime.NewRegistry(),
			Messages:     projection.NewTimeline(config.MessageRetention, now),
		}, nil

	case DriverBadger:
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, fmt.Errorf("database opening failed: %w", err)
		}
		messages, err := repositories.NewMessageRepository(db, log, config.MessageRetention, now)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("Using badger store", "path", config.BadgerFilepath)
		return &Store{
			Participants: repositories.NewParticipantRepository(db, log),
			Messages:     messages,
			closers:      []func() error{messages.Close, db.Close},
		}, nil

	case DriverPostgres:
		pool, err := postgres.Connect(ctx, config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info("Using postgres store")
		return &Store{
			Participants: postgres.NewParticipantRepository(pool),
			Messages:     postgres.NewMessageRepository(pool, config.MessageRetention, now),
			closers:      []func() error{func() error { pool.Close(); return nil }},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", config.StoreDriver)
	}
}

// Close releases the underlying storage in reverse acquisition order.
func (s *Store) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}
