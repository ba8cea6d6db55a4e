package repositories

import (
	"chat-presence/domain"
	chaterrors "chat-presence/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const ParticipantPrefix = "participant:"

// ParticipantRepository keeps live participants in BadgerDB under
// "participant:{name}".
//
// Badger transactions are serializable snapshots: a transaction that read a
// key fails at commit if another transaction wrote that key in the meantime.
// Join, Heartbeat and EvictStale all read the key they act on, so a heartbeat
// racing an eviction is resolved by replaying the loser against fresh state.
type ParticipantRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger) *ParticipantRepository {
	return &ParticipantRepository{db: db, log: log}
}

func participantKey(name string) []byte {
	return []byte(ParticipantPrefix + name)
}

func (r *ParticipantRepository) Join(_ context.Context, name string, at time.Time) (domain.Participant, error) {
	p := domain.Participant{Name: name, LastSeen: at.UTC()}
	err := update(r.db, func(txn *badger.Txn) error {
		_, err := txn.Get(participantKey(name))
		if err == nil {
			return fmt.Errorf("%w: participant %q already joined", chaterrors.ErrConflict, name)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(participantKey(name), EncodeParticipant(p))
	})
	if err != nil {
		return domain.Participant{}, storageError("join", err)
	}
	return p, nil
}

func (r *ParticipantRepository) Heartbeat(_ context.Context, name string, at time.Time) error {
	err := update(r.db, func(txn *badger.Txn) error {
		p, err := getParticipant(txn, name)
		if err != nil {
			return err
		}
		p.LastSeen = at.UTC()
		return txn.Set(participantKey(name), EncodeParticipant(p))
	})
	return storageError("heartbeat", err)
}

func (r *ParticipantRepository) Get(_ context.Context, name string) (domain.Participant, error) {
	var p domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		p, err = getParticipant(txn, name)
		return err
	})
	if err != nil {
		return domain.Participant{}, storageError("get participant", err)
	}
	return p, nil
}

// List returns participants ordered by name, which is the key order.
func (r *ParticipantRepository) List(_ context.Context) ([]domain.Participant, error) {
	var res []domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		return scanParticipants(txn, func(_ []byte, p domain.Participant) {
			res = append(res, p)
		})
	})
	if err != nil {
		return nil, storageError("list participants", err)
	}
	return res, nil
}

// EvictStale deletes every participant with LastSeen <= now - ttl in a single
// transaction. Reading each item registers it in the transaction's read set,
// so a heartbeat committed during the sweep aborts it; the replay then sees
// the refreshed LastSeen and keeps that participant.
func (r *ParticipantRepository) EvictStale(_ context.Context, ttl time.Duration, now time.Time) ([]domain.Participant, error) {
	var evicted []domain.Participant
	err := update(r.db, func(txn *badger.Txn) error {
		evicted = nil
		var staleKeys [][]byte
		err := scanParticipants(txn, func(key []byte, p domain.Participant) {
			if p.IsStale(ttl, now) {
				staleKeys = append(staleKeys, key)
				evicted = append(evicted, p)
			}
		})
		if err != nil {
			return err
		}
		for _, key := range staleKeys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageError("evict stale participants", err)
	}
	if len(evicted) > 0 {
		r.log.Debug(fmt.Sprintf("%d stale participant(s) removed from badger", len(evicted)))
	}
	return evicted, nil
}

func getParticipant(txn *badger.Txn, name string) (domain.Participant, error) {
	item, err := txn.Get(participantKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Participant{}, fmt.Errorf("%w: participant %q", chaterrors.ErrNotFound, name)
	}
	if err != nil {
		return domain.Participant{}, err
	}
	var p domain.Participant
	err = item.Value(func(val []byte) error {
		p, err = DecodeParticipant(val)
		return err
	})
	return p, err
}

func scanParticipants(txn *badger.Txn, fn func(key []byte, p domain.Participant)) error {
	prefix := []byte(ParticipantPrefix)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		err := item.Value(func(val []byte) error {
			p, err := DecodeParticipant(val)
			if err != nil {
				return fmt.Errorf("decode %s: %w", item.Key(), err)
			}
			fn(item.KeyCopy(nil), p)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
