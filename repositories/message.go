package repositories

import (
	"chat-presence/domain"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	MessagePrefix = "msg:"
	sequenceKey   = "seq:msg"
	// sequenceBandwidth is how many sequence numbers badger leases at once.
	sequenceBandwidth = 100
)

// MessageRepository is the append-only message log stored in BadgerDB.
// The key is formatted as "msg:{seq_padded}" so that a forward prefix scan
// returns messages in insertion order (20-digit zero padding keeps the
// lexicographical order equal to the numeric one).
type MessageRepository struct {
	mu        sync.Mutex
	db        *badger.DB
	log       *slog.Logger
	seq       *badger.Sequence
	retention *int
	count     int
	now       func() time.Time
}

// NewMessageRepository leases a sequence from badger and counts the messages
// already stored so retention keeps working across restarts.
// A nil retention keeps every message; now defaults to time.Now.
func NewMessageRepository(db *badger.DB, log *slog.Logger, retention *int, now func() time.Time) (*MessageRepository, error) {
	if now == nil {
		now = time.Now
	}
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, storageError("lease message sequence", err)
	}
	repository := &MessageRepository{db: db, log: log, seq: seq, retention: retention, now: now}
	if err := db.View(func(txn *badger.Txn) error {
		repository.count = countKeys(txn, []byte(MessagePrefix))
		return nil
	}); err != nil {
		_ = seq.Release()
		return nil, storageError("count messages", err)
	}
	return repository, nil
}

func messageKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", MessagePrefix, seq))
}

// Append stores one message. Appends are serialized so that sequence order,
// commit order and timestamp order always agree.
func (m *MessageRepository) Append(_ context.Context, message domain.Message) (domain.Message, error) {
	if err := domain.Validate(message); err != nil {
		return domain.Message{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Badger sequences start at 0, messages start at 1.
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, storageError("next message sequence", err)
	}
	message.ID = uuid.New()
	message.Seq = next + 1
	message.At = m.now().UTC()

	trimmed := 0
	err = update(m.db, func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.Seq), EncodeMessage(message)); err != nil {
			return err
		}
		trimmed = 0
		if m.retention == nil || m.count+1 <= *m.retention {
			return nil
		}
		var err error
		trimmed, err = deleteOldest(txn, m.count+1-*m.retention)
		return err
	})
	if err != nil {
		return domain.Message{}, storageError("append message", err)
	}
	m.count += 1 - trimmed
	if trimmed > 0 {
		m.log.Debug(fmt.Sprintf("Retention reached, %d old message(s) trimmed", trimmed))
	}
	return message, nil
}

// QueryAll returns every stored message, oldest first.
func (m *MessageRepository) QueryAll(_ context.Context) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(MessagePrefix)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				message, err := DecodeMessage(val)
				if err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageError("query messages", err)
	}
	return messages, nil
}

// Close hands the unused part of the leased sequence back to badger.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// deleteOldest removes up to n messages from the head of the log.
func deleteOldest(txn *badger.Txn, n int) (int, error) {
	prefix := []byte(MessagePrefix)
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	options.PrefetchValues = false
	it := txn.NewIterator(options)

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix) && len(keys) < n; it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func countKeys(txn *badger.Txn, prefix []byte) int {
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	options.PrefetchValues = false
	it := txn.NewIterator(options)
	defer it.Close()

	count := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		count++
	}
	return count
}
