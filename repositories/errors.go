package repositories

import (
	chaterrors "chat-presence/errors"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries bounds how many times a transaction is replayed after
// losing an optimistic concurrency check against another writer.
const maxConflictRetries = 64

// update runs fn in a read-write transaction and replays it when badger
// reports a conflict, so the next attempt observes the winning write.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// storageError keeps domain errors as they are and tags everything else
// coming from badger as a storage failure.
func storageError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chaterrors.ErrConflict),
		errors.Is(err, chaterrors.ErrNotFound),
		errors.Is(err, chaterrors.ErrValidation):
		return err
	default:
		return fmt.Errorf("%w: %s: %w", chaterrors.ErrStorage, op, err)
	}
}
