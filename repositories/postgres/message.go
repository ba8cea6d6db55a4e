package postgres

import (
	"chat-presence/domain"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// appendLockKey serializes appends so BIGSERIAL order equals commit order.
const appendLockKey = 0x6d7367

// MessageRepository is the append-only log in the messages table, ordered by seq.
type MessageRepository struct {
	pool      *pgxpool.Pool
	retention *int
	now       func() time.Time
}

func NewMessageRepository(pool *pgxpool.Pool, retention *int, now func() time.Time) *MessageRepository {
	if now == nil {
		now = time.Now
	}
	return &MessageRepository{pool: pool, retention: retention, now: now}
}

func (m *MessageRepository) Append(ctx context.Context, message domain.Message) (domain.Message, error) {
	if err := domain.Validate(message); err != nil {
		return domain.Message{}, err
	}
	message.ID = uuid.New()
	message.At = m.now().UTC().Truncate(time.Microsecond)

	err := pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
			return err
		}
		const insert = `INSERT INTO messages (id, from_name, to_name, text, kind, created_at)
			VALUES ($1, $2, $3, $4, $5, $6) RETURNING seq`
		var seq int64
		err := tx.QueryRow(ctx, insert,
			message.ID.String(), message.From, message.To, message.Text, string(message.Kind), message.At,
		).Scan(&seq)
		if err != nil {
			return err
		}
		message.Seq = uint64(seq)

		if m.retention == nil {
			return nil
		}
		const trim = `DELETE FROM messages WHERE seq <= (
			SELECT seq FROM messages ORDER BY seq DESC OFFSET $1 LIMIT 1)`
		_, err = tx.Exec(ctx, trim, *m.retention)
		return err
	})
	if err != nil {
		return domain.Message{}, storageError("append message", err)
	}
	return message, nil
}

func (m *MessageRepository) QueryAll(ctx context.Context) ([]domain.Message, error) {
	const query = `SELECT id::text, seq, from_name, to_name, text, kind, created_at FROM messages ORDER BY seq`
	rows, err := m.pool.Query(ctx, query)
	if err != nil {
		return nil, storageError("query messages", err)
	}
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		var (
			message domain.Message
			rawID   string
			seq     int64
			kind    string
		)
		if err := row.Scan(&rawID, &seq, &message.From, &message.To, &message.Text, &kind, &message.At); err != nil {
			return domain.Message{}, err
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return domain.Message{}, fmt.Errorf("invalid message id %q: %w", rawID, err)
		}
		message.ID = id
		message.Seq = uint64(seq)
		message.Kind = domain.Kind(kind)
		message.At = message.At.UTC()
		return message, nil
	})
	if err != nil {
		return nil, storageError("query messages", err)
	}
	return messages, nil
}
