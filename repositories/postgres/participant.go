package postgres

import (
	"chat-presence/domain"
	chaterrors "chat-presence/errors"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ParticipantRepository relies on row locks: EvictStale is a single
// DELETE ... RETURNING whose WHERE clause is re-checked against any row a
// concurrent heartbeat just updated, and a heartbeat blocked on a row being
// deleted finds nothing to update.
type ParticipantRepository struct {
	pool *pgxpool.Pool
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

func (r *ParticipantRepository) Join(ctx context.Context, name string, at time.Time) (domain.Participant, error) {
	const query = `INSERT INTO participants (name, last_seen) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	tag, err := r.pool.Exec(ctx, query, name, at.UTC())
	if err != nil {
		return domain.Participant{}, storageError("join", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Participant{}, fmt.Errorf("%w: participant %q already joined", chaterrors.ErrConflict, name)
	}
	return domain.Participant{Name: name, LastSeen: at.UTC()}, nil
}

func (r *ParticipantRepository) Heartbeat(ctx context.Context, name string, at time.Time) error {
	const query = `UPDATE participants SET last_seen = $2 WHERE name = $1`
	tag, err := r.pool.Exec(ctx, query, name, at.UTC())
	if err != nil {
		return storageError("heartbeat", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: participant %q", chaterrors.ErrNotFound, name)
	}
	return nil
}

func (r *ParticipantRepository) Get(ctx context.Context, name string) (domain.Participant, error) {
	const query = `SELECT name, last_seen FROM participants WHERE name = $1`
	var p domain.Participant
	err := r.pool.QueryRow(ctx, query, name).Scan(&p.Name, &p.LastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Participant{}, fmt.Errorf("%w: participant %q", chaterrors.ErrNotFound, name)
	}
	if err != nil {
		return domain.Participant{}, storageError("get participant", err)
	}
	p.LastSeen = p.LastSeen.UTC()
	return p, nil
}

func (r *ParticipantRepository) List(ctx context.Context) ([]domain.Participant, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, last_seen FROM participants ORDER BY name`)
	if err != nil {
		return nil, storageError("list participants", err)
	}
	res, err := collectParticipants(rows)
	if err != nil {
		return nil, storageError("list participants", err)
	}
	return res, nil
}

func (r *ParticipantRepository) EvictStale(ctx context.Context, ttl time.Duration, now time.Time) ([]domain.Participant, error) {
	const query = `DELETE FROM participants WHERE last_seen <= $1 RETURNING name, last_seen`
	rows, err := r.pool.Query(ctx, query, now.Add(-ttl).UTC())
	if err != nil {
		return nil, storageError("evict stale participants", err)
	}
	res, err := collectParticipants(rows)
	if err != nil {
		return nil, storageError("evict stale participants", err)
	}
	return res, nil
}

func collectParticipants(rows pgx.Rows) ([]domain.Participant, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Participant, error) {
		var p domain.Participant
		err := row.Scan(&p.Name, &p.LastSeen)
		p.LastSeen = p.LastSeen.UTC()
		return p, err
	})
}
