package repositories

import (
	"chat-presence/domain"
	chaterrors "chat-presence/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

const ttl = 10 * time.Second

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestParticipantRepository_Join_Conflict(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewParticipantRepository(openDB(t), slog.Default())

	// Given Ana joined
	p, err := repository.Join(ctx, "Ana", t0)
	req.NoError(err)
	req.Equal(domain.Participant{Name: "Ana", LastSeen: t0}, p)

	// When Ana joins again
	_, err = repository.Join(ctx, "Ana", t0.Add(time.Second))

	// Then the second call is a conflict and the first registration is kept
	req.ErrorIs(err, chaterrors.ErrConflict)
	stored, err := repository.Get(ctx, "Ana")
	req.NoError(err)
	req.Equal(t0, stored.LastSeen)
}

func TestParticipantRepository_Heartbeat(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewParticipantRepository(openDB(t), slog.Default())

	req.ErrorIs(repository.Heartbeat(ctx, "Ghost", t0), chaterrors.ErrNotFound)

	_, err := repository.Join(ctx, "Ana", t0)
	req.NoError(err)
	req.NoError(repository.Heartbeat(ctx, "Ana", t0.Add(3*time.Second)))

	stored, err := repository.Get(ctx, "Ana")
	req.NoError(err)
	req.Equal(t0.Add(3*time.Second), stored.LastSeen)
}

func TestParticipantRepository_List_Sorted_By_Name(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewParticipantRepository(openDB(t), slog.Default())

	for _, name := range []string{"Leo", "Ana", "Bea"} {
		_, err := repository.Join(ctx, name, t0)
		req.NoError(err)
	}

	participants, err := repository.List(ctx)
	req.NoError(err)
	req.Equal([]domain.Participant{
		{Name: "Ana", LastSeen: t0},
		{Name: "Bea", LastSeen: t0},
		{Name: "Leo", LastSeen: t0},
	}, participants)
}

func TestParticipantRepository_EvictStale(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewParticipantRepository(openDB(t), slog.Default())

	// Given Leo stays silent while Ana sends a heartbeat
	_, err := repository.Join(ctx, "Leo", t0)
	req.NoError(err)
	_, err = repository.Join(ctx, "Ana", t0)
	req.NoError(err)
	req.NoError(repository.Heartbeat(ctx, "Ana", t0.Add(ttl)))

	// When the sweep runs at t0 + ttl + ε
	evicted, err := repository.EvictStale(ctx, ttl, t0.Add(ttl+time.Millisecond))

	// Then Leo is evicted exactly once
	req.NoError(err)
	req.Equal([]domain.Participant{{Name: "Leo", LastSeen: t0}}, evicted)
	evicted, err = repository.EvictStale(ctx, ttl, t0.Add(ttl+time.Millisecond))
	req.NoError(err)
	req.Empty(evicted)

	// And a late heartbeat for Leo does not bring him back
	req.ErrorIs(repository.Heartbeat(ctx, "Leo", t0.Add(ttl+time.Second)), chaterrors.ErrNotFound)
	participants, err := repository.List(ctx)
	req.NoError(err)
	req.Equal([]domain.Participant{{Name: "Ana", LastSeen: t0.Add(ttl)}}, participants)
}

func TestParticipantRepository_Join_After_Eviction(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewParticipantRepository(openDB(t), slog.Default())

	_, err := repository.Join(ctx, "Leo", t0)
	req.NoError(err)
	_, err = repository.EvictStale(ctx, ttl, t0.Add(ttl))
	req.NoError(err)

	// The name is free again once evicted
	p, err := repository.Join(ctx, "Leo", t0.Add(ttl))
	req.NoError(err)
	req.Equal(t0.Add(ttl), p.LastSeen)
}

func TestParticipantRepository_Concurrent_Joins_Of_Same_Name(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewParticipantRepository(openDB(t), slog.Default())

	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, conflicts int
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repository.Join(ctx, "Ana", t0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, chaterrors.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	req.Equal(1, succeeded)
	req.Equal(19, conflicts)
}

func TestParticipantRepository_Concurrent_Heartbeats_And_Sweeps(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewParticipantRepository(openDB(t), slog.Default())
	names := make([]string, 20)
	for i := range names {
		names[i] = fmt.Sprintf("user_%02d", i)
		_, err := repository.Join(ctx, names[i], t0)
		req.NoError(err)
	}

	now := t0.Add(ttl + time.Second)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var evictedTotal []domain.Participant
	refreshed := make(map[string]bool)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			err := repository.Heartbeat(ctx, name, now)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				refreshed[name] = true
				return
			}
			assert.ErrorIs(t, err, chaterrors.ErrNotFound)
		}(name)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			evicted, err := repository.EvictStale(ctx, ttl, now)
			assert.NoError(t, err)
			mu.Lock()
			evictedTotal = append(evictedTotal, evicted...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	participants, err := repository.List(ctx)
	req.NoError(err)

	// Then a refreshed participant is never evicted, an evicted one never stays
	evictedNames := make(map[string]int)
	for _, p := range evictedTotal {
		evictedNames[p.Name]++
		req.False(refreshed[p.Name], "%s was evicted after its heartbeat succeeded", p.Name)
	}
	for name, count := range evictedNames {
		req.Equal(1, count, name)
	}
	for _, p := range participants {
		req.True(refreshed[p.Name])
		req.Zero(evictedNames[p.Name])
	}
	req.Equal(len(names), len(participants)+len(evictedNames))
}
