package runtime

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry is the in-memory participant registry.
// Every mutation holds the write lock, so a heartbeat and an eviction sweep
// touching the same name are always serialized.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]domain.Participant
}

func NewRegistry() *Registry {
	return &Registry{participants: make(map[string]domain.Participant)}
}

// Join registers name with LastSeen = at unless it is already present.
func (r *Registry) Join(_ context.Context, name string, at time.Time) (domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[name]; ok {
		return domain.Participant{}, fmt.Errorf("%w: participant %q already joined", errors.ErrConflict, name)
	}
	p := domain.Participant{Name: name, LastSeen: at}
	r.participants[name] = p
	return p, nil
}

// Heartbeat moves LastSeen of an existing participant to at.
func (r *Registry) Heartbeat(_ context.Context, name string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[name]
	if !ok {
		return fmt.Errorf("%w: participant %q", errors.ErrNotFound, name)
	}
	p.LastSeen = at
	r.participants[name] = p
	return nil
}

func (r *Registry) Get(_ context.Context, name string) (domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[name]
	if !ok {
		return domain.Participant{}, fmt.Errorf("%w: participant %q", errors.ErrNotFound, name)
	}
	return p, nil
}

// List returns a snapshot sorted by name.
func (r *Registry) List(_ context.Context) ([]domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// EvictStale removes, in one critical section, every participant whose
// LastSeen <= now - ttl and returns exactly those.
func (r *Registry) EvictStale(_ context.Context, ttl time.Duration, now time.Time) ([]domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []domain.Participant
	for name, p := range r.participants {
		if p.IsStale(ttl, now) {
			delete(r.participants, name)
			evicted = append(evicted, p)
		}
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i].Name < evicted[j].Name })
	return evicted, nil
}
