package workers

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"context"
	"log/slog"
	"sync"
	"time"
)

// ReaperWorker evicts participants that stopped sending heartbeats and
// announces each departure to the room.
//
// A tick is synchronous: the next EvictStale never starts before every leave
// notice of the previous tick has been attempted. Eviction is authoritative,
// a notice that cannot be stored is logged and skipped.
type ReaperWorker struct {
	log          *slog.Logger
	participants contract.IParticipantRepository
	messages     contract.IMessageRepository
	interval     time.Duration
	ttl          time.Duration
	now          func() time.Time
}

func NewReaperWorker(
	log *slog.Logger,
	participants contract.IParticipantRepository,
	messages contract.IMessageRepository,
	interval, ttl time.Duration,
	now func() time.Time,
) *ReaperWorker {
	if now == nil {
		now = time.Now
	}
	return &ReaperWorker{
		log:          log,
		participants: participants,
		messages:     messages,
		interval:     interval,
		ttl:          ttl,
		now:          now,
	}
}

// Run ticks every interval until ctx is cancelled.
// A tick still running when the next one is due delays it, ticks never overlap.
func (w *ReaperWorker) Run(ctx context.Context) error {
	w.log.Info("Starting reaper worker", "interval", w.interval, "ttl", w.ttl)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping reaper worker")
			return ctx.Err()
		case <-ticker.C:
			_, _ = w.Tick(ctx)
		}
	}
}

// Tick runs one sweep and returns the evicted participants.
// The error only reports a failed sweep; failed notices are logged.
func (w *ReaperWorker) Tick(ctx context.Context) ([]domain.Participant, error) {
	evicted, err := w.participants.EvictStale(ctx, w.ttl, w.now())
	if err != nil {
		w.log.Error("Presence sweep failed", "error", err)
		return nil, err
	}

	// Evictions are committed: their notices must outlive a shutdown.
	noticeCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for _, p := range evicted {
		wg.Add(1)
		go func(p domain.Participant) {
			defer wg.Done()
			w.log.Info("Participant evicted", "name", p.Name, "last_seen", p.LastSeen)
			if _, err := w.messages.Append(noticeCtx, domain.LeftNotice(p.Name)); err != nil {
				w.log.Error("Failed to store leave notice", "name", p.Name, "error", err)
			}
		}(p)
	}
	wg.Wait()
	return evicted, nil
}
