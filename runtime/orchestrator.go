// Package runtime owns the live side of the room: who is present, and the
// background work that keeps presence honest.
// It contains no request handling and no message formatting.
package runtime

import (
	"chat-presence/contract"
	"chat-presence/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"time"
)

type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	participants   contract.IParticipantRepository
	messages       contract.IMessageRepository
	reapInterval   time.Duration
	participantTTL time.Duration
	now            func() time.Time
	started        bool
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	participants contract.IParticipantRepository, messages contract.IMessageRepository,
	reapInterval, participantTTL time.Duration, now func() time.Time) *Orchestrator {
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		participants:   participants,
		messages:       messages,
		reapInterval:   reapInterval,
		participantTTL: participantTTL,
		now:            now,
	}
}

// Start registers the presence reaper and blocks while the supervisor runs.
// Calling it twice is a no-op for the second caller.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		o.log.Warn("Orchestrator already started")
		return nil
	}
	o.started = true
	reaper := workers.NewReaperWorker(o.log, o.participants, o.messages, o.reapInterval, o.participantTTL, o.now)
	o.supervisor.Add(reaper)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised context. The sweep in flight, if any,
// finishes its notices before Start returns.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
