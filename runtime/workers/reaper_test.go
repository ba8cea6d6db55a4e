package workers_test

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/mocks"
	"chat-presence/projection"
	"chat-presence/runtime"
	"chat-presence/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

const ttl = 10 * time.Second

func leftNotices(messages []domain.Message) []string {
	notices := lo.Filter(messages, func(m domain.Message, _ int) bool {
		return m.Kind == domain.KindStatus && m.Text == domain.LeftText
	})
	return lo.Map(notices, func(m domain.Message, _ int) string { return m.From })
}

func TestReaper_Tick_Evicts_Stale_And_Announces_Once(t *testing.T) {
	defer goleak.VerifyNone(t)
	req := require.New(t)
	ctx := context.Background()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := runtime.NewRegistry()
	timeline := projection.NewTimeline(nil, nil)

	// Given Leo joined at t0 and never sent a heartbeat, Ana did
	_, err := registry.Join(ctx, "Leo", t0)
	req.NoError(err)
	_, err = registry.Join(ctx, "Ana", t0)
	req.NoError(err)
	req.NoError(registry.Heartbeat(ctx, "Ana", t0.Add(ttl)))

	now := t0.Add(ttl + time.Millisecond)
	reaper := workers.NewReaperWorker(log, registry, timeline, time.Hour, ttl, func() time.Time { return now })

	// When two ticks run
	evicted, err := reaper.Tick(ctx)
	req.NoError(err)
	req.Equal([]domain.Participant{{Name: "Leo", LastSeen: t0}}, evicted)
	evicted, err = reaper.Tick(ctx)
	req.NoError(err)
	req.Empty(evicted)

	// Then Leo is gone and exactly one leave notice exists for him
	participants, err := registry.List(ctx)
	req.NoError(err)
	req.Equal([]string{"Ana"}, lo.Map(participants, func(p domain.Participant, _ int) string { return p.Name }))
	messages, err := timeline.QueryAll(ctx)
	req.NoError(err)
	req.Equal([]string{"Leo"}, leftNotices(messages))
	req.Equal(domain.BroadcastTarget, messages[0].To)
}

func TestReaper_Tick_Notice_Failure_Does_Not_Block_Others(t *testing.T) {
	defer goleak.VerifyNone(t)
	req := require.New(t)
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	now := t0.Add(time.Minute)

	// Given three stale participants and a store failing for Bea only
	stale := []domain.Participant{{Name: "Ana", LastSeen: t0}, {Name: "Bea", LastSeen: t0}, {Name: "Leo", LastSeen: t0}}
	participants.EXPECT().EvictStale(gomock.Any(), ttl, now).Return(stale, nil).Times(1)
	messages.EXPECT().Append(gomock.Any(), domain.LeftNotice("Ana")).Return(domain.Message{}, nil).Times(1)
	messages.EXPECT().Append(gomock.Any(), domain.LeftNotice("Bea")).
		Return(domain.Message{}, fmt.Errorf("%w: unavailable", errors.ErrStorage)).Times(1)
	messages.EXPECT().Append(gomock.Any(), domain.LeftNotice("Leo")).Return(domain.Message{}, nil).Times(1)

	reaper := workers.NewReaperWorker(slog.Default(), participants, messages, time.Hour, ttl, func() time.Time { return now })

	// When the tick runs
	evicted, err := reaper.Tick(context.Background())

	// Then every eviction stands and every notice was attempted
	req.NoError(err)
	req.Equal(stale, evicted)
}

func TestReaper_Tick_Sweep_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	participants.EXPECT().EvictStale(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("%w: locked", errors.ErrStorage))
	messages.EXPECT().Append(gomock.Any(), gomock.Any()).Times(0)

	reaper := workers.NewReaperWorker(slog.Default(), participants, messages, time.Hour, ttl, nil)

	evicted, err := reaper.Tick(context.Background())

	req.ErrorIs(err, errors.ErrStorage)
	req.Empty(evicted)
}

func TestReaper_Run_Ticks_Until_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	req := require.New(t)
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)

	var sweeps, inFlight, overlaps atomic.Int32
	participants.EXPECT().EvictStale(gomock.Any(), ttl, gomock.Any()).
		DoAndReturn(func(context.Context, time.Duration, time.Time) ([]domain.Participant, error) {
			if inFlight.Add(1) > 1 {
				overlaps.Add(1)
			}
			defer inFlight.Add(-1)
			sweeps.Add(1)
			// Slower than the interval so ticks would pile up if they could
			time.Sleep(15 * time.Millisecond)
			return nil, nil
		}).
		MinTimes(2)

	reaper := workers.NewReaperWorker(slog.Default(), participants, messages, 5*time.Millisecond, ttl, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reaper.Run(ctx) }()

	req.Eventually(func() bool { return sweeps.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		req.Fail("reaper should stop once its context is cancelled")
	}
	req.Zero(overlaps.Load())
}

func TestReaper_Tick_Notices_Survive_Cancellation(t *testing.T) {
	defer goleak.VerifyNone(t)
	req := require.New(t)
	ctrl := gomock.NewController(t)
	participants := mocks.NewMockIParticipantRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)
	now := t0.Add(time.Minute)

	// Given a sweep whose context is cancelled once the eviction is committed
	ctx, cancel := context.WithCancel(context.Background())
	participants.EXPECT().EvictStale(gomock.Any(), ttl, now).
		DoAndReturn(func(context.Context, time.Duration, time.Time) ([]domain.Participant, error) {
			cancel()
			return []domain.Participant{{Name: "Leo", LastSeen: t0}}, nil
		})

	// Then the leave notice is still stored with a live context
	var noticeErr error
	messages.EXPECT().Append(gomock.Any(), domain.LeftNotice("Leo")).
		DoAndReturn(func(ctx context.Context, m domain.Message) (domain.Message, error) {
			noticeErr = ctx.Err()
			return m, noticeErr
		}).
		Times(1)

	reaper := workers.NewReaperWorker(slog.Default(), participants, messages, time.Hour, ttl, func() time.Time { return now })
	evicted, err := reaper.Tick(ctx)

	req.NoError(err)
	req.Len(evicted, 1)
	req.NoError(noticeErr)
}
