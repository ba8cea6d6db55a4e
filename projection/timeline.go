// Package projection builds local timelines from observed events.
// Handles ordering, visibility, and truncation of what a participant reads.
// Does not emit events or interact with transport directly.
package projection

import (
	"chat-presence/domain"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Timeline is the in-memory append-only message log.
// Insertion order is the total order; Seq starts at 1.
type Timeline struct {
	mu        sync.RWMutex
	messages  []domain.Message
	nextSeq   uint64
	retention *int
	now       func() time.Time
}

// NewTimeline builds an empty log. A non-nil retention keeps only the most
// recent messages; now defaults to time.Now.
func NewTimeline(retention *int, now func() time.Time) *Timeline {
	if now == nil {
		now = time.Now
	}
	return &Timeline{nextSeq: 1, retention: retention, now: now}
}

// Append stamps the message with an ID, a sequence number and the current
// time, then stores it. Invalid messages are rejected before touching the log.
func (t *Timeline) Append(_ context.Context, message domain.Message) (domain.Message, error) {
	if err := domain.Validate(message); err != nil {
		return domain.Message{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	message.ID = uuid.New()
	message.Seq = t.nextSeq
	message.At = t.now().UTC()
	t.nextSeq++
	t.messages = append(t.messages, message)

	if t.retention != nil && len(t.messages) > *t.retention {
		overflow := len(t.messages) - *t.retention
		t.messages = append([]domain.Message(nil), t.messages[overflow:]...)
	}
	return message, nil
}

// QueryAll returns a copy of the log in insertion order.
func (t *Timeline) QueryAll(_ context.Context) ([]domain.Message, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := make([]domain.Message, len(t.messages))
	copy(res, t.messages)
	return res, nil
}
