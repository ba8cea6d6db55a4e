// Package domain contains core concepts of the chat system.
// This file defines the Participant entity and its staleness rule.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"time"
)

// Participant is a live member of the room.
// Name is unique within the room; LastSeen moves forward on join and heartbeat.
type Participant struct {
	Name     string
	LastSeen time.Time
}

// IsStale reports whether the participant has been silent for at least ttl at now.
// The boundary is inclusive: lastSeen <= now - ttl is stale.
func (p Participant) IsStale(ttl time.Duration, now time.Time) bool {
	return !p.LastSeen.After(now.Add(-ttl))
}
