// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the wire value of a message type.
type Kind string

const (
	KindBroadcast Kind = "message"
	KindPrivate   Kind = "private_message"
	KindStatus    Kind = "status"
)

// Message represents an immutable chat event.
// Seq and At are assigned by the store at append time, Seq gives the total order.
type Message struct {
	ID   uuid.UUID
	Seq  uint64
	From string `validate:"required"`
	To   string `validate:"required"`
	Text string `validate:"required"`
	Kind Kind   `validate:"required,oneof=message private_message status"`
	At   time.Time
}
