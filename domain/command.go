package domain

import (
	"strings"
)

// JoinCommand asks for a new participant named Name.
type JoinCommand struct {
	Name string `validate:"required"`
}

// HeartbeatCommand refreshes the liveness of Name.
type HeartbeatCommand struct {
	Name string `validate:"required"`
}

// PostMessageCommand is a message sent by a participant.
// Status messages are produced by the system only and are rejected here.
type PostMessageCommand struct {
	From string `validate:"required"`
	To   string `validate:"required"`
	Text string `validate:"required"`
	Kind Kind   `validate:"required,oneof=message private_message"`
}

// QueryMessagesCommand reads the messages visible to User.
// A nil Limit means no truncation.
type QueryMessagesCommand struct {
	User  string `validate:"required"`
	Limit *int   `validate:"omitnil,gt=0"`
}

func NewJoinCommand(name string) JoinCommand {
	return JoinCommand{Name: strings.TrimSpace(name)}
}

func NewHeartbeatCommand(name string) HeartbeatCommand {
	return HeartbeatCommand{Name: strings.TrimSpace(name)}
}

func NewPostMessageCommand(from, to, text, kind string) PostMessageCommand {
	return PostMessageCommand{
		From: strings.TrimSpace(from),
		To:   strings.TrimSpace(to),
		Text: strings.TrimSpace(text),
		Kind: Kind(strings.TrimSpace(kind)),
	}
}

func NewQueryMessagesCommand(user string, limit *int) QueryMessagesCommand {
	return QueryMessagesCommand{User: strings.TrimSpace(user), Limit: limit}
}
