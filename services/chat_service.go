package services

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/moderation"
	"chat-presence/projection"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type IChatService interface {
	Join(ctx context.Context, cmd domain.JoinCommand) (domain.Participant, error)
	Heartbeat(ctx context.Context, cmd domain.HeartbeatCommand) error
	ListParticipants(ctx context.Context) ([]domain.Participant, error)
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error)
	QueryMessages(ctx context.Context, cmd domain.QueryMessagesCommand) ([]domain.Message, error)
}

// ChatService is the entry point of every inbound operation.
// Commands are validated here, before any repository is touched.
type ChatService struct {
	log          *slog.Logger
	participants contract.IParticipantRepository
	messages     contract.IMessageRepository
	query        projection.QueryEngine
	moderator    *moderation.Moderator
	now          func() time.Time
}

// NewChatService wires the repositories together. moderator may be nil to
// disable censoring; now defaults to time.Now.
func NewChatService(
	log *slog.Logger,
	participants contract.IParticipantRepository,
	messages contract.IMessageRepository,
	moderator *moderation.Moderator,
	now func() time.Time,
) *ChatService {
	if now == nil {
		now = time.Now
	}
	return &ChatService{
		log:          log,
		participants: participants,
		messages:     messages,
		query:        projection.NewQueryEngine(messages),
		moderator:    moderator,
		now:          now,
	}
}

// Join registers the participant then announces it to the room.
// If the announcement cannot be stored the participant stays registered and
// the storage error is returned. Joining again then fails with a conflict:
// callers keep the session alive with Heartbeat, and the room never sees a
// join notice for that participant.
func (s *ChatService) Join(ctx context.Context, cmd domain.JoinCommand) (domain.Participant, error) {
	if err := domain.Validate(cmd); err != nil {
		return domain.Participant{}, err
	}
	p, err := s.participants.Join(ctx, cmd.Name, s.now())
	if err != nil {
		return domain.Participant{}, err
	}
	if _, err := s.messages.Append(ctx, domain.JoinedNotice(p.Name)); err != nil {
		s.log.Error("Failed to announce participant", "name", p.Name, "error", err)
		return p, fmt.Errorf("announce %q: %w", p.Name, err)
	}
	s.log.Info("Participant joined", "name", p.Name)
	return p, nil
}

func (s *ChatService) Heartbeat(ctx context.Context, cmd domain.HeartbeatCommand) error {
	if err := domain.Validate(cmd); err != nil {
		return err
	}
	return s.participants.Heartbeat(ctx, cmd.Name, s.now())
}

func (s *ChatService) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	return s.participants.List(ctx)
}

// PostMessage stores a message from a registered participant.
func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	if err := domain.Validate(cmd); err != nil {
		return domain.Message{}, err
	}
	if _, err := s.participants.Get(ctx, cmd.From); err != nil {
		return domain.Message{}, err
	}

	text := cmd.Text
	if s.moderator != nil {
		var words []string
		if text, words = s.moderator.Censor(text); len(words) > 0 {
			s.log.Debug("Message censored", "from", cmd.From, "words", len(words))
		}
	}
	return s.messages.Append(ctx, domain.Message{
		From: cmd.From,
		To:   cmd.To,
		Text: text,
		Kind: cmd.Kind,
	})
}

func (s *ChatService) QueryMessages(ctx context.Context, cmd domain.QueryMessagesCommand) ([]domain.Message, error) {
	if err := domain.Validate(cmd); err != nil {
		return nil, err
	}
	return s.query.Query(ctx, cmd.User, cmd.Limit)
}
