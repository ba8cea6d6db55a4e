package rest

import (
	"chat-presence/domain"
	chaterrors "chat-presence/errors"
	"errors"
	"net/http"

	"github.com/samber/lo"
)

// TimeLayout is the clock format room clients display next to a message.
const TimeLayout = "15:04:05"

type joinRequest struct {
	Name string `json:"name"`
}

type postMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
}

type participantResponse struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

type messageResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toParticipantResponses(participants []domain.Participant) []participantResponse {
	return lo.Map(participants, func(p domain.Participant, _ int) participantResponse {
		return participantResponse{Name: p.Name, LastStatus: p.LastSeen.UnixMilli()}
	})
}

func toMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return messageResponse{
			From: m.From,
			To:   m.To,
			Text: m.Text,
			Type: string(m.Kind),
			Time: m.At.UTC().Format(TimeLayout),
		}
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, chaterrors.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, chaterrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, chaterrors.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
