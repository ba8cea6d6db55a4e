package rest

import (
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	log  *slog.Logger
	chat services.IChatService
}

func NewHandler(log *slog.Logger, chat services.IChatService) *Handler {
	return &Handler{log: log, chat: chat}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/participants", h.handleJoin)
	r.Get("/participants", h.handleListParticipants)
	r.Post("/messages", h.handlePostMessage)
	r.Get("/messages", h.handleQueryMessages)
	r.Post("/status", h.handleHeartbeat)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var payload joinRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, fmt.Errorf("%w: invalid request body", errors.ErrValidation))
		return
	}
	if _, err := h.chat.Join(r.Context(), domain.NewJoinCommand(payload.Name)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.chat.ListParticipants(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toParticipantResponses(participants))
}

func (h *Handler) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var payload postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.respondError(w, fmt.Errorf("%w: invalid request body", errors.ErrValidation))
		return
	}
	cmd := domain.NewPostMessageCommand(r.Header.Get(UserHeader), payload.To, payload.Text, payload.Type)
	if _, err := h.chat.PostMessage(r.Context(), cmd); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleQueryMessages(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(w, fmt.Errorf("%w: limit %q is not an integer", errors.ErrValidation, raw))
			return
		}
		limit = &n
	}
	messages, err := h.chat.QueryMessages(r.Context(), domain.NewQueryMessagesCommand(r.Header.Get(UserHeader), limit))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toMessageResponses(messages))
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.Heartbeat(r.Context(), domain.NewHeartbeatCommand(r.Header.Get(UserHeader))); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
	}
	respondJSON(w, status, errorResponse{Error: err.Error()})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
