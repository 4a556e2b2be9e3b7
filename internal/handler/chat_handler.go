package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/renavest/chat-service/internal/chat"
	"github.com/renavest/chat-service/internal/domain"
	"github.com/renavest/chat-service/internal/middleware"
	"github.com/renavest/chat-service/internal/transport"
)

const sendTimeout = 5 * time.Second

type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

func channelIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "channelID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidChannelID
	}
	return id, nil
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	channelID, err := channelIDParam(r)
	if err != nil {
		transport.DomainError(w, err)
		return
	}

	var req struct {
		Content     string `json:"content"`
		MessageType string `json:"messageType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		transport.WriteError(w, http.StatusBadRequest, "invalid_body", "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), sendTimeout)
	defer cancel()

	msg, err := h.svc.Ingestor.Send(ctx, chat.SendCommand{
		ChannelID: channelID,
		SenderID:  userID,
		Content:   req.Content,
		Type:      domain.MessageType(req.MessageType),
	})
	if err != nil {
		transport.DomainError(w, err)
		return
	}

	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"id":                msg.ID,
		"channelId":         msg.ChannelID,
		"status":            msg.Status,
		"messageType":       msg.Type,
		"sentAtEpochMillis": msg.SentAt.UnixMilli(),
	})
}

func (h *ChatHandler) ListChannels(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	summaries, err := h.svc.ListChannels(r.Context(), userID)
	if err != nil {
		transport.DomainError(w, err)
		return
	}

	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"channels": summaries,
	})
}

func (h *ChatHandler) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	channelID, err := channelIDParam(r)
	if err != nil {
		transport.DomainError(w, err)
		return
	}

	transcript, err := h.svc.Exporter.Export(r.Context(), userID, channelID)
	if err != nil {
		transport.DomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="transcript-channel-%d.txt"`, channelID))
	w.WriteHeader(http.StatusOK)
	_ = transcript.Render(w)
}
