package handlers

import (
	"net/http"

	"parcel-dispatch/internal/domain"
	"parcel-dispatch/internal/logx"
)

// ChatHandler serves the per-delivery chat over plain HTTP for clients without a socket.
type ChatHandler struct {
	usecase chatUsecase
	logger  logx.Logger
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(logger logx.Logger, uc chatUsecase) *ChatHandler {
	if logger == nil {
		logger = logx.Nop()
	}
	return &ChatHandler{usecase: uc, logger: logger}
}

// History handles GET /deliveries/{id}/chat. Reading marks the counterpart's messages read.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	msgs, err := h.usecase.History(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	writeData(h.logger, w, r, http.StatusOK, msgs)
}

// Send handles POST /deliveries/{id}/chat.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	var req chatSendRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	m, err := h.usecase.Send(r.Context(), actor, id, req.Content)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusCreated, m)
}

// MarkRead handles POST /deliveries/{id}/chat/read.
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := request(h.logger, w, r)
	if !ok {
		return
	}
	n, err := h.usecase.MarkRead(r.Context(), actor, id)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeData(h.logger, w, r, http.StatusOK, map[string]int64{"marked": n})
}
