package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type seenRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

// ListNotifications возвращает уведомления вызывающего, новые первыми.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListNotifications(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "list notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkNotificationsSeen помечает уведомления прочитанными.
func (h *Handler) MarkNotificationsSeen(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req seenRequest
	if !decode(w, r, &req) {
		return
	}

	n, err := h.service.MarkNotificationsSeen(r.Context(), id, req.IDs)
	if err != nil {
		h.writeError(w, r, "mark notifications seen", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// DeleteNotification удаляет одно уведомление.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteNotification(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "delete notification", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearNotifications удаляет все уведомления вызывающего.
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	n, err := h.service.ClearNotifications(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "clear notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// NotificationStream переводит соединение в websocket и доставляет в него новые уведомления.
func (h *Handler) NotificationStream(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	if h.streamer == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту.
		h.logger.Warn("websocket upgrade failed", zap.String("account_id", id.AccountID), zap.Error(err))
		return
	}
	h.streamer.Serve(id.AccountID, conn)
}
