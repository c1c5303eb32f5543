package handler

import (
	"net/http"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/service"
)

type workerRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"required,phone"`
	Picture string `json:"picture" validate:"omitempty,url"`
}

// CreateWorker добавляет сотрудника в магазин вызывающего владельца.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req workerRequest
	if !decode(w, r, &req) {
		return
	}

	worker, err := h.service.CreateWorker(r.Context(), id, service.WorkerInput{
		Name:    req.Name,
		Phone:   req.Phone,
		Picture: req.Picture,
	})
	if err != nil {
		h.writeError(w, r, "create worker", err)
		return
	}
	writeJSON(w, http.StatusCreated, worker)
}

// ListWorkers возвращает сотрудников магазина вызывающего владельца.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	workers, err := h.service.ListWorkers(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "list workers", err)
		return
	}
	if workers == nil {
		workers = []model.Worker{}
	}
	writeJSON(w, http.StatusOK, workers)
}

// GetWorker возвращает карточку вызывающего сотрудника.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	worker, err := h.service.GetWorker(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get worker", err)
		return
	}
	writeJSON(w, http.StatusOK, worker)
}

// UpdateWorkerLocation обновляет текущие координаты сотрудника.
func (h *Handler) UpdateWorkerLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req locationRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.UpdateWorkerLocation(r.Context(), id, req.toModel()); err != nil {
		h.writeError(w, r, "update worker location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
