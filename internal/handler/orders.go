package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/service"
)

type intentRequest struct {
	OrderID     string          `json:"orderId" validate:"max=64"`
	CheckoutID  string          `json:"checkoutId" validate:"max=64"`
	Category    string          `json:"category" validate:"required_unless=FromCart true"`
	SubCategory string          `json:"subCategory" validate:"required_unless=FromCart true"`
	Location    locationRequest `json:"location"`
	FromCart    bool            `json:"fromCart"`
}

type respondRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

type assignRequest struct {
	// Assignments сопоставляет идентификатор заказа идентификатору сотрудника.
	Assignments map[string]string `json:"assignments" validate:"required,min=1,dive,keys,required,endkeys,required"`
}

type orderIDsRequest struct {
	OrderIDs []string `json:"orderIds" validate:"required,min=1,dive,required"`
}

var knownStatuses = map[model.OrderStatus]struct{}{
	model.OrderStatusPending:    {},
	model.OrderStatusAccepted:   {},
	model.OrderStatusRejected:   {},
	model.OrderStatusAssigned:   {},
	model.OrderStatusInProgress: {},
	model.OrderStatusCompleted:  {},
	model.OrderStatusDeleted:    {},
}

// parseStatuses разбирает параметр status вида "pending,accepted".
func parseStatuses(raw string) ([]model.OrderStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var res []model.OrderStatus
	for _, part := range strings.Split(raw, ",") {
		st := model.OrderStatus(strings.TrimSpace(part))
		if _, ok := knownStatuses[st]; !ok {
			return nil, fmt.Errorf("unknown order status %q", part)
		}
		res = append(res, st)
	}
	return res, nil
}

// SubmitIntent создаёт заказы клиента во всех подходящих магазинах.
func (h *Handler) SubmitIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req intentRequest
	if !decode(w, r, &req) {
		return
	}

	orders, err := h.service.SubmitIntent(r.Context(), id, service.Intent{
		OrderID:     req.OrderID,
		CheckoutID:  req.CheckoutID,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		Location:    req.Location.toModel(),
		FromCart:    req.FromCart,
	})
	if err != nil {
		h.writeError(w, r, "submit intent", err)
		return
	}
	writeJSON(w, http.StatusCreated, orders)
}

// ListOrders возвращает заказы вызывающего с необязательным фильтром по статусам.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	orders, err := h.service.ListOrders(r.Context(), id, statuses)
	if err != nil {
		h.writeError(w, r, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder возвращает один заказ.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// RespondToOrder принимает или отклоняет ожидающий заказ.
func (h *Handler) RespondToOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req respondRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.service.RespondToOrder(r.Context(), id, chi.URLParam(r, "id"), *req.Accept)
	if err != nil {
		h.writeError(w, r, "respond to order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// AssignWorkers назначает сотрудников на принятые заказы.
func (h *Handler) AssignWorkers(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req assignRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.service.AssignWorkers(r.Context(), id, req.Assignments)
	if err != nil {
		h.writeError(w, r, "assign workers", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type batchFunc func(ctx context.Context, caller model.Identity, ids []string) (any, error)

// batch оборачивает пакетную операцию над списком заказов из тела запроса.
func (h *Handler) batch(op string, fn batchFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := caller(w, r)
		if !ok {
			return
		}

		var req orderIDsRequest
		if !decode(w, r, &req) {
			return
		}

		res, err := fn(r.Context(), id, req.OrderIDs)
		if err != nil {
			h.writeError(w, r, op, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// ProgressOrders переводит назначенные заказы вызывающего сотрудника в работу.
func (h *Handler) ProgressOrders(w http.ResponseWriter, r *http.Request) {
	h.batch("progress orders", func(ctx context.Context, c model.Identity, ids []string) (any, error) {
		return h.service.ProgressOrders(ctx, c, ids)
	})(w, r)
}

// CompleteOrders завершает заказы вызывающего сотрудника.
func (h *Handler) CompleteOrders(w http.ResponseWriter, r *http.Request) {
	h.batch("complete orders", func(ctx context.Context, c model.Identity, ids []string) (any, error) {
		return h.service.CompleteOrders(ctx, c, ids)
	})(w, r)
}

// CancelOrders отменяет заказы магазина с учётом ограничения отмен.
func (h *Handler) CancelOrders(w http.ResponseWriter, r *http.Request) {
	h.batch("cancel orders", func(ctx context.Context, c model.Identity, ids []string) (any, error) {
		return h.service.CancelOrders(ctx, c, ids)
	})(w, r)
}

// Settle рассчитывает пачку выполненных заказов.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req orderIDsRequest
	if !decode(w, r, &req) {
		return
	}

	tx, err := h.service.Settle(r.Context(), id, req.OrderIDs)
	if err != nil {
		h.writeError(w, r, "settle", err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ListTransactions возвращает расчёты владельца магазина. Администратор указывает ownerId.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListTransactions(r.Context(), id, r.URL.Query().Get("ownerId"))
	if err != nil {
		h.writeError(w, r, "list transactions", err)
		return
	}
	if list == nil {
		list = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, list)
}

// UnassignOrder возвращает назначенный заказ в принятые.
func (h *Handler) UnassignOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	o, err := h.service.UnassignOrder(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "unassign order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// AdminDeleteOrder помечает заказ удалённым.
func (h *Handler) AdminDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	o, err := h.service.AdminMarkDelete(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "delete order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
