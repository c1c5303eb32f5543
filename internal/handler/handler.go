// Package handler содержит HTTP-обработчики API сервиса HazirHay.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/middleware"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/service"
	"github.com/mmeshcher/hazirhay-backend/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.Account, error)
	Login(ctx context.Context, role model.Role, credential, password string) (model.Identity, error)
	GetAccount(ctx context.Context, caller model.Identity) (*model.Account, error)
	VerifyAccount(ctx context.Context, caller model.Identity, accountID string, verified bool) error

	CreateProvider(ctx context.Context, caller model.Identity, in service.ProviderInput) (*model.Provider, error)
	GetProvider(ctx context.Context, id string) (*model.Provider, error)
	GetOwnProvider(ctx context.Context, caller model.Identity) (*model.Provider, error)
	UpdateCatalog(ctx context.Context, caller model.Identity, services []model.ServiceOffering) (*model.Provider, error)
	UpdateProviderLocation(ctx context.Context, caller model.Identity, loc model.Location) error
	SetProviderLive(ctx context.Context, caller model.Identity, live bool) error
	AddReview(ctx context.Context, caller model.Identity, providerID, msg string, rate int) error
	CheckProviderStatus(ctx context.Context, providerID string) (*service.ProviderStatus, error)
	ResetCancelCount(ctx context.Context, caller model.Identity, providerID string) (*service.ProviderStatus, error)

	CreateWorker(ctx context.Context, caller model.Identity, in service.WorkerInput) (*model.Worker, error)
	ListWorkers(ctx context.Context, caller model.Identity) ([]model.Worker, error)
	GetWorker(ctx context.Context, caller model.Identity) (*model.Worker, error)
	UpdateWorkerLocation(ctx context.Context, caller model.Identity, loc model.Location) error

	MatchProviders(ctx context.Context, q service.MatchQuery) ([]model.Provider, error)
	EstimatePrice(ctx context.Context, category, subCategory string) (*service.PriceEstimate, error)

	SubmitIntent(ctx context.Context, caller model.Identity, in service.Intent) ([]model.Order, error)
	RespondToOrder(ctx context.Context, caller model.Identity, orderID string, accept bool) (*model.Order, error)
	AssignWorkers(ctx context.Context, caller model.Identity, assignments map[string]string) (service.BatchResult, error)
	ProgressOrders(ctx context.Context, caller model.Identity, ids []string) (service.BatchResult, error)
	CompleteOrders(ctx context.Context, caller model.Identity, ids []string) (service.BatchResult, error)
	CancelOrders(ctx context.Context, caller model.Identity, ids []string) (*service.CancelResult, error)
	UnassignOrder(ctx context.Context, caller model.Identity, orderID string) (*model.Order, error)
	AdminMarkDelete(ctx context.Context, caller model.Identity, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context, caller model.Identity, statuses []model.OrderStatus) ([]model.Order, error)
	GetOrder(ctx context.Context, caller model.Identity, orderID string) (*model.Order, error)

	Settle(ctx context.Context, caller model.Identity, orderIDs []string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, caller model.Identity, ownerID string) ([]model.Transaction, error)

	ListNotifications(ctx context.Context, caller model.Identity) ([]model.Notification, error)
	MarkNotificationsSeen(ctx context.Context, caller model.Identity, ids []string) (int64, error)
	DeleteNotification(ctx context.Context, caller model.Identity, id string) error
	ClearNotifications(ctx context.Context, caller model.Identity) (int64, error)

	SaveCartItem(ctx context.Context, caller model.Identity, in service.CartItemInput) (*model.Cart, error)
	GetCart(ctx context.Context, caller model.Identity) (*model.Cart, error)
	ClearCart(ctx context.Context, caller model.Identity) error
}

// Streamer держит websocket-соединение пользователя открытым и доставляет в него уведомления.
type Streamer interface {
	Serve(userID string, conn *websocket.Conn)
}

// Handler реализует HTTP-обработчики API сервиса HazirHay.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	streamer       Streamer
	upgrader       websocket.Upgrader
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов. streamer может быть nil,
// тогда websocket-канал уведомлений недоступен.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, streamer Streamer) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		streamer:       streamer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Доступ защищён токеном, источник страницы не проверяется.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

type errorResponse struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Blocked bool        `json:"blocked,omitempty"`
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:               http.StatusNotFound,
	apperr.KindForbidden:              http.StatusForbidden,
	apperr.KindInvalidStateTransition: http.StatusConflict,
	apperr.KindConflict:               http.StatusConflict,
	apperr.KindInvalidArgument:        http.StatusBadRequest,
	apperr.KindInternal:               http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отвечает ошибкой бизнес-логики. Внутренние ошибки пишутся в лог.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	kind := apperr.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	if kind == apperr.KindInternal {
		h.logger.Error(op+" error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
	}

	writeJSON(w, status, errorResponse{
		Kind:    kind,
		Message: apperr.MessageOf(err),
		Blocked: errors.Is(err, service.ErrShopBlocked),
	})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Kind: apperr.KindInvalidArgument, Message: message})
}

// decode читает JSON-тело запроса в dst и проверяет его по тегам validate.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid JSON body")
		return false
	}
	if err := validation.Struct(dst); err != nil {
		badRequest(w, err.Error())
		return false
	}
	return true
}

func caller(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	id, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return id, ok
}

// Health сообщает, что процесс принимает запросы.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
