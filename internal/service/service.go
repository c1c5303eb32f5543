// Package service реализует бизнес-логику маркетплейса услуг: жизненный цикл заказов,
// подбор исполнителей, ограничение отмен, расчёты и оценку цены.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/repository"
)

// AccountRepository описывает хранилище учётных записей.
type AccountRepository interface {
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByEmail(ctx context.Context, role model.Role, email string) (*model.Account, error)
	GetAccountByPhone(ctx context.Context, role model.Role, phone string) (*model.Account, error)
	SetAccountVerified(ctx context.Context, id string, verified bool) error
}

// CatalogRepository описывает хранилище магазинов и сотрудников.
type CatalogRepository interface {
	CreateProvider(ctx context.Context, p *model.Provider) error
	GetProvider(ctx context.Context, id string) (*model.Provider, error)
	GetProviderByOwner(ctx context.Context, ownerID string) (*model.Provider, error)
	ListProviders(ctx context.Context, liveOnly bool) ([]model.Provider, error)
	UpdateCatalog(ctx context.Context, id string, services []model.ServiceOffering) error
	UpdateProviderLocation(ctx context.Context, id string, loc model.Location) error
	SetProviderLive(ctx context.Context, id string, live bool) error
	AddReview(ctx context.Context, id string, review model.Review) error

	IncrementCancelCount(ctx context.Context, id string) (int, error)
	BlockProvider(ctx context.Context, id string, at time.Time) error
	ResetCancelState(ctx context.Context, id string) error
	ExpireBlock(ctx context.Context, id string, cutoff time.Time) (bool, error)

	CreateWorker(ctx context.Context, a *model.Account, w *model.Worker) error
	GetWorker(ctx context.Context, id string) (*model.Worker, error)
	ListWorkersByProvider(ctx context.Context, providerID string) ([]model.Worker, error)
	AddWorkerOrders(ctx context.Context, id string, n int) (*model.Worker, error)
	ReleaseWorkerOrders(ctx context.Context, id string, n int) (*model.Worker, error)
	UpdateWorkerLocation(ctx context.Context, id string, loc model.Location) error
}

// OrderRepository описывает хранилище заказов и расчётов.
type OrderRepository interface {
	CreateOrders(ctx context.Context, orders []model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	TransitionOrder(ctx context.Context, id string, from []model.OrderStatus, to model.OrderStatus, assignment *model.Assignment) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) (model.OrderStatus, *model.Order, error)

	CreateTransaction(ctx context.Context, t *model.Transaction) error
	ListTransactionsByProviderOwner(ctx context.Context, ownerID string) ([]model.Transaction, error)
}

// NotificationRepository описывает хранилище уведомлений.
type NotificationRepository interface {
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationsSeen(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteNotification(ctx context.Context, userID, id string) error
	ClearNotifications(ctx context.Context, userID string) (int64, error)
}

// CartRepository описывает хранилище корзин клиентов.
type CartRepository interface {
	AddCartItem(ctx context.Context, customerID string, item model.CartItem) (*model.Cart, error)
	GetCart(ctx context.Context, customerID string) (*model.Cart, error)
	ClearCart(ctx context.Context, customerID string) error
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	AccountRepository
	CatalogRepository
	OrderRepository
	NotificationRepository
	CartRepository
	Close() error
}

// Notifier доставляет уведомления пользователям. Ошибки доставки обрабатываются внутри.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// PriceCache хранит посчитанную среднюю цену подкатегории.
type PriceCache interface {
	GetMean(ctx context.Context, category, subCategory string) (decimal.Decimal, bool, error)
	SetMean(ctx context.Context, category, subCategory string, mean decimal.Decimal) error
	DeleteMean(ctx context.Context, category, subCategory string) error
}

// Settings задаёт параметры бизнес-логики. Нулевые значения заменяются значениями по умолчанию.
type Settings struct {
	RatePerKm      decimal.Decimal
	BlockDuration  time.Duration
	NotifyTimeout  time.Duration
	SnowflakeNode  int64
	PasswordHasher PasswordHasher
}

const (
	defaultBlockDuration = 7 * 24 * time.Hour
	defaultNotifyTimeout = 5 * time.Second
	// cancelWarningThreshold: значение счётчика, при котором отмена проходит с предупреждением.
	cancelWarningThreshold = 4
	// cancelBlockThreshold: значение счётчика, при котором магазин блокируется.
	cancelBlockThreshold = 5
)

// Service содержит бизнес-логику маркетплейса.
type Service struct {
	repo          Repository
	notifier      Notifier
	cache         PriceCache
	logger        *zap.Logger
	roles         map[model.Role]roleResolver
	hasher        PasswordHasher
	node          *snowflake.Node
	ratePerKm     decimal.Decimal
	blockDuration time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
	rand          func() float64
}

// NewService создаёт сервис с указанным репозиторием и каналом уведомлений.
func NewService(repo Repository, notifier Notifier, settings Settings, logger *zap.Logger) (*Service, error) {
	node, err := snowflake.NewNode(settings.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("create snowflake node: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:          repo,
		notifier:      notifier,
		logger:        logger,
		hasher:        settings.PasswordHasher,
		node:          node,
		ratePerKm:     settings.RatePerKm,
		blockDuration: settings.BlockDuration,
		notifyTimeout: settings.NotifyTimeout,
		now:           time.Now,
		rand:          rand.Float64,
	}
	if s.hasher == nil {
		s.hasher = BcryptHasher{}
	}
	if s.blockDuration <= 0 {
		s.blockDuration = defaultBlockDuration
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = defaultNotifyTimeout
	}
	s.roles = newRoleTable(repo)

	return s, nil
}

// SetPriceCache подключает кэш средних цен.
func (s *Service) SetPriceCache(c PriceCache) {
	s.cache = c
}

// SetClock подменяет источник текущего времени.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetRandom подменяет источник случайных чисел в диапазоне [0, 1).
func (s *Service) SetRandom(r func() float64) {
	s.rand = r
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// notify отправляет уведомление с ограничением по времени. Отмена запроса не прерывает доставку.
func (s *Service) notify(ctx context.Context, n model.Notification) {
	if s.notifier == nil || n.UserID == "" {
		return
	}
	if n.CheckoutID == "" {
		n.CheckoutID = "N/A"
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	s.notifier.Notify(nctx, n)
}

// mapRepoErr переводит ошибки хранилища в типы бизнес-ошибок.
func mapRepoErr(err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProviderNotFound),
		errors.Is(err, repository.ErrWorkerNotFound),
		errors.Is(err, repository.ErrAccountNotFound),
		errors.Is(err, repository.ErrNotificationNotFound):
		return apperr.Wrap(apperr.KindNotFound, err, err.Error())
	case errors.Is(err, repository.ErrAccountExists),
		errors.Is(err, repository.ErrProviderExists),
		errors.Is(err, repository.ErrAlreadySettled):
		return apperr.Wrap(apperr.KindConflict, err, err.Error())
	case errors.Is(err, repository.ErrStatusMismatch):
		return apperr.Wrap(apperr.KindInvalidStateTransition, err, err.Error())
	case errors.Is(err, repository.ErrProviderBlocked):
		return apperr.Wrap(apperr.KindForbidden, err, "shop temporarily blocked")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return apperr.Wrap(apperr.KindInternal, err, "")
}

func requireRole(caller model.Identity, roles ...model.Role) error {
	for _, r := range roles {
		if caller.Role == r {
			return nil
		}
	}
	return apperr.New(apperr.KindForbidden, "role %s is not allowed", caller.Role)
}
