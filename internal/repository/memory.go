package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// MemoryRepository хранит данные в памяти процесса. Используется, когда база не настроена, и в тестах.
type MemoryRepository struct {
	mu            sync.Mutex
	accounts      map[string]model.Account
	providers     map[string]model.Provider
	workers       map[string]model.Worker
	orders        map[string]model.Order
	transactions  map[string]model.Transaction
	notifications map[string]model.Notification
	carts         map[string]model.Cart
	seq           int64
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:      make(map[string]model.Account),
		providers:     make(map[string]model.Provider),
		workers:       make(map[string]model.Worker),
		orders:        make(map[string]model.Order),
		transactions:  make(map[string]model.Transaction),
		notifications: make(map[string]model.Notification),
		carts:         make(map[string]model.Cart),
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// stamp возвращает строго возрастающее время создания, чтобы порядок записей был детерминирован.
func (r *MemoryRepository) stamp() time.Time {
	r.seq++
	return time.Now().UTC().Add(time.Duration(r.seq))
}

func copyLocation(l model.Location) model.Location {
	l.Coordinates = slices.Clone(l.Coordinates)
	return l
}

func copyProvider(p model.Provider) *model.Provider {
	p.ServicesOffered = slices.Clone(p.ServicesOffered)
	p.Reviews = slices.Clone(p.Reviews)
	p.Location = copyLocation(p.Location)
	if p.BlockedAt != nil {
		at := *p.BlockedAt
		p.BlockedAt = &at
	}
	return &p
}

func copyWorker(w model.Worker) *model.Worker {
	w.IsBusy = w.ActiveOrders > 0
	w.Location = copyLocation(w.Location)
	return &w
}

func copyOrder(o model.Order) *model.Order {
	o.Location = copyLocation(o.Location)
	if o.Assignment.AssignedAt != nil {
		at := *o.Assignment.AssignedAt
		o.Assignment.AssignedAt = &at
	}
	return &o
}

func (r *MemoryRepository) accountTaken(a *model.Account) bool {
	for _, existing := range r.accounts {
		if existing.Role != a.Role {
			continue
		}
		if a.Email != "" && existing.Email == a.Email {
			return true
		}
		if a.Role == model.RoleWorker && existing.Phone == a.Phone {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) insertAccount(a *model.Account) error {
	if _, ok := r.accounts[a.ID]; ok || r.accountTaken(a) {
		return fmt.Errorf("%w: %s", ErrAccountExists, a.Role)
	}
	a.CreatedAt = r.stamp()
	stored := *a
	stored.PasswordHash = slices.Clone(a.PasswordHash)
	r.accounts[a.ID] = stored
	return nil
}

// CreateAccount создаёт учётную запись.
func (r *MemoryRepository) CreateAccount(_ context.Context, a *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertAccount(a)
}

// GetAccount возвращает учётную запись по идентификатору.
func (r *MemoryRepository) GetAccount(_ context.Context, id string) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) findAccount(match func(model.Account) bool) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if match(a) {
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

// GetAccountByEmail возвращает учётную запись роли role по email.
func (r *MemoryRepository) GetAccountByEmail(_ context.Context, role model.Role, email string) (*model.Account, error) {
	return r.findAccount(func(a model.Account) bool {
		return a.Role == role && a.Email != "" && a.Email == email
	})
}

// GetAccountByPhone возвращает учётную запись роли role по телефону.
func (r *MemoryRepository) GetAccountByPhone(_ context.Context, role model.Role, phone string) (*model.Account, error) {
	return r.findAccount(func(a model.Account) bool {
		return a.Role == role && a.Phone != "" && a.Phone == phone
	})
}

// SetAccountVerified меняет признак верификации учётной записи.
func (r *MemoryRepository) SetAccountVerified(_ context.Context, id string, verified bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	a.IsVerified = verified
	r.accounts[id] = a
	return nil
}

func (r *MemoryRepository) withOwnerFlags(p model.Provider) *model.Provider {
	p.IsVerified = r.accounts[p.OwnerID].IsVerified
	return copyProvider(p)
}

// CreateProvider создаёт магазин. У владельца может быть только один магазин.
func (r *MemoryRepository) CreateProvider(_ context.Context, p *model.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[p.OwnerID]; !ok {
		return ErrAccountNotFound
	}
	for _, existing := range r.providers {
		if existing.OwnerID == p.OwnerID {
			return fmt.Errorf("%w: owner %s", ErrProviderExists, p.OwnerID)
		}
	}
	if _, ok := r.providers[p.ID]; ok {
		return fmt.Errorf("%w: id %s", ErrProviderExists, p.ID)
	}
	if p.ServicesOffered == nil {
		p.ServicesOffered = []model.ServiceOffering{}
	}
	if p.Reviews == nil {
		p.Reviews = []model.Review{}
	}
	p.CreatedAt = r.stamp()
	r.providers[p.ID] = *copyProvider(*p)
	return nil
}

// GetProvider возвращает магазин по идентификатору.
func (r *MemoryRepository) GetProvider(_ context.Context, id string) (*model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return r.withOwnerFlags(p), nil
}

// GetProviderByOwner возвращает магазин владельца.
func (r *MemoryRepository) GetProviderByOwner(_ context.Context, ownerID string) (*model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		if p.OwnerID == ownerID {
			return r.withOwnerFlags(p), nil
		}
	}
	return nil, ErrProviderNotFound
}

// ListProviders возвращает магазины в порядке создания. liveOnly оставляет только активные.
func (r *MemoryRepository) ListProviders(_ context.Context, liveOnly bool) ([]model.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Provider
	for _, p := range r.providers {
		if liveOnly && !p.IsLive {
			continue
		}
		res = append(res, *r.withOwnerFlags(p))
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (r *MemoryRepository) updateProvider(id string, fn func(p *model.Provider) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return ErrProviderNotFound
	}
	if err := fn(&p); err != nil {
		return err
	}
	r.providers[id] = p
	return nil
}

// UpdateCatalog заменяет список услуг магазина.
func (r *MemoryRepository) UpdateCatalog(_ context.Context, id string, services []model.ServiceOffering) error {
	return r.updateProvider(id, func(p *model.Provider) error {
		p.ServicesOffered = slices.Clone(services)
		if p.ServicesOffered == nil {
			p.ServicesOffered = []model.ServiceOffering{}
		}
		return nil
	})
}

// UpdateProviderLocation меняет координаты магазина.
func (r *MemoryRepository) UpdateProviderLocation(_ context.Context, id string, loc model.Location) error {
	return r.updateProvider(id, func(p *model.Provider) error {
		p.Location = copyLocation(loc)
		return nil
	})
}

// SetProviderLive включает или выключает приём заказов магазином.
func (r *MemoryRepository) SetProviderLive(_ context.Context, id string, live bool) error {
	return r.updateProvider(id, func(p *model.Provider) error {
		p.IsLive = live
		return nil
	})
}

// AddReview добавляет отзыв к магазину.
func (r *MemoryRepository) AddReview(_ context.Context, id string, review model.Review) error {
	return r.updateProvider(id, func(p *model.Provider) error {
		p.Reviews = append(slices.Clone(p.Reviews), review)
		return nil
	})
}

// IncrementCancelCount атомарно увеличивает счётчик отмен незаблокированного магазина.
func (r *MemoryRepository) IncrementCancelCount(_ context.Context, id string) (int, error) {
	var count int
	err := r.updateProvider(id, func(p *model.Provider) error {
		if p.IsBlocked {
			return ErrProviderBlocked
		}
		p.CancelRequestCount++
		count = p.CancelRequestCount
		return nil
	})
	return count, err
}

// BlockProvider блокирует магазин с момента at.
func (r *MemoryRepository) BlockProvider(_ context.Context, id string, at time.Time) error {
	return r.updateProvider(id, func(p *model.Provider) error {
		p.IsBlocked = true
		p.BlockedAt = &at
		return nil
	})
}

// ResetCancelState безусловно снимает блокировку и обнуляет счётчик отмен.
func (r *MemoryRepository) ResetCancelState(_ context.Context, id string) error {
	return r.updateProvider(id, func(p *model.Provider) error {
		p.CancelRequestCount = 0
		p.IsBlocked = false
		p.BlockedAt = nil
		return nil
	})
}

// ExpireBlock снимает блокировку, начавшуюся не позже cutoff.
func (r *MemoryRepository) ExpireBlock(_ context.Context, id string, cutoff time.Time) (bool, error) {
	var expired bool
	err := r.updateProvider(id, func(p *model.Provider) error {
		if !p.IsBlocked || p.BlockedAt == nil || p.BlockedAt.After(cutoff) {
			return nil
		}
		p.CancelRequestCount = 0
		p.IsBlocked = false
		p.BlockedAt = nil
		expired = true
		return nil
	})
	return expired, err
}

// CreateWorker создаёт учётную запись сотрудника и его карточку.
func (r *MemoryRepository) CreateWorker(_ context.Context, a *model.Account, w *model.Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[w.ProviderID]; !ok {
		return ErrProviderNotFound
	}
	for _, existing := range r.workers {
		if existing.ProviderID == w.ProviderID && existing.Phone == w.Phone {
			return fmt.Errorf("%w: phone %s", ErrAccountExists, w.Phone)
		}
	}
	if err := r.insertAccount(a); err != nil {
		return err
	}
	w.CreatedAt = a.CreatedAt
	r.workers[w.ID] = *copyWorker(*w)
	return nil
}

// GetWorker возвращает сотрудника по идентификатору.
func (r *MemoryRepository) GetWorker(_ context.Context, id string) (*model.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return nil, ErrWorkerNotFound
	}
	return copyWorker(w), nil
}

// ListWorkersByProvider возвращает сотрудников магазина.
func (r *MemoryRepository) ListWorkersByProvider(_ context.Context, providerID string) ([]model.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Worker
	for _, w := range r.workers {
		if w.ProviderID == providerID {
			res = append(res, *copyWorker(w))
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (r *MemoryRepository) updateWorker(id string, fn func(w *model.Worker)) (*model.Worker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if !ok {
		return nil, ErrWorkerNotFound
	}
	fn(&w)
	r.workers[id] = w
	return copyWorker(w), nil
}

// AddWorkerOrders атомарно добавляет сотруднику n активных заказов.
func (r *MemoryRepository) AddWorkerOrders(_ context.Context, id string, n int) (*model.Worker, error) {
	return r.updateWorker(id, func(w *model.Worker) {
		w.OrderCount += n
		w.ActiveOrders += n
	})
}

// ReleaseWorkerOrders атомарно уменьшает число активных заказов сотрудника на n.
func (r *MemoryRepository) ReleaseWorkerOrders(_ context.Context, id string, n int) (*model.Worker, error) {
	return r.updateWorker(id, func(w *model.Worker) {
		w.ActiveOrders = max(w.ActiveOrders-n, 0)
	})
}

// UpdateWorkerLocation обновляет текущие координаты сотрудника.
func (r *MemoryRepository) UpdateWorkerLocation(_ context.Context, id string, loc model.Location) error {
	_, err := r.updateWorker(id, func(w *model.Worker) {
		w.Location = copyLocation(loc)
	})
	return err
}

// CreateOrders сохраняет все заказы одной заявки клиента.
func (r *MemoryRepository) CreateOrders(_ context.Context, orders []model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range orders {
		if _, ok := r.orders[o.ID]; ok {
			return fmt.Errorf("insert order: duplicate id %s", o.ID)
		}
		if _, ok := r.providers[o.ProviderID]; !ok {
			return fmt.Errorf("insert order: %w", ErrProviderNotFound)
		}
	}
	for i := range orders {
		orders[i].CreatedAt = r.stamp()
		r.orders[orders[i].ID] = *copyOrder(orders[i])
	}
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *MemoryRepository) GetOrder(_ context.Context, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return copyOrder(o), nil
}

// ListOrders возвращает заказы по фильтру, новые первыми.
func (r *MemoryRepository) ListOrders(_ context.Context, f model.OrderFilter) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Order
	for _, o := range r.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.ProviderOwnerID != "" && o.ProviderOwnerID != f.ProviderOwnerID {
			continue
		}
		if f.WorkerID != "" && o.Assignment.WorkerID != f.WorkerID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
			continue
		}
		res = append(res, *copyOrder(o))
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// TransitionOrder атомарно переводит заказ в статус to, если его текущий статус входит в from.
func (r *MemoryRepository) TransitionOrder(_ context.Context, id string, from []model.OrderStatus, to model.OrderStatus, assignment *model.Assignment) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if !slices.Contains(from, o.Status) {
		return nil, fmt.Errorf("%w: order %s is %s", ErrStatusMismatch, id, o.Status)
	}
	o.Status = to
	if assignment != nil {
		o.Assignment = *assignment
	}
	r.orders[id] = *copyOrder(o)
	return copyOrder(o), nil
}

// DeleteOrder переводит заказ из любого неконечного состояния в deleted и возвращает
// состояние, в котором заказ был до удаления. Для конечного заказа возвращается ErrStatusMismatch.
func (r *MemoryRepository) DeleteOrder(_ context.Context, id string) (model.OrderStatus, *model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return "", nil, ErrOrderNotFound
	}
	prior := o.Status
	if prior.IsTerminal() {
		return prior, nil, fmt.Errorf("%w: order %s is %s", ErrStatusMismatch, id, prior)
	}
	o.Status = model.OrderStatusDeleted
	r.orders[id] = *copyOrder(o)
	return prior, copyOrder(o), nil
}

// CreateTransaction сохраняет расчёт и помечает его заказы рассчитанными.
func (r *MemoryRepository) CreateTransaction(_ context.Context, t *model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range t.OrderIDs {
		o, ok := r.orders[id]
		if !ok || o.TransactionID != "" || o.Status != model.OrderStatusCompleted {
			return ErrAlreadySettled
		}
	}
	for _, id := range t.OrderIDs {
		o := r.orders[id]
		o.TransactionID = t.ID
		r.orders[id] = o
	}
	t.Date = r.stamp()
	stored := *t
	stored.OrderIDs = slices.Clone(t.OrderIDs)
	r.transactions[t.ID] = stored
	return nil
}

// ListTransactionsByProviderOwner возвращает расчёты владельца магазина, новые первыми.
func (r *MemoryRepository) ListTransactionsByProviderOwner(_ context.Context, ownerID string) ([]model.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Transaction
	for _, t := range r.transactions {
		if t.ProviderOwnerID == ownerID {
			t.OrderIDs = slices.Clone(t.OrderIDs)
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Date.After(res[j].Date)
	})
	return res, nil
}

// CreateNotification сохраняет уведомление.
func (r *MemoryRepository) CreateNotification(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.CreatedAt = r.stamp()
	r.notifications[n.ID] = *n
	return nil
}

// ListNotifications возвращает уведомления пользователя, новые первыми.
func (r *MemoryRepository) ListNotifications(_ context.Context, userID string) ([]model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			res = append(res, n)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// MarkNotificationsSeen помечает прочитанными уведомления пользователя из ids.
func (r *MemoryRepository) MarkNotificationsSeen(_ context.Context, userID string, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, id := range ids {
		notif, ok := r.notifications[id]
		if !ok || notif.UserID != userID || notif.IsSeen {
			continue
		}
		notif.IsSeen = true
		r.notifications[id] = notif
		n++
	}
	return n, nil
}

// DeleteNotification удаляет одно уведомление пользователя.
func (r *MemoryRepository) DeleteNotification(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotificationNotFound
	}
	delete(r.notifications, id)
	return nil
}

// ClearNotifications удаляет все уведомления пользователя.
func (r *MemoryRepository) ClearNotifications(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, notif := range r.notifications {
		if notif.UserID == userID {
			delete(r.notifications, id)
			n++
		}
	}
	return n, nil
}

func copyCart(c model.Cart) *model.Cart {
	c.Items = slices.Clone(c.Items)
	if c.Items == nil {
		c.Items = []model.CartItem{}
	}
	return &c
}

// AddCartItem добавляет позицию в корзину клиента, создавая корзину при первом обращении.
func (r *MemoryRepository) AddCartItem(_ context.Context, customerID string, item model.CartItem) (*model.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.carts[customerID]
	c.CustomerID = customerID
	c.Items = append(slices.Clone(c.Items), item)
	c.UpdatedAt = r.stamp()
	r.carts[customerID] = c
	return copyCart(c), nil
}

// GetCart возвращает корзину клиента. Отсутствующая корзина считается пустой.
func (r *MemoryRepository) GetCart(_ context.Context, customerID string) (*model.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[customerID]
	if !ok {
		c.CustomerID = customerID
	}
	return copyCart(c), nil
}

// ClearCart удаляет корзину клиента.
func (r *MemoryRepository) ClearCart(_ context.Context, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, customerID)
	return nil
}
