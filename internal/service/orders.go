package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/repository"
)

// Intent описывает заявку клиента на услугу.
type Intent struct {
	// OrderID группирует заказы одной заявки. Если пуст, генерируется.
	OrderID string
	// CheckoutID служит идентификатором корреляции уведомлений. Если пуст, генерируется.
	CheckoutID  string
	Category    string
	SubCategory string
	Location    model.Location
	// FromCart создаёт заказы по корзине клиента вместо подбора по категории.
	FromCart bool
}

// BatchFailure описывает заказ пакетной операции, который не удалось обработать.
type BatchFailure struct {
	ID      string      `json:"id"`
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// BatchResult содержит результаты пакетной операции по каждому заказу.
type BatchResult struct {
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

func newBatchResult() BatchResult {
	return BatchResult{Succeeded: []string{}, Failed: []BatchFailure{}}
}

func (r *BatchResult) fail(id string, err error) {
	r.Failed = append(r.Failed, BatchFailure{ID: id, Kind: apperr.KindOf(err), Message: apperr.MessageOf(err)})
}

// uniqueIDs убирает повторы, сохраняя порядок. Пустой список и пустые идентификаторы недопустимы.
func uniqueIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "order ids are required")
	}
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, apperr.New(apperr.KindInvalidArgument, "empty order id")
		}
		if !slices.Contains(res, id) {
			res = append(res, id)
		}
	}
	return res, nil
}

// transitionError описывает отказ в переходе заказа из текущего состояния.
// Действие над заказом в конечном состоянии считается конфликтом.
func transitionError(o *model.Order, action string) error {
	if o.Status.IsTerminal() {
		return apperr.New(apperr.KindConflict, "cannot %s order %s: order is already %s", action, o.ID, o.Status)
	}
	return apperr.New(apperr.KindInvalidStateTransition, "cannot %s order %s in status %s", action, o.ID, o.Status)
}

func (s *Service) loadOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return o, nil
}

func (s *Service) requireOwner(caller model.Identity, o *model.Order) error {
	if caller.Role != model.RoleShopkeeper || caller.AccountID != o.ProviderOwnerID {
		return apperr.New(apperr.KindForbidden, "order %s belongs to another provider", o.ID)
	}
	return nil
}

func (s *Service) requireAssignedWorker(caller model.Identity, o *model.Order) error {
	if caller.Role != model.RoleWorker || o.AssignedWorkerID() != caller.AccountID {
		return apperr.New(apperr.KindForbidden, "order %s is not assigned to caller", o.ID)
	}
	return nil
}

// transition выполняет атомарный переход заказа. Проигранная гонка означает недопустимый переход.
func (s *Service) transition(ctx context.Context, id string, from []model.OrderStatus, to model.OrderStatus, a *model.Assignment) (*model.Order, error) {
	o, err := s.repo.TransitionOrder(ctx, id, from, to, a)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return o, nil
}

func (s *Service) providerName(ctx context.Context, id string) string {
	p, err := s.repo.GetProvider(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load provider for notification", zap.String("provider_id", id), zap.Error(err))
		return "the provider"
	}
	return p.Name
}

// orderTarget описывает магазин и услугу, для которых создаётся заказ.
type orderTarget struct {
	provider    model.Provider
	category    string
	subCategory string
	price       decimal.Decimal
}

func (s *Service) matchTargets(ctx context.Context, in Intent) ([]orderTarget, error) {
	providers, err := s.MatchProviders(ctx, MatchQuery{Category: in.Category, SubCategory: in.SubCategory, Location: in.Location})
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, apperr.New(apperr.KindNotFound, "no providers offer %s/%s", in.Category, in.SubCategory)
	}

	targets := make([]orderTarget, 0, len(providers))
	for i := range providers {
		offering, _ := providers[i].Offering(in.Category, in.SubCategory)
		targets = append(targets, orderTarget{
			provider:    providers[i],
			category:    in.Category,
			subCategory: in.SubCategory,
			price:       offering.SubCategory.Price,
		})
	}
	return targets, nil
}

// SubmitIntent подбирает магазины под заявку клиента и создаёт по одному ожидающему заказу на магазин.
// С FromCart заказы создаются по позициям корзины, после чего корзина очищается.
func (s *Service) SubmitIntent(ctx context.Context, caller model.Identity, in Intent) ([]model.Order, error) {
	if err := requireRole(caller, model.RoleCustomer); err != nil {
		return nil, err
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, err
	}

	var (
		targets []orderTarget
		err     error
	)
	if in.FromCart {
		targets, err = s.cartTargets(ctx, caller.AccountID)
	} else {
		targets, err = s.matchTargets(ctx, in)
	}
	if err != nil {
		return nil, err
	}

	orderID := in.OrderID
	if orderID == "" {
		orderID = uuid.NewString()
	}
	checkoutID := in.CheckoutID
	if checkoutID == "" {
		checkoutID = s.node.Generate().String()
	}

	orders := make([]model.Order, 0, len(targets))
	for i := range targets {
		t := &targets[i]
		distance := decimal.NewFromFloat(distanceKm(in.Location, t.provider.Location)).Round(2)

		orders = append(orders, model.Order{
			ID:              uuid.NewString(),
			OrderID:         orderID,
			CheckoutID:      checkoutID,
			CustomerID:      caller.AccountID,
			ProviderID:      t.provider.ID,
			ProviderOwnerID: t.provider.OwnerID,
			Category:        t.category,
			SubCategory:     t.subCategory,
			Location:        in.Location,
			Cost:            t.price,
			ServiceCharges: model.ServiceCharges{
				RatePerDistanceUnit: s.ratePerKm,
				Distance:            distance,
			},
			Assignment: model.Assignment{Status: model.AssignmentUnassigned},
			Status:     model.OrderStatusPending,
		})
	}

	if err := s.repo.CreateOrders(ctx, orders); err != nil {
		return nil, mapRepoErr(err)
	}
	if in.FromCart {
		s.clearCartAfterCheckout(ctx, caller.AccountID)
	}

	var requested []string
	for i := range orders {
		s.notify(ctx, model.Notification{
			Type:       notificationTypeRequest,
			Message:    shopkeeperNewRequestMessage(orders[i].SubCategory),
			UserID:     orders[i].ProviderOwnerID,
			CheckoutID: checkoutID,
		})
		if !slices.Contains(requested, orders[i].SubCategory) {
			requested = append(requested, orders[i].SubCategory)
		}
	}
	for _, sub := range requested {
		s.notify(ctx, model.Notification{
			Type:       notificationTypeRequest,
			Message:    customerRequestSentMessage(sub),
			UserID:     caller.AccountID,
			CheckoutID: checkoutID,
		})
	}

	return orders, nil
}

// RespondToOrder принимает или отклоняет ожидающий заказ от имени владельца магазина.
func (s *Service) RespondToOrder(ctx context.Context, caller model.Identity, orderID string, accept bool) (*model.Order, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(caller, o); err != nil {
		return nil, err
	}

	action, to := "reject", model.OrderStatusRejected
	if accept {
		action, to = "accept", model.OrderStatusAccepted
	}

	if o.Status != model.OrderStatusPending {
		if o.Status == model.OrderStatusAccepted || o.Status.IsTerminal() {
			return nil, apperr.New(apperr.KindConflict, "cannot %s order %s: order is already %s", action, o.ID, o.Status)
		}
		return nil, transitionError(o, action)
	}

	updated, err := s.transition(ctx, o.ID, []model.OrderStatus{model.OrderStatusPending}, to, nil)
	if err != nil {
		return nil, err
	}

	shop := s.providerName(ctx, o.ProviderID)
	msg := customerRequestRejectedMessage(shop)
	if accept {
		msg = customerRequestAcceptedMessage(shop)
	}
	s.notify(ctx, model.Notification{Type: notificationTypeRequest, Message: msg, UserID: o.CustomerID, CheckoutID: o.CheckoutID})

	return updated, nil
}

// AssignWorkers назначает сотрудников на принятые заказы. Каждый заказ обрабатывается независимо.
func (s *Service) AssignWorkers(ctx context.Context, caller model.Identity, assignments map[string]string) (BatchResult, error) {
	if err := requireRole(caller, model.RoleShopkeeper); err != nil {
		return BatchResult{}, err
	}
	if len(assignments) == 0 {
		return BatchResult{}, apperr.New(apperr.KindInvalidArgument, "assignments are required")
	}

	ids := make([]string, 0, len(assignments))
	for id := range assignments {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	res := newBatchResult()
	for _, id := range ids {
		if err := s.assignOne(ctx, caller, id, assignments[id]); err != nil {
			res.fail(id, err)
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res, nil
}

func (s *Service) assignOne(ctx context.Context, caller model.Identity, orderID, workerID string) error {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.requireOwner(caller, o); err != nil {
		return err
	}

	w, err := s.repo.GetWorker(ctx, workerID)
	if err != nil {
		return mapRepoErr(err)
	}
	if w.ProviderID != o.ProviderID {
		return apperr.New(apperr.KindInvalidArgument, "worker %s does not belong to provider of order %s", w.ID, o.ID)
	}

	if o.Status != model.OrderStatusAccepted {
		return transitionError(o, "assign")
	}

	now := s.now().UTC()
	_, err = s.transition(ctx, o.ID, []model.OrderStatus{model.OrderStatusAccepted}, model.OrderStatusAssigned, &model.Assignment{
		WorkerID:   w.ID,
		AssignedAt: &now,
		Status:     model.AssignmentAssigned,
	})
	if err != nil {
		return err
	}

	s.notify(ctx, model.Notification{Type: notificationTypeOrder, Message: workerOrderAssignedMessage(o.OrderID), UserID: w.ID, CheckoutID: o.CheckoutID})
	s.notify(ctx, model.Notification{Type: notificationTypeOrder, Message: customerOrderAssignedMessage(w.Name), UserID: o.CustomerID, CheckoutID: o.CheckoutID})
	return nil
}

// ProgressOrders переводит назначенные вызывающему сотруднику заказы в работу.
// Счётчики сотрудника увеличиваются на число успешно переведённых заказов.
func (s *Service) ProgressOrders(ctx context.Context, caller model.Identity, ids []string) (BatchResult, error) {
	if err := requireRole(caller, model.RoleWorker); err != nil {
		return BatchResult{}, err
	}
	ids, err := uniqueIDs(ids)
	if err != nil {
		return BatchResult{}, err
	}

	res := newBatchResult()
	for _, id := range ids {
		o, err := s.workerTransition(ctx, caller, id, model.OrderStatusAssigned, model.OrderStatusInProgress, "progress")
		if err != nil {
			res.fail(id, err)
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
		s.notify(ctx, model.Notification{Type: notificationTypeOrder, Message: customerOrderStartedMessage(o.OrderID), UserID: o.CustomerID, CheckoutID: o.CheckoutID})
	}

	if n := len(res.Succeeded); n > 0 {
		if _, err := s.repo.AddWorkerOrders(ctx, caller.AccountID, n); err != nil {
			s.logger.Error("failed to update worker counters",
				zap.String("worker_id", caller.AccountID), zap.Int("orders", n), zap.Error(err))
		}
	}
	return res, nil
}

// CompleteOrders завершает заказы вызывающего сотрудника.
// Сотрудник перестаёт быть занятым, только когда у него не осталось заказов в работе.
func (s *Service) CompleteOrders(ctx context.Context, caller model.Identity, ids []string) (BatchResult, error) {
	if err := requireRole(caller, model.RoleWorker); err != nil {
		return BatchResult{}, err
	}
	ids, err := uniqueIDs(ids)
	if err != nil {
		return BatchResult{}, err
	}

	res := newBatchResult()
	for _, id := range ids {
		o, err := s.workerTransition(ctx, caller, id, model.OrderStatusInProgress, model.OrderStatusCompleted, "complete")
		if err != nil {
			res.fail(id, err)
			continue
		}
		res.Succeeded = append(res.Succeeded, id)

		shop := s.providerName(ctx, o.ProviderID)
		s.notify(ctx, model.Notification{Type: notificationTypeOrder, Message: customerOrderCompletedMessage(shop), UserID: o.CustomerID, CheckoutID: o.CheckoutID})
		s.notify(ctx, model.Notification{Type: notificationTypeOrder, Message: shopkeeperOrderCompletedMessage(o.OrderID), UserID: o.ProviderOwnerID, CheckoutID: o.CheckoutID})
		s.notify(ctx, model.Notification{Type: notificationTypeOrder, Message: workerOrderCompletedMessage(o.OrderID), UserID: caller.AccountID, CheckoutID: o.CheckoutID})
	}

	if n := len(res.Succeeded); n > 0 {
		if _, err := s.repo.ReleaseWorkerOrders(ctx, caller.AccountID, n); err != nil {
			s.logger.Error("failed to update worker counters",
				zap.String("worker_id", caller.AccountID), zap.Int("orders", -n), zap.Error(err))
		}
	}
	return res, nil
}

func (s *Service) workerTransition(ctx context.Context, caller model.Identity, id string, from, to model.OrderStatus, action string) (*model.Order, error) {
	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedWorker(caller, o); err != nil {
		return nil, err
	}
	if o.Status != from {
		return nil, transitionError(o, action)
	}
	return s.transition(ctx, id, []model.OrderStatus{from}, to, nil)
}

// UnassignOrder снимает сотрудника с назначенного заказа и возвращает заказ в принятые.
// Вызвать может владелец магазина или сам назначенный сотрудник.
func (s *Service) UnassignOrder(ctx context.Context, caller model.Identity, orderID string) (*model.Order, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.requireOwner(caller, o) != nil && s.requireAssignedWorker(caller, o) != nil {
		return nil, apperr.New(apperr.KindForbidden, "only the provider owner or the assigned worker can unassign order %s", o.ID)
	}
	if o.Status != model.OrderStatusAssigned {
		return nil, transitionError(o, "unassign")
	}

	workerID := o.AssignedWorkerID()
	updated, err := s.transition(ctx, o.ID, []model.OrderStatus{model.OrderStatusAssigned}, model.OrderStatusAccepted,
		&model.Assignment{Status: model.AssignmentUnassigned})
	if err != nil {
		return nil, err
	}

	if caller.Role == model.RoleWorker {
		s.notify(ctx, model.Notification{Type: notificationTypeOrder, Message: shopkeeperUnassignedMessage(o.OrderID), UserID: o.ProviderOwnerID, CheckoutID: o.CheckoutID})
	} else {
		s.notify(ctx, model.Notification{Type: notificationTypeOrder, Message: workerOrderRemovedMessage(o.OrderID), UserID: workerID, CheckoutID: o.CheckoutID})
	}

	return updated, nil
}

// AdminMarkDelete удаляет заказ в любом неконечном состоянии в обход ограничения отмен.
// Счётчики сотрудника освобождаются по состоянию, в котором заказ был в момент удаления.
func (s *Service) AdminMarkDelete(ctx context.Context, caller model.Identity, orderID string) (*model.Order, error) {
	if err := requireRole(caller, model.RoleAdmin); err != nil {
		return nil, err
	}

	prior, o, err := s.repo.DeleteOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrStatusMismatch) {
			return nil, apperr.New(apperr.KindConflict, "cannot delete order %s: order is already %s", orderID, prior)
		}
		return nil, mapRepoErr(err)
	}

	if prior == model.OrderStatusInProgress && o.AssignedWorkerID() != "" {
		if _, err := s.repo.ReleaseWorkerOrders(ctx, o.AssignedWorkerID(), 1); err != nil {
			s.logger.Error("failed to update worker counters",
				zap.String("worker_id", o.AssignedWorkerID()), zap.Int("orders", -1), zap.Error(err))
		}
	}

	s.notify(ctx, model.Notification{
		Type:       notificationTypeOrder,
		Message:    customerOrderCancelledMessage(s.providerName(ctx, o.ProviderID)),
		UserID:     o.CustomerID,
		CheckoutID: o.CheckoutID,
	})

	return o, nil
}

// ListOrders возвращает заказы, видимые вызывающему. statuses сужает выборку.
// Сотруднику по умолчанию возвращаются назначенные и выполняемые заказы.
func (s *Service) ListOrders(ctx context.Context, caller model.Identity, statuses []model.OrderStatus) ([]model.Order, error) {
	f := model.OrderFilter{Statuses: statuses}

	switch caller.Role {
	case model.RoleCustomer:
		f.CustomerID = caller.AccountID
	case model.RoleShopkeeper:
		f.ProviderOwnerID = caller.AccountID
	case model.RoleWorker:
		f.WorkerID = caller.AccountID
		if len(f.Statuses) == 0 {
			f.Statuses = []model.OrderStatus{model.OrderStatusAssigned, model.OrderStatusInProgress}
		}
	case model.RoleAdmin:
	default:
		return nil, apperr.New(apperr.KindForbidden, "role %s is not allowed", caller.Role)
	}

	orders, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// GetOrder возвращает заказ, если вызывающий является его участником или администратором.
func (s *Service) GetOrder(ctx context.Context, caller model.Identity, orderID string) (*model.Order, error) {
	o, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	allowed := false
	switch caller.Role {
	case model.RoleAdmin:
		allowed = true
	case model.RoleCustomer:
		allowed = o.CustomerID == caller.AccountID
	case model.RoleShopkeeper:
		allowed = o.ProviderOwnerID == caller.AccountID
	case model.RoleWorker:
		allowed = o.Assignment.WorkerID == caller.AccountID
	}
	if !allowed {
		return nil, apperr.New(apperr.KindForbidden, "order %s is not visible to caller", o.ID)
	}
	return o, nil
}
