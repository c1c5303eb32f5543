package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// ComputeSettlement рассчитывает итог по пачке выполненных заказов одного магазина,
// сотрудника и клиента. Стоимость выезда берётся из первого заказа пачки.
func ComputeSettlement(orders []model.Order) (model.Transaction, error) {
	if len(orders) == 0 {
		return model.Transaction{}, apperr.New(apperr.KindInvalidArgument, "empty settlement batch")
	}

	first := orders[0]
	total := decimal.Zero
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		if o.ProviderOwnerID != first.ProviderOwnerID ||
			o.AssignedWorkerID() != first.AssignedWorkerID() ||
			o.CustomerID != first.CustomerID {
			return model.Transaction{}, apperr.New(apperr.KindInvalidArgument, "invalid batch: orders belong to different parties")
		}
		total = total.Add(o.Cost)
		ids = append(ids, o.ID)
	}

	delivery := first.ServiceCharges.DeliveryCharge()

	return model.Transaction{
		ProviderOwnerID: first.ProviderOwnerID,
		WorkerID:        first.AssignedWorkerID(),
		CustomerID:      first.CustomerID,
		OrderIDs:        ids,
		TotalAmount:     total,
		DeliveryCharge:  delivery,
		TotalPayable:    total.Add(delivery),
	}, nil
}

// Settle создаёт расчёт по пачке выполненных заказов.
// Вызвать может владелец магазина, назначенный сотрудник или администратор.
func (s *Service) Settle(ctx context.Context, caller model.Identity, orderIDs []string) (*model.Transaction, error) {
	ids, err := uniqueIDs(orderIDs)
	if err != nil {
		return nil, err
	}

	orders := make([]model.Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.loadOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if o.Status != model.OrderStatusCompleted {
			return nil, apperr.New(apperr.KindInvalidStateTransition, "order %s is %s, not completed", o.ID, o.Status)
		}
		orders = append(orders, *o)
	}

	t, err := ComputeSettlement(orders)
	if err != nil {
		return nil, err
	}

	switch {
	case caller.Role == model.RoleAdmin:
	case caller.Role == model.RoleShopkeeper && caller.AccountID == t.ProviderOwnerID:
	case caller.Role == model.RoleWorker && caller.AccountID == t.WorkerID:
	default:
		return nil, apperr.New(apperr.KindForbidden, "caller cannot settle these orders")
	}

	for _, o := range orders {
		if o.TransactionID != "" {
			return nil, apperr.New(apperr.KindConflict, "order %s is already settled", o.ID)
		}
	}

	t.ID = uuid.NewString()
	if err := s.repo.CreateTransaction(ctx, &t); err != nil {
		return nil, mapRepoErr(err)
	}

	checkout := orders[0].CheckoutID
	s.notify(ctx, model.Notification{Type: notificationTypePayment, Message: customerPaymentMessage(t.TotalPayable), UserID: t.CustomerID, CheckoutID: checkout})
	s.notify(ctx, model.Notification{Type: notificationTypePayment, Message: shopkeeperPaymentMessage(t.TotalPayable), UserID: t.ProviderOwnerID, CheckoutID: checkout})
	s.notify(ctx, model.Notification{Type: notificationTypePayment, Message: workerPaymentMessage(t.TotalPayable), UserID: t.WorkerID, CheckoutID: checkout})

	return &t, nil
}

// ListTransactions возвращает расчёты магазина. Владелец видит свои расчёты,
// администратор указывает владельца явно.
func (s *Service) ListTransactions(ctx context.Context, caller model.Identity, ownerID string) ([]model.Transaction, error) {
	switch caller.Role {
	case model.RoleShopkeeper:
		ownerID = caller.AccountID
	case model.RoleAdmin:
		if ownerID == "" {
			return nil, apperr.New(apperr.KindInvalidArgument, "provider owner id is required")
		}
	default:
		return nil, apperr.New(apperr.KindForbidden, "role %s is not allowed", caller.Role)
	}

	res, err := s.repo.ListTransactionsByProviderOwner(ctx, ownerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if res == nil {
		res = []model.Transaction{}
	}
	return res, nil
}
