package service

import (
	"context"
	"errors"
	"time"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/repository"
)

// ErrShopBlocked сопровождает отказ в действии заблокированному магазину.
var ErrShopBlocked = errors.New("shop temporarily blocked")

func blockedError() error {
	return apperr.Wrap(apperr.KindForbidden, ErrShopBlocked, ErrShopBlocked.Error())
}

// ProviderStatus описывает состояние ограничения отмен магазина.
type ProviderStatus struct {
	ProviderID         string     `json:"providerId"`
	CancelRequestCount int        `json:"cancelRequestCount"`
	IsBlocked          bool       `json:"isBlocked"`
	BlockedAt          *time.Time `json:"blockedAt"`
	BlockedUntil       *time.Time `json:"blockedUntil"`
}

// CancelResult содержит результат отмены заказов владельцем магазина.
type CancelResult struct {
	BatchResult
	CancelRequestCount int    `json:"cancelRequestCount"`
	Warning            bool   `json:"warning"`
	Message            string `json:"message,omitempty"`
}

// CheckProviderStatus возвращает состояние блокировки магазина.
// Истёкшая блокировка снимается при чтении вместе со сбросом счётчика отмен.
func (s *Service) CheckProviderStatus(ctx context.Context, providerID string) (*ProviderStatus, error) {
	p, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}

	now := s.now()
	if p.IsBlocked && p.BlockedAt != nil && now.Sub(*p.BlockedAt) >= s.blockDuration {
		if _, err := s.repo.ExpireBlock(ctx, p.ID, now.Add(-s.blockDuration)); err != nil {
			return nil, mapRepoErr(err)
		}
		if p, err = s.repo.GetProvider(ctx, providerID); err != nil {
			return nil, mapRepoErr(err)
		}
	}

	return s.statusOf(p), nil
}

func (s *Service) statusOf(p *model.Provider) *ProviderStatus {
	st := &ProviderStatus{
		ProviderID:         p.ID,
		CancelRequestCount: p.CancelRequestCount,
		IsBlocked:          p.IsBlocked,
		BlockedAt:          p.BlockedAt,
	}
	if p.IsBlocked && p.BlockedAt != nil {
		until := p.BlockedAt.Add(s.blockDuration)
		st.BlockedUntil = &until
	}
	return st
}

// ResetCancelCount безусловно снимает блокировку магазина и обнуляет счётчик отмен.
func (s *Service) ResetCancelCount(ctx context.Context, caller model.Identity, providerID string) (*ProviderStatus, error) {
	if err := requireRole(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.repo.ResetCancelState(ctx, providerID); err != nil {
		return nil, mapRepoErr(err)
	}
	p, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return s.statusOf(p), nil
}

// CancelOrders отменяет принятые заказы магазина вызывающего владельца.
//
// Каждый вызов, в котором есть хотя бы один отменяемый заказ, увеличивает счётчик отмен на единицу.
// На четвёртой отмене заказы отменяются с предупреждением. Пятая отмена блокирует магазин,
// а заказы этого вызова остаются принятыми. Заблокированный магазин ничего отменить не может.
func (s *Service) CancelOrders(ctx context.Context, caller model.Identity, ids []string) (*CancelResult, error) {
	if err := requireRole(caller, model.RoleShopkeeper); err != nil {
		return nil, err
	}
	ids, err := uniqueIDs(ids)
	if err != nil {
		return nil, err
	}

	p, err := s.ownProvider(ctx, caller)
	if err != nil {
		return nil, err
	}

	status, err := s.CheckProviderStatus(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if status.IsBlocked {
		return nil, blockedError()
	}

	res := &CancelResult{BatchResult: newBatchResult()}
	eligible := make([]*model.Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.loadOrder(ctx, id)
		if err != nil {
			res.fail(id, err)
			continue
		}
		if err := s.requireOwner(caller, o); err != nil {
			res.fail(id, err)
			continue
		}
		if o.Status != model.OrderStatusAccepted {
			res.fail(id, transitionError(o, "cancel"))
			continue
		}
		eligible = append(eligible, o)
	}

	if len(eligible) == 0 {
		first := res.Failed[0]
		return nil, apperr.New(first.Kind, "%s", first.Message)
	}

	count, err := s.repo.IncrementCancelCount(ctx, p.ID)
	if err != nil {
		if errors.Is(err, repository.ErrProviderBlocked) {
			return nil, blockedError()
		}
		return nil, mapRepoErr(err)
	}
	res.CancelRequestCount = count

	if count >= cancelBlockThreshold {
		if err := s.repo.BlockProvider(ctx, p.ID, s.now().UTC()); err != nil {
			return nil, mapRepoErr(err)
		}
		s.logger.Sugar().Infow("provider blocked for cancellations", "provider_id", p.ID, "count", count)
		s.notify(ctx, model.Notification{Type: notificationTypeAccount, Message: shopkeeperBlockedMessage(), UserID: p.OwnerID})
		return nil, blockedError()
	}

	for _, o := range eligible {
		if _, err := s.transition(ctx, o.ID, []model.OrderStatus{model.OrderStatusAccepted}, model.OrderStatusDeleted, nil); err != nil {
			res.fail(o.ID, err)
			continue
		}
		res.Succeeded = append(res.Succeeded, o.ID)
		s.notify(ctx, model.Notification{
			Type:       notificationTypeOrder,
			Message:    customerOrderCancelledMessage(p.Name),
			UserID:     o.CustomerID,
			CheckoutID: o.CheckoutID,
		})
	}

	if count == cancelWarningThreshold {
		res.Warning = true
		res.Message = shopkeeperCancelWarningMessage(count)
		s.notify(ctx, model.Notification{Type: notificationTypeAccount, Message: res.Message, UserID: p.OwnerID})
	}

	return res, nil
}
