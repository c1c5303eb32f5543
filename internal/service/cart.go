package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// CartItemInput описывает услугу магазина, которую клиент откладывает в корзину.
type CartItemInput struct {
	ProviderID  string
	Category    string
	SubCategory string
}

// SaveCartItem добавляет услугу магазина в корзину клиента по текущей цене каталога.
func (s *Service) SaveCartItem(ctx context.Context, caller model.Identity, in CartItemInput) (*model.Cart, error) {
	if err := requireRole(caller, model.RoleCustomer); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ProviderID) == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "provider id is required")
	}
	if strings.TrimSpace(in.Category) == "" || strings.TrimSpace(in.SubCategory) == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "category and sub-category are required")
	}

	p, err := s.repo.GetProvider(ctx, in.ProviderID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	offering, ok := p.Offering(in.Category, in.SubCategory)
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "provider %s does not offer %s/%s", p.ID, in.Category, in.SubCategory)
	}

	cart, err := s.repo.GetCart(ctx, caller.AccountID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	for _, it := range cart.Items {
		if it.ProviderID == p.ID && it.Category == in.Category && it.SubCategory == in.SubCategory {
			return nil, apperr.New(apperr.KindConflict, "%s/%s from provider %s is already in cart", in.Category, in.SubCategory, p.ID)
		}
	}

	cart, err = s.repo.AddCartItem(ctx, caller.AccountID, model.CartItem{
		ProviderID:  p.ID,
		Category:    in.Category,
		SubCategory: in.SubCategory,
		Price:       offering.SubCategory.Price,
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return cart, nil
}

// GetCart возвращает корзину клиента.
func (s *Service) GetCart(ctx context.Context, caller model.Identity) (*model.Cart, error) {
	if err := requireRole(caller, model.RoleCustomer); err != nil {
		return nil, err
	}
	cart, err := s.repo.GetCart(ctx, caller.AccountID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return cart, nil
}

// ClearCart очищает корзину клиента.
func (s *Service) ClearCart(ctx context.Context, caller model.Identity) error {
	if err := requireRole(caller, model.RoleCustomer); err != nil {
		return err
	}
	return mapRepoErr(s.repo.ClearCart(ctx, caller.AccountID))
}

// cartTargets превращает корзину клиента в цели заказов. Цена берётся из текущего каталога,
// а магазин должен по-прежнему проходить отбор.
func (s *Service) cartTargets(ctx context.Context, customerID string) ([]orderTarget, error) {
	cart, err := s.repo.GetCart(ctx, customerID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if len(cart.Items) == 0 {
		return nil, apperr.New(apperr.KindInvalidArgument, "cart is empty")
	}

	targets := make([]orderTarget, 0, len(cart.Items))
	for _, it := range cart.Items {
		p, err := s.repo.GetProvider(ctx, it.ProviderID)
		if err != nil {
			return nil, mapRepoErr(err)
		}
		eligible := filterEligible([]model.Provider{*p}, it.Category, it.SubCategory)
		if len(eligible) == 0 {
			return nil, apperr.New(apperr.KindNotFound, "provider %s no longer accepts %s/%s", p.ID, it.Category, it.SubCategory)
		}
		offering, _ := p.Offering(it.Category, it.SubCategory)
		targets = append(targets, orderTarget{
			provider:    eligible[0],
			category:    it.Category,
			subCategory: it.SubCategory,
			price:       offering.SubCategory.Price,
		})
	}
	return targets, nil
}

func (s *Service) clearCartAfterCheckout(ctx context.Context, customerID string) {
	if err := s.repo.ClearCart(ctx, customerID); err != nil {
		s.logger.Warn("failed to clear cart after checkout", zap.String("customer_id", customerID), zap.Error(err))
	}
}
