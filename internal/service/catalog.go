package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/validation"
)

// ProviderInput содержит данные для создания магазина.
type ProviderInput struct {
	Name     string
	Address  string
	Picture  string
	Services []model.ServiceOffering
	Location model.Location
}

// WorkerInput содержит данные для добавления сотрудника.
type WorkerInput struct {
	Name    string
	Phone   string
	Picture string
}

func validateServices(services []model.ServiceOffering) error {
	seen := make(map[[2]string]struct{}, len(services))
	for _, s := range services {
		if strings.TrimSpace(s.Category) == "" || strings.TrimSpace(s.SubCategory.Name) == "" {
			return apperr.New(apperr.KindInvalidArgument, "category and sub-category are required")
		}
		if s.SubCategory.Price.IsNegative() {
			return apperr.New(apperr.KindInvalidArgument, "price of %s/%s must not be negative", s.Category, s.SubCategory.Name)
		}
		key := [2]string{s.Category, s.SubCategory.Name}
		if _, ok := seen[key]; ok {
			return apperr.New(apperr.KindInvalidArgument, "duplicate service %s/%s", s.Category, s.SubCategory.Name)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func validateLocation(loc model.Location) error {
	if err := validation.Coordinates(loc.Coordinates); err != nil {
		return apperr.Wrap(apperr.KindInvalidArgument, err, err.Error())
	}
	return nil
}

// CreateProvider создаёт магазин вызывающего владельца.
func (s *Service) CreateProvider(ctx context.Context, caller model.Identity, in ProviderInput) (*model.Provider, error) {
	if err := requireRole(caller, model.RoleShopkeeper); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "shop name is required")
	}
	if err := validateServices(in.Services); err != nil {
		return nil, err
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, err
	}

	p := &model.Provider{
		ID:              uuid.NewString(),
		OwnerID:         caller.AccountID,
		Name:            in.Name,
		Address:         in.Address,
		Picture:         in.Picture,
		ServicesOffered: in.Services,
		Location:        in.Location,
	}
	if err := s.repo.CreateProvider(ctx, p); err != nil {
		return nil, mapRepoErr(err)
	}
	s.invalidatePrices(ctx, in.Services)

	return s.GetProvider(ctx, p.ID)
}

// GetProvider возвращает магазин по идентификатору.
func (s *Service) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	p, err := s.repo.GetProvider(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return p, nil
}

// ownProvider возвращает магазин вызывающего владельца.
func (s *Service) ownProvider(ctx context.Context, caller model.Identity) (*model.Provider, error) {
	if err := requireRole(caller, model.RoleShopkeeper); err != nil {
		return nil, err
	}
	p, err := s.repo.GetProviderByOwner(ctx, caller.AccountID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return p, nil
}

// GetOwnProvider возвращает магазин вызывающего владельца.
func (s *Service) GetOwnProvider(ctx context.Context, caller model.Identity) (*model.Provider, error) {
	return s.ownProvider(ctx, caller)
}

// UpdateCatalog заменяет список услуг магазина вызывающего владельца.
func (s *Service) UpdateCatalog(ctx context.Context, caller model.Identity, services []model.ServiceOffering) (*model.Provider, error) {
	p, err := s.ownProvider(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := validateServices(services); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCatalog(ctx, p.ID, services); err != nil {
		return nil, mapRepoErr(err)
	}
	s.invalidatePrices(ctx, p.ServicesOffered, services)
	return s.GetProvider(ctx, p.ID)
}

// UpdateProviderLocation меняет координаты магазина вызывающего владельца.
func (s *Service) UpdateProviderLocation(ctx context.Context, caller model.Identity, loc model.Location) error {
	p, err := s.ownProvider(ctx, caller)
	if err != nil {
		return err
	}
	if err := validateLocation(loc); err != nil {
		return err
	}
	return mapRepoErr(s.repo.UpdateProviderLocation(ctx, p.ID, loc))
}

// SetProviderLive включает или выключает приём заказов. Заблокированный магазин не может включиться.
func (s *Service) SetProviderLive(ctx context.Context, caller model.Identity, live bool) error {
	p, err := s.ownProvider(ctx, caller)
	if err != nil {
		return err
	}
	if live {
		status, err := s.CheckProviderStatus(ctx, p.ID)
		if err != nil {
			return err
		}
		if status.IsBlocked {
			return apperr.New(apperr.KindForbidden, "shop temporarily blocked")
		}
	}
	return mapRepoErr(s.repo.SetProviderLive(ctx, p.ID, live))
}

// AddReview добавляет отзыв клиента о магазине.
func (s *Service) AddReview(ctx context.Context, caller model.Identity, providerID, msg string, rate int) error {
	if err := requireRole(caller, model.RoleCustomer); err != nil {
		return err
	}
	if rate < 1 || rate > 5 {
		return apperr.New(apperr.KindInvalidArgument, "rate must be between 1 and 5")
	}

	a, err := s.repo.GetAccount(ctx, caller.AccountID)
	if err != nil {
		return mapRepoErr(err)
	}
	p, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		return mapRepoErr(err)
	}

	review := model.Review{Name: a.Name, Msg: msg, Rate: rate, Date: s.now().UTC()}
	if err := s.repo.AddReview(ctx, p.ID, review); err != nil {
		return mapRepoErr(err)
	}

	s.notify(ctx, model.Notification{
		Type:    notificationTypeReview,
		Message: shopkeeperReviewMessage(a.Name, rate),
		UserID:  p.OwnerID,
	})
	return nil
}

// CreateWorker добавляет сотрудника в магазин вызывающего владельца.
// Начальный пароль сотрудника совпадает с его номером телефона.
func (s *Service) CreateWorker(ctx context.Context, caller model.Identity, in WorkerInput) (*model.Worker, error) {
	p, err := s.ownProvider(ctx, caller)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "worker name is required")
	}
	if !validation.IsValidPhone(in.Phone) {
		return nil, apperr.New(apperr.KindInvalidArgument, "invalid phone number")
	}

	hash, err := s.hasher.Hash(in.Phone)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "hash password")
	}

	id := uuid.NewString()
	a := &model.Account{
		ID:           id,
		Role:         model.RoleWorker,
		Name:         in.Name,
		Phone:        in.Phone,
		PasswordHash: hash,
		Picture:      in.Picture,
		IsVerified:   true,
	}
	w := &model.Worker{
		ID:              id,
		ProviderID:      p.ID,
		ProviderOwnerID: p.OwnerID,
		Name:            in.Name,
		Phone:           in.Phone,
		Picture:         in.Picture,
	}
	if err := s.repo.CreateWorker(ctx, a, w); err != nil {
		return nil, mapRepoErr(err)
	}

	s.notify(ctx, model.Notification{Type: notificationTypeWorker, Message: workerSignupMessage(w.Name, p.Name), UserID: w.ID})
	s.notify(ctx, model.Notification{Type: notificationTypeWorker, Message: shopkeeperWorkerAddedMessage(w.Name), UserID: p.OwnerID})

	return w, nil
}

// ListWorkers возвращает сотрудников магазина вызывающего владельца.
func (s *Service) ListWorkers(ctx context.Context, caller model.Identity) ([]model.Worker, error) {
	p, err := s.ownProvider(ctx, caller)
	if err != nil {
		return nil, err
	}
	workers, err := s.repo.ListWorkersByProvider(ctx, p.ID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return workers, nil
}

// GetWorker возвращает карточку вызывающего сотрудника.
func (s *Service) GetWorker(ctx context.Context, caller model.Identity) (*model.Worker, error) {
	if err := requireRole(caller, model.RoleWorker); err != nil {
		return nil, err
	}
	w, err := s.repo.GetWorker(ctx, caller.AccountID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return w, nil
}

// UpdateWorkerLocation обновляет текущие координаты вызывающего сотрудника.
func (s *Service) UpdateWorkerLocation(ctx context.Context, caller model.Identity, loc model.Location) error {
	if err := requireRole(caller, model.RoleWorker); err != nil {
		return err
	}
	if err := validateLocation(loc); err != nil {
		return err
	}
	return mapRepoErr(s.repo.UpdateWorkerLocation(ctx, caller.AccountID, loc))
}
