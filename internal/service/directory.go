package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/repository"
)

// PasswordHasher хэширует и проверяет пароли.
type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Compare(hash []byte, password string) error
}

// BcryptHasher хэширует пароли через bcrypt. Нулевая стоимость означает bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

// Hash возвращает bcrypt-хэш пароля.
func (h BcryptHasher) Hash(password string) ([]byte, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword([]byte(password), cost)
}

// Compare сверяет пароль с хэшем.
func (h BcryptHasher) Compare(hash []byte, password string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(password))
}

// roleResolver находит учётную запись роли по её учётному признаку и строит идентичность.
type roleResolver interface {
	findByCredential(ctx context.Context, credential string) (*model.Account, error)
	applyRole(a *model.Account) model.Identity
}

type emailResolver struct {
	repo AccountRepository
	role model.Role
}

func (r emailResolver) findByCredential(ctx context.Context, email string) (*model.Account, error) {
	return r.repo.GetAccountByEmail(ctx, r.role, strings.ToLower(strings.TrimSpace(email)))
}

func (r emailResolver) applyRole(a *model.Account) model.Identity {
	return model.Identity{AccountID: a.ID, Role: r.role}
}

// Сотрудники входят по номеру телефона.
type phoneResolver struct {
	repo AccountRepository
}

func (r phoneResolver) findByCredential(ctx context.Context, phone string) (*model.Account, error) {
	return r.repo.GetAccountByPhone(ctx, model.RoleWorker, strings.TrimSpace(phone))
}

func (r phoneResolver) applyRole(a *model.Account) model.Identity {
	return model.Identity{AccountID: a.ID, Role: model.RoleWorker}
}

func newRoleTable(repo AccountRepository) map[model.Role]roleResolver {
	return map[model.Role]roleResolver{
		model.RoleCustomer:   emailResolver{repo: repo, role: model.RoleCustomer},
		model.RoleShopkeeper: emailResolver{repo: repo, role: model.RoleShopkeeper},
		model.RoleAdmin:      emailResolver{repo: repo, role: model.RoleAdmin},
		model.RoleWorker:     phoneResolver{repo: repo},
	}
}

// RegisterInput содержит данные для регистрации клиента или владельца магазина.
type RegisterInput struct {
	Role     model.Role
	Name     string
	Email    string
	Phone    string
	Password string
	Picture  string
}

// Register создаёт учётную запись клиента или владельца магазина.
// Владелец магазина остаётся неверифицированным до решения администратора.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	if in.Role != model.RoleCustomer && in.Role != model.RoleShopkeeper {
		return nil, apperr.New(apperr.KindInvalidArgument, "role %q cannot self-register", in.Role)
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, apperr.New(apperr.KindInvalidArgument, "email and password are required")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, err, "hash password")
	}

	a := &model.Account{
		ID:           uuid.NewString(),
		Role:         in.Role,
		Name:         in.Name,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        in.Phone,
		PasswordHash: hash,
		Picture:      in.Picture,
		IsVerified:   in.Role == model.RoleCustomer,
	}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, mapRepoErr(err)
	}

	msg := customerSignupMessage(a.Name)
	if a.Role == model.RoleShopkeeper {
		msg = shopkeeperSignupMessage(a.Name)
	}
	s.notify(ctx, model.Notification{Type: notificationTypeAccount, Message: msg, UserID: a.ID})

	return a, nil
}

// EnsureAdmin создаёт учётную запись администратора, если её ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	_, err := s.repo.GetAccountByEmail(ctx, model.RoleAdmin, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return fmt.Errorf("get admin: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	err = s.repo.CreateAccount(ctx, &model.Account{
		ID:           uuid.NewString(),
		Role:         model.RoleAdmin,
		Name:         "admin",
		Email:        email,
		PasswordHash: hash,
		IsVerified:   true,
	})
	if err != nil && !errors.Is(err, repository.ErrAccountExists) {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// Login проверяет учётные данные роли и возвращает идентичность вызывающего.
// credential: email для клиентов, владельцев и администраторов, телефон для сотрудников.
func (s *Service) Login(ctx context.Context, role model.Role, credential, password string) (model.Identity, error) {
	resolver, ok := s.roles[role]
	if !ok {
		return model.Identity{}, apperr.New(apperr.KindInvalidArgument, "unknown role %q", role)
	}

	a, err := resolver.findByCredential(ctx, credential)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return model.Identity{}, apperr.New(apperr.KindForbidden, "invalid credentials")
		}
		return model.Identity{}, mapRepoErr(err)
	}

	if err := s.hasher.Compare(a.PasswordHash, password); err != nil {
		return model.Identity{}, apperr.New(apperr.KindForbidden, "invalid credentials")
	}

	return resolver.applyRole(a), nil
}

// GetAccount возвращает учётную запись вызывающего.
func (s *Service) GetAccount(ctx context.Context, caller model.Identity) (*model.Account, error) {
	a, err := s.repo.GetAccount(ctx, caller.AccountID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return a, nil
}

// VerifyAccount выставляет признак верификации учётной записи. Доступно только администратору.
func (s *Service) VerifyAccount(ctx context.Context, caller model.Identity, accountID string, verified bool) error {
	if err := requireRole(caller, model.RoleAdmin); err != nil {
		return err
	}

	a, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return mapRepoErr(err)
	}

	if err := s.repo.SetAccountVerified(ctx, accountID, verified); err != nil {
		return mapRepoErr(err)
	}

	if a.Role == model.RoleShopkeeper {
		msg := shopkeeperVerifiedMessage()
		if !verified {
			msg = shopkeeperDeclinedMessage()
		}
		s.notify(ctx, model.Notification{Type: notificationTypeAccount, Message: msg, UserID: a.ID})
	}
	return nil
}
