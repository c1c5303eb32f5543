package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/service"
)

type registerRequest struct {
	Role     model.Role `json:"role" validate:"required,oneof=customer shopkeeper"`
	Name     string     `json:"name" validate:"required,max=100"`
	Email    string     `json:"email" validate:"required,email"`
	Phone    string     `json:"phone" validate:"omitempty,phone"`
	Password string     `json:"password" validate:"required,min=6,max=72"`
	Picture  string     `json:"picture" validate:"omitempty,url"`
}

type loginRequest struct {
	Role       model.Role `json:"role" validate:"required,oneof=customer shopkeeper worker admin"`
	Credential string     `json:"credential" validate:"required"`
	Password   string     `json:"password" validate:"required"`
}

type accountResponse struct {
	ID         string     `json:"id"`
	Role       model.Role `json:"role"`
	Name       string     `json:"name"`
	Email      string     `json:"email,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Picture    string     `json:"picture,omitempty"`
	IsVerified bool       `json:"isVerified"`
	CreatedAt  string     `json:"createdAt"`
}

func toAccountResponse(a *model.Account) accountResponse {
	return accountResponse{
		ID:         a.ID,
		Role:       a.Role,
		Name:       a.Name,
		Email:      a.Email,
		Phone:      a.Phone,
		Picture:    a.Picture,
		IsVerified: a.IsVerified,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

type tokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt string     `json:"expiresAt"`
	AccountID string     `json:"accountId"`
	Role      model.Role `json:"role"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request, id model.Identity) (tokenResponse, bool) {
	token, expireAt, err := h.authMiddleware.IssueToken(id)
	if err != nil {
		h.writeError(w, r, "issue token", err)
		return tokenResponse{}, false
	}
	return tokenResponse{
		Token:     token,
		ExpiresAt: expireAt.Format(time.RFC3339),
		AccountID: id.AccountID,
		Role:      id.Role,
	}, true
}

// Register регистрирует клиента или владельца магазина и сразу выдаёт токен.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	account, err := h.service.Register(r.Context(), service.RegisterInput{
		Role:     req.Role,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Picture:  req.Picture,
	})
	if err != nil {
		h.writeError(w, r, "register", err)
		return
	}

	token, ok := h.issueToken(w, r, model.Identity{AccountID: account.ID, Role: account.Role})
	if !ok {
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		Account accountResponse `json:"account"`
		tokenResponse
	}{
		Account:       toAccountResponse(account),
		tokenResponse: token,
	})
}

// Login проверяет учётные данные и выдаёт токен.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	id, err := h.service.Login(r.Context(), req.Role, req.Credential, req.Password)
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}

	token, ok := h.issueToken(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, token)
}

// Me возвращает учётную запись вызывающего.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

type verifyRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}

// VerifyAccount выставляет признак верификации учётной записи.
func (h *Handler) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.VerifyAccount(r.Context(), id, chi.URLParam(r, "id"), *req.Verified); err != nil {
		h.writeError(w, r, "verify account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
