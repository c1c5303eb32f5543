package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/service"
)

type locationRequest struct {
	Coordinates []float64 `json:"coordinates" validate:"omitempty,coords"`
	Area        string    `json:"area" validate:"max=200"`
}

func (l locationRequest) toModel() model.Location {
	return model.Location{Coordinates: l.Coordinates, Area: l.Area}
}

type providerRequest struct {
	Name     string                  `json:"name" validate:"required,max=200"`
	Address  string                  `json:"address" validate:"required,max=500"`
	Picture  string                  `json:"picture" validate:"omitempty,url"`
	Services []model.ServiceOffering `json:"servicesOffered"`
	Location locationRequest         `json:"location"`
}

type catalogRequest struct {
	Services []model.ServiceOffering `json:"servicesOffered" validate:"required"`
}

type liveRequest struct {
	Live *bool `json:"isLive" validate:"required"`
}

type reviewRequest struct {
	Msg  string `json:"msg" validate:"required,max=1000"`
	Rate int    `json:"rate" validate:"required,min=1,max=5"`
}

type matchRequest struct {
	Category    string          `json:"category" validate:"required"`
	SubCategory string          `json:"subCategory" validate:"required"`
	Location    locationRequest `json:"location"`
}

// CreateProvider открывает магазин владельца.
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req providerRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.service.CreateProvider(r.Context(), id, service.ProviderInput{
		Name:     req.Name,
		Address:  req.Address,
		Picture:  req.Picture,
		Services: req.Services,
		Location: req.Location.toModel(),
	})
	if err != nil {
		h.writeError(w, r, "create provider", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProvider возвращает карточку магазина.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProvider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get provider", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetOwnProvider возвращает магазин вызывающего владельца.
func (h *Handler) GetOwnProvider(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetOwnProvider(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get own provider", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateCatalog заменяет каталог услуг магазина.
func (h *Handler) UpdateCatalog(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req catalogRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.service.UpdateCatalog(r.Context(), id, req.Services)
	if err != nil {
		h.writeError(w, r, "update catalog", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProviderLocation обновляет координаты магазина.
func (h *Handler) UpdateProviderLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req locationRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.UpdateProviderLocation(r.Context(), id, req.toModel()); err != nil {
		h.writeError(w, r, "update provider location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetProviderLive включает или выключает приём заявок магазином.
func (h *Handler) SetProviderLive(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req liveRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.SetProviderLive(r.Context(), id, *req.Live); err != nil {
		h.writeError(w, r, "set provider live", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddReview добавляет отзыв клиента о магазине.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	var req reviewRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.AddReview(r.Context(), id, chi.URLParam(r, "id"), req.Msg, req.Rate); err != nil {
		h.writeError(w, r, "add review", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// ProviderStatus возвращает состояние ограничения отмен магазина.
func (h *Handler) ProviderStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.CheckProviderStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "check provider status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ResetCancelCount снимает блокировку магазина и обнуляет счётчик отмен.
func (h *Handler) ResetCancelCount(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	st, err := h.service.ResetCancelCount(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "reset cancel count", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// MatchProviders подбирает магазины под услугу и точку клиента.
func (h *Handler) MatchProviders(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decode(w, r, &req) {
		return
	}

	providers, err := h.service.MatchProviders(r.Context(), service.MatchQuery{
		Category:    req.Category,
		SubCategory: req.SubCategory,
		Location:    req.Location.toModel(),
	})
	if err != nil {
		h.writeError(w, r, "match providers", err)
		return
	}
	if providers == nil {
		providers = []model.Provider{}
	}
	writeJSON(w, http.StatusOK, providers)
}

// EstimatePrice возвращает ориентир цены подкатегории.
func (h *Handler) EstimatePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	est, err := h.service.EstimatePrice(r.Context(), q.Get("category"), q.Get("subCategory"))
	if err != nil {
		h.writeError(w, r, "estimate price", err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}
