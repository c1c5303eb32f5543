// Package model содержит доменные сущности сервиса HazirHay.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role описывает роль учётной записи.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleShopkeeper Role = "shopkeeper"
	RoleWorker     Role = "worker"
	RoleAdmin      Role = "admin"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleShopkeeper, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

// Identity описывает вызывающую сторону: учётную запись и её роль.
type Identity struct {
	AccountID string `json:"accountId"`
	Role      Role   `json:"role"`
}

// Account представляет учётную запись любой роли.
type Account struct {
	ID           string
	Role         Role
	Name         string
	Email        string
	Phone        string
	PasswordHash []byte
	Picture      string
	IsVerified   bool
	CreatedAt    time.Time
}

// Location описывает точку на карте: координаты [долгота, широта] и район.
type Location struct {
	Coordinates []float64 `json:"coordinates,omitempty"`
	Area        string    `json:"area,omitempty"`
}

// HasPoint сообщает, заданы ли координаты точки.
func (l Location) HasPoint() bool {
	return len(l.Coordinates) == 2
}

// SubCategory описывает подкатегорию услуги с ценой.
type SubCategory struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
}

// ServiceOffering описывает одну услугу в каталоге магазина.
type ServiceOffering struct {
	Category    string      `json:"category"`
	SubCategory SubCategory `json:"subCategory"`
}

// CartItem описывает услугу конкретного магазина, отложенную клиентом.
// Price фиксирует цену каталога на момент добавления.
type CartItem struct {
	ProviderID  string          `json:"providerId"`
	Category    string          `json:"category"`
	SubCategory string          `json:"subCategory"`
	Price       decimal.Decimal `json:"price"`
}

// Cart представляет корзину клиента.
type Cart struct {
	CustomerID string     `json:"customerId"`
	Items      []CartItem `json:"items"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Review описывает отзыв клиента о магазине.
type Review struct {
	Name string    `json:"name"`
	Msg  string    `json:"msg"`
	Rate int       `json:"rate"`
	Date time.Time `json:"date"`
}

// Provider представляет магазин (исполнителя услуг) и его счётчики отмен.
type Provider struct {
	ID                 string            `json:"id"`
	OwnerID            string            `json:"ownerId"`
	Name               string            `json:"name"`
	Address            string            `json:"address"`
	Picture            string            `json:"picture,omitempty"`
	ServicesOffered    []ServiceOffering `json:"servicesOffered"`
	Location           Location          `json:"location"`
	IsLive             bool              `json:"isLive"`
	IsVerified         bool              `json:"isVerified"`
	Reviews            []Review          `json:"reviews"`
	CancelRequestCount int               `json:"cancelRequestCount"`
	IsBlocked          bool              `json:"isBlocked"`
	BlockedAt          *time.Time        `json:"blockedAt"`
	CreatedAt          time.Time         `json:"createdAt"`
}

// Offering возвращает позицию каталога по категории и подкатегории.
func (p *Provider) Offering(category, subCategory string) (ServiceOffering, bool) {
	for _, s := range p.ServicesOffered {
		if s.Category == category && s.SubCategory.Name == subCategory {
			return s, true
		}
	}
	return ServiceOffering{}, false
}

// Worker представляет сотрудника магазина.
type Worker struct {
	ID              string    `json:"id"`
	ProviderID      string    `json:"providerId"`
	ProviderOwnerID string    `json:"providerOwnerId"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Picture         string    `json:"picture,omitempty"`
	IsBusy          bool      `json:"isBusy"`
	OrderCount      int       `json:"orderCount"`
	ActiveOrders    int       `json:"activeOrders"`
	Location        Location  `json:"location"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Transaction описывает расчёт по пачке выполненных заказов.
type Transaction struct {
	ID              string          `json:"id"`
	ProviderOwnerID string          `json:"providerOwnerId"`
	WorkerID        string          `json:"workerId"`
	CustomerID      string          `json:"customerId"`
	OrderIDs        []string        `json:"orderIds"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DeliveryCharge  decimal.Decimal `json:"deliveryCharge"`
	TotalPayable    decimal.Decimal `json:"totalPayable"`
	Date            time.Time       `json:"date"`
}

// Notification описывает уведомление пользователя.
type Notification struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Message    string    `json:"message"`
	UserID     string    `json:"userId"`
	CheckoutID string    `json:"checkoutId"`
	IsSeen     bool      `json:"isSeen"`
	CreatedAt  time.Time `json:"createdAt"`
}
