package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает состояние заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusAccepted   OrderStatus = "accepted"
	OrderStatusRejected   OrderStatus = "rejected"
	OrderStatusAssigned   OrderStatus = "assigned"
	OrderStatusInProgress OrderStatus = "inProgress"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusDeleted    OrderStatus = "deleted"
)

// NonTerminalStatuses перечисляет состояния, из которых ещё возможен переход.
var NonTerminalStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusAssigned,
	OrderStatusInProgress,
}

// transitions перечисляет допустимые рёбра автомата состояний заказа.
var transitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusAccepted, OrderStatusRejected, OrderStatusDeleted},
	OrderStatusAccepted:   {OrderStatusAssigned, OrderStatusDeleted},
	OrderStatusAssigned:   {OrderStatusInProgress, OrderStatusAccepted, OrderStatusDeleted},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusDeleted},
}

// IsTerminal сообщает, является ли состояние конечным.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusRejected || s == OrderStatusDeleted
}

// CanTransition сообщает, допустим ли переход from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AssignmentStatus описывает состояние назначения исполнителя.
type AssignmentStatus string

const (
	AssignmentUnassigned AssignmentStatus = "unassigned"
	AssignmentAssigned   AssignmentStatus = "assigned"
)

// Assignment описывает назначение сотрудника на заказ.
type Assignment struct {
	WorkerID   string           `json:"workerId,omitempty"`
	AssignedAt *time.Time       `json:"assignedAt,omitempty"`
	Status     AssignmentStatus `json:"status"`
}

// ServiceCharges содержит параметры расчёта стоимости выезда.
type ServiceCharges struct {
	RatePerDistanceUnit decimal.Decimal `json:"ratePerDistanceUnit"`
	Distance            decimal.Decimal `json:"distance"`
}

// DeliveryCharge возвращает стоимость выезда: расстояние, умноженное на тариф.
func (c ServiceCharges) DeliveryCharge() decimal.Decimal {
	return c.Distance.Mul(c.RatePerDistanceUnit).Round(2)
}

// Order представляет заявку клиента, адресованную одному магазину.
type Order struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"orderId"`
	CheckoutID      string          `json:"checkoutId"`
	CustomerID      string          `json:"customerId"`
	ProviderID      string          `json:"providerId"`
	ProviderOwnerID string          `json:"providerOwnerId"`
	Category        string          `json:"category"`
	SubCategory     string          `json:"subCategory"`
	Location        Location        `json:"location"`
	Cost            decimal.Decimal `json:"cost"`
	ServiceCharges  ServiceCharges  `json:"serviceCharges"`
	Assignment      Assignment      `json:"assignment"`
	Status          OrderStatus     `json:"status"`
	TransactionID   string          `json:"transactionId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// AssignedWorkerID возвращает идентификатор назначенного сотрудника или пустую строку.
func (o *Order) AssignedWorkerID() string {
	if o.Assignment.Status != AssignmentAssigned {
		return ""
	}
	return o.Assignment.WorkerID
}

// OrderFilter задаёт условия выборки заказов. Пустые поля не участвуют в фильтре.
type OrderFilter struct {
	CustomerID      string
	ProviderOwnerID string
	WorkerID        string
	Statuses        []OrderStatus
}
