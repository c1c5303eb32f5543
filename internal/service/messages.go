package service

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Типы уведомлений.
const (
	notificationTypeAccount = "account"
	notificationTypeRequest = "request"
	notificationTypeOrder   = "order"
	notificationTypePayment = "payment"
	notificationTypeWorker  = "worker"
	notificationTypeReview  = "review"
)

// Клиент.

func customerSignupMessage(name string) string {
	return fmt.Sprintf("Welcome %s! Your account has been created successfully.", name)
}

func customerRequestSentMessage(service string) string {
	return fmt.Sprintf("Your request for %q has been sent to service providers.", service)
}

func customerRequestAcceptedMessage(shop string) string {
	return fmt.Sprintf("Your request has been accepted by %s!", shop)
}

func customerRequestRejectedMessage(shop string) string {
	return fmt.Sprintf("Your request has been declined by %s.", shop)
}

func customerOrderAssignedMessage(worker string) string {
	return fmt.Sprintf("Your order has been assigned to %s.", worker)
}

func customerOrderStartedMessage(orderID string) string {
	return fmt.Sprintf("Work on your order #%s has started.", orderID)
}

func customerOrderCompletedMessage(shop string) string {
	return fmt.Sprintf("Your order from %s has been completed!", shop)
}

func customerOrderCancelledMessage(shop string) string {
	return fmt.Sprintf("Your order has been cancelled by %s.", shop)
}

func customerPaymentMessage(amount decimal.Decimal) string {
	return fmt.Sprintf("Payment of Rs. %s received successfully.", amount.StringFixed(2))
}

// Владелец магазина.

func shopkeeperSignupMessage(name string) string {
	return fmt.Sprintf("Welcome %s! Your shopkeeper account is pending verification.", name)
}

func shopkeeperVerifiedMessage() string {
	return "Congratulations! Your account has been verified by admin."
}

func shopkeeperDeclinedMessage() string {
	return "Your verification request has been declined. Please contact support."
}

func shopkeeperNewRequestMessage(service string) string {
	return fmt.Sprintf("New request for %q.", service)
}

func shopkeeperOrderCompletedMessage(orderID string) string {
	return fmt.Sprintf("Order #%s has been marked as completed.", orderID)
}

func shopkeeperPaymentMessage(amount decimal.Decimal) string {
	return fmt.Sprintf("Payment of Rs. %s received for completed order.", amount.StringFixed(2))
}

func shopkeeperWorkerAddedMessage(worker string) string {
	return fmt.Sprintf("New worker %s has been added to your team.", worker)
}

func shopkeeperReviewMessage(name string, rate int) string {
	return fmt.Sprintf("%s left you a %d star review!", name, rate)
}

func shopkeeperCancelWarningMessage(count int) string {
	return fmt.Sprintf("You have cancelled %d accepted orders. One more cancellation will block your shop for a week.", count)
}

func shopkeeperBlockedMessage() string {
	return "Your shop has been temporarily blocked for cancelling too many accepted orders."
}

func shopkeeperUnassignedMessage(orderID string) string {
	return fmt.Sprintf("Order #%s is back in your queue and needs a worker.", orderID)
}

// Сотрудник.

func workerSignupMessage(name, shop string) string {
	return fmt.Sprintf("Welcome %s! You have been added as a worker at %s.", name, shop)
}

func workerOrderAssignedMessage(orderID string) string {
	return fmt.Sprintf("New order #%s has been assigned to you.", orderID)
}

func workerOrderCompletedMessage(orderID string) string {
	return fmt.Sprintf("Order #%s has been completed successfully.", orderID)
}

func workerOrderRemovedMessage(orderID string) string {
	return fmt.Sprintf("Order #%s is no longer assigned to you.", orderID)
}

func workerPaymentMessage(amount decimal.Decimal) string {
	return fmt.Sprintf("You received Rs. %s for completed work.", amount.StringFixed(2))
}
