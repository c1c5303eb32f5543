package notification

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// Store сохраняет уведомления.
type Store interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Publisher публикует событие об уведомлении во внешнюю шину.
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
}

// Gateway пересылает уведомление во внешний push-сервис.
type Gateway interface {
	Send(ctx context.Context, n model.Notification) error
}

// Dispatcher доставляет уведомления всеми настроенными каналами.
// Ошибки доставки только логируются: вызывающая операция уже завершилась.
type Dispatcher struct {
	store     Store
	hub       *Hub
	publisher Publisher
	gateway   Gateway
	logger    *zap.Logger
}

// NewDispatcher создаёт диспетчер. hub может быть nil.
func NewDispatcher(store Store, hub *Hub, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:  store,
		hub:    hub,
		logger: logger,
	}
}

// SetPublisher подключает публикацию событий в шину.
func (d *Dispatcher) SetPublisher(p Publisher) {
	d.publisher = p
}

// SetGateway подключает пересылку в push-шлюз.
func (d *Dispatcher) SetGateway(g Gateway) {
	d.gateway = g
}

// Notify сохраняет уведомление и рассылает его. Если сохранить не удалось,
// уведомление никуда не отправляется.
func (d *Dispatcher) Notify(ctx context.Context, n model.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	if err := d.store.CreateNotification(ctx, &n); err != nil {
		d.logger.Error("failed to save notification",
			zap.String("user_id", n.UserID),
			zap.String("type", n.Type),
			zap.Error(err),
		)
		return
	}

	if d.hub != nil {
		d.hub.Push(ctx, n.UserID, n)
	}

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, n); err != nil {
			d.logger.Warn("failed to publish notification event",
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
		}
	}

	if d.gateway != nil {
		if err := d.gateway.Send(ctx, n); err != nil {
			d.logger.Warn("failed to forward notification to push gateway",
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
		}
	}
}
