package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// Event описывает сообщение о новом уведомлении в топике Kafka.
type Event struct {
	NotificationID string    `json:"notificationId"`
	Type           string    `json:"type"`
	UserID         string    `json:"userId"`
	CheckoutID     string    `json:"checkoutId"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

// KafkaPublisher публикует события уведомлений в топик Kafka.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher создаёт публикатора для брокеров brokers и топика topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish отправляет событие уведомления. Ключ сообщения: идентификатор получателя,
// поэтому события одного пользователя попадают в одну партицию.
func (p *KafkaPublisher) Publish(ctx context.Context, n model.Notification) error {
	msg, err := eventMessage(n)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Close дожидается отправки буферизованных сообщений и закрывает соединения.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func eventMessage(n model.Notification) (kafka.Message, error) {
	body, err := json.Marshal(Event{
		NotificationID: n.ID,
		Type:           n.Type,
		UserID:         n.UserID,
		CheckoutID:     n.CheckoutID,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(n.UserID),
		Value: body,
		Time:  n.CreatedAt,
	}, nil
}
