package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/hazirhay-backend/internal/model"
	"github.com/mmeshcher/hazirhay-backend/internal/repository"
)

type recordingPublisher struct {
	events []model.Notification
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, n model.Notification) error {
	p.events = append(p.events, n)
	return p.err
}

type recordingGateway struct {
	sent []model.Notification
	err  error
}

func (g *recordingGateway) Send(_ context.Context, n model.Notification) error {
	g.sent = append(g.sent, n)
	return g.err
}

type failingStore struct{}

func (failingStore) CreateNotification(context.Context, *model.Notification) error {
	return errors.New("db down")
}

func TestDispatcher_Notify(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	hub := NewHub(nil)
	conn := &fakeConn{}
	hub.Register("u1", conn)

	pub := &recordingPublisher{}
	gw := &recordingGateway{}
	d := NewDispatcher(repo, hub, nil)
	d.SetPublisher(pub)
	d.SetGateway(gw)

	d.Notify(ctx, model.Notification{Type: "order", Message: "accepted", UserID: "u1", CheckoutID: "42"})

	stored, err := repo.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].ID)
	assert.False(t, stored[0].IsSeen)

	require.Len(t, conn.messages, 1)
	pushed, ok := conn.messages[0].(model.Notification)
	require.True(t, ok)
	assert.Equal(t, stored[0].ID, pushed.ID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, stored[0].ID, pub.events[0].ID)
	require.Len(t, gw.sent, 1)
	assert.Equal(t, "42", gw.sent[0].CheckoutID)
}

func TestDispatcher_LegFailuresAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	gw := &recordingGateway{}

	d := NewDispatcher(repo, nil, nil)
	d.SetPublisher(&recordingPublisher{err: errors.New("kafka down")})
	d.SetGateway(gw)

	d.Notify(ctx, model.Notification{Type: "order", UserID: "u1"})

	stored, err := repo.ListNotifications(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
	assert.Len(t, gw.sent, 1)
}

func TestDispatcher_StoreFailureStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	conn := &fakeConn{}
	hub.Register("u1", conn)
	pub := &recordingPublisher{}

	d := NewDispatcher(failingStore{}, hub, nil)
	d.SetPublisher(pub)

	d.Notify(context.Background(), model.Notification{Type: "order", UserID: "u1"})

	assert.Empty(t, conn.messages)
	assert.Empty(t, pub.events)
}

func TestEventMessage(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msg, err := eventMessage(model.Notification{
		ID:         "n1",
		Type:       "payment",
		Message:    "paid",
		UserID:     "u1",
		CheckoutID: "N/A",
		CreatedAt:  created,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("u1"), msg.Key)
	assert.True(t, msg.Time.Equal(created))

	var evt Event
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	assert.Equal(t, "n1", evt.NotificationID)
	assert.Equal(t, "payment", evt.Type)
	assert.Equal(t, "N/A", evt.CheckoutID)
}
