package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

func TestNotificationInbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := model.Identity{AccountID: "u1", Role: model.RoleCustomer}

	for _, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, f.repo.CreateNotification(ctx, &model.Notification{ID: id, Type: "order", Message: id, UserID: "u1"}))
	}
	require.NoError(t, f.repo.CreateNotification(ctx, &model.Notification{ID: "other", UserID: "u2"}))

	list, err := f.svc.ListNotifications(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "n3", list[0].ID)

	n, err := f.svc.MarkNotificationsSeen(ctx, user, []string{"n1", "n2", "other"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = f.svc.MarkNotificationsSeen(ctx, user, nil)
	requireKind(t, err, apperr.KindInvalidArgument)

	err = f.svc.DeleteNotification(ctx, user, "other")
	requireKind(t, err, apperr.KindNotFound)

	require.NoError(t, f.svc.DeleteNotification(ctx, user, "n1"))

	cleared, err := f.svc.ClearNotifications(ctx, user)
	require.NoError(t, err)
	assert.EqualValues(t, 2, cleared)

	list, err = f.svc.ListNotifications(ctx, user)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
