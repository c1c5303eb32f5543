package service

import (
	"context"

	"github.com/mmeshcher/hazirhay-backend/internal/apperr"
	"github.com/mmeshcher/hazirhay-backend/internal/model"
)

// ListNotifications возвращает уведомления вызывающего, новые первыми.
func (s *Service) ListNotifications(ctx context.Context, caller model.Identity) ([]model.Notification, error) {
	res, err := s.repo.ListNotifications(ctx, caller.AccountID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if res == nil {
		res = []model.Notification{}
	}
	return res, nil
}

// MarkNotificationsSeen помечает уведомления вызывающего прочитанными.
func (s *Service) MarkNotificationsSeen(ctx context.Context, caller model.Identity, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, apperr.New(apperr.KindInvalidArgument, "notification ids are required")
	}
	n, err := s.repo.MarkNotificationsSeen(ctx, caller.AccountID, ids)
	if err != nil {
		return 0, mapRepoErr(err)
	}
	return n, nil
}

// DeleteNotification удаляет уведомление вызывающего.
func (s *Service) DeleteNotification(ctx context.Context, caller model.Identity, id string) error {
	return mapRepoErr(s.repo.DeleteNotification(ctx, caller.AccountID, id))
}

// ClearNotifications удаляет все уведомления вызывающего.
func (s *Service) ClearNotifications(ctx context.Context, caller model.Identity) (int64, error) {
	n, err := s.repo.ClearNotifications(ctx, caller.AccountID)
	if err != nil {
		return 0, mapRepoErr(err)
	}
	return n, nil
}
