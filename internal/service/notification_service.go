package service

import (
	"context"
	"strings"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
)

var devicePlatforms = map[string]struct{}{"ios": {}, "android": {}, "web": {}}

type NotificationService interface {
	List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error)
	MarkAllRead(ctx context.Context, userUID string) error
	MarkByOrder(ctx context.Context, userUID, orderID string) error
	RegisterDevice(ctx context.Context, userUID, token, platform string) error
}

type notificationService struct {
	repo   repository.NotificationRepository
	tokens repository.DeviceTokenRepository
}

func NewNotificationService(repo repository.NotificationRepository, tokens repository.DeviceTokenRepository) NotificationService {
	return &notificationService{repo: repo, tokens: tokens}
}

func (s *notificationService) List(ctx context.Context, userUID string, unreadOnly bool, limit int) ([]model.Notification, int64, error) {
	if userUID == "" {
		return nil, 0, nil
	}
	list, err := s.repo.ListByUser(ctx, userUID, unreadOnly, limit)
	if err != nil {
		return nil, 0, err
	}
	cnt, err := s.repo.CountUnread(ctx, userUID)
	if err != nil {
		return list, 0, err
	}
	return list, cnt, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userUID string) error {
	if userUID == "" {
		return nil
	}
	return s.repo.MarkAllRead(ctx, userUID)
}

func (s *notificationService) MarkByOrder(ctx context.Context, userUID, orderID string) error {
	if userUID == "" || orderID == "" {
		return nil
	}
	return s.repo.MarkByOrder(ctx, userUID, orderID)
}

func (s *notificationService) RegisterDevice(ctx context.Context, userUID, token, platform string) error {
	if userUID == "" {
		return ErrForbidden
	}
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 512 {
		return invalid("token", "must be 1 to 512 characters")
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		platform = "web"
	}
	if _, ok := devicePlatforms[platform]; !ok {
		return invalid("platform", "must be ios, android or web")
	}
	return s.tokens.Upsert(ctx, &model.DeviceToken{UserUID: userUID, Token: token, Platform: platform})
}
