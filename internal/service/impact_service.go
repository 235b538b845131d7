package service

import (
	"context"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
)

type ImpactService interface {
	Get(ctx context.Context, uid string) (*model.UserImpact, error)
}

type impactService struct {
	repo repository.ImpactRepository
}

func NewImpactService(repo repository.ImpactRepository) ImpactService {
	return &impactService{repo: repo}
}

func (s *impactService) Get(ctx context.Context, uid string) (*model.UserImpact, error) {
	if uid == "" {
		return nil, ErrNotFound
	}
	return s.repo.Get(ctx, uid)
}
