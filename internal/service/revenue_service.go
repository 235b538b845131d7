package service

import (
	"context"
	"errors"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shinyyama/foodrescue-backend/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RevenueService interface {
	Get(ctx context.Context, establishmentID uint64, actor Actor) (*model.EstablishmentRevenue, error)
	Payout(ctx context.Context, establishmentID uint64, amount decimal.Decimal, actor Actor) (*model.EstablishmentRevenue, error)
}

type revenueService struct {
	repo           repository.RevenueRepository
	establishments repository.EstablishmentRepository
}

func NewRevenueService(repo repository.RevenueRepository, establishments repository.EstablishmentRepository) RevenueService {
	return &revenueService{repo: repo, establishments: establishments}
}

func (s *revenueService) Get(ctx context.Context, establishmentID uint64, actor Actor) (*model.EstablishmentRevenue, error) {
	if err := s.authorize(ctx, establishmentID, actor); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, establishmentID)
}

// Payout records money paid out to the establishment, lowering its balance.
func (s *revenueService) Payout(ctx context.Context, establishmentID uint64, amount decimal.Decimal, actor Actor) (*model.EstablishmentRevenue, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	if !amount.IsPositive() {
		return nil, invalid("amount", "must be positive")
	}
	if err := s.repo.Payout(ctx, establishmentID, amount); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("amount", "exceeds balance")
		}
		return nil, err
	}
	return s.repo.Get(ctx, establishmentID)
}

func (s *revenueService) authorize(ctx context.Context, establishmentID uint64, actor Actor) error {
	if actor.Admin {
		return nil
	}
	e, err := s.establishments.FindByID(ctx, establishmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !actor.Is(e.OwnerUID) {
		return ErrForbidden
	}
	return nil
}
