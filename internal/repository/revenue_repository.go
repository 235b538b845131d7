package repository

import (
	"context"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RevenueRepository interface {
	Add(ctx context.Context, establishmentID uint64, amount decimal.Decimal) error
	Refund(ctx context.Context, establishmentID uint64, amount decimal.Decimal) error
	Payout(ctx context.Context, establishmentID uint64, amount decimal.Decimal) error
	Get(ctx context.Context, establishmentID uint64) (*model.EstablishmentRevenue, error)
	SetDB(db *gorm.DB)
}

type revenueRepository struct {
	db *gorm.DB
}

func NewRevenueRepository(db *gorm.DB) RevenueRepository {
	return &revenueRepository{db: db}
}

func (r *revenueRepository) Add(ctx context.Context, establishmentID uint64, amount decimal.Decimal) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "establishment_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":      gorm.Expr("amount + ?", amount),
			"orders_paid": gorm.Expr("orders_paid + 1"),
		}),
	}).Create(&model.EstablishmentRevenue{EstablishmentID: establishmentID, Amount: amount, OrdersPaid: 1}).Error
}

// Refund reverses a paid order. It fails with gorm.ErrRecordNotFound when the
// ledger holds less than amount.
func (r *revenueRepository) Refund(ctx context.Context, establishmentID uint64, amount decimal.Decimal) error {
	return r.deduct(ctx, establishmentID, amount, map[string]interface{}{
		"amount":      gorm.Expr("amount - ?", amount),
		"orders_paid": gorm.Expr("GREATEST(orders_paid, 1) - 1"),
	})
}

// Payout moves amount from the balance to paid_out.
func (r *revenueRepository) Payout(ctx context.Context, establishmentID uint64, amount decimal.Decimal) error {
	return r.deduct(ctx, establishmentID, amount, map[string]interface{}{
		"amount":   gorm.Expr("amount - ?", amount),
		"paid_out": gorm.Expr("paid_out + ?", amount),
	})
}

func (r *revenueRepository) deduct(ctx context.Context, establishmentID uint64, amount decimal.Decimal, updates map[string]interface{}) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.EstablishmentRevenue{}).
		Where("establishment_id = ? AND amount >= ?", establishmentID, amount).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *revenueRepository) Get(ctx context.Context, establishmentID uint64) (*model.EstablishmentRevenue, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var rev model.EstablishmentRevenue
	if err := r.db.WithContext(ctx).
		Where("establishment_id = ?", establishmentID).
		FirstOrCreate(&rev, &model.EstablishmentRevenue{EstablishmentID: establishmentID}).Error; err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *revenueRepository) SetDB(db *gorm.DB) {
	r.db = db
}
