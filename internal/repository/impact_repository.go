package repository

import (
	"context"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ImpactRepository interface {
	Add(ctx context.Context, uid string, packs int64, co2Kg float64) error
	Get(ctx context.Context, uid string) (*model.UserImpact, error)
	SetDB(db *gorm.DB)
}

type impactRepository struct {
	db *gorm.DB
}

func NewImpactRepository(db *gorm.DB) ImpactRepository {
	return &impactRepository{db: db}
}

func (r *impactRepository) Add(ctx context.Context, uid string, packs int64, co2Kg float64) error {
	if packs <= 0 {
		return nil
	}
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"packs_rescued":    gorm.Expr("packs_rescued + ?", packs),
			"co2_avoided_kg":   gorm.Expr("co2_avoided_kg + ?", co2Kg),
			"orders_picked_up": gorm.Expr("orders_picked_up + 1"),
		}),
	}).Create(&model.UserImpact{UID: uid, PacksRescued: packs, CO2AvoidedKg: co2Kg, OrdersPickedUp: 1}).Error
}

func (r *impactRepository) Get(ctx context.Context, uid string) (*model.UserImpact, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var imp model.UserImpact
	if err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		FirstOrCreate(&imp, &model.UserImpact{UID: uid}).Error; err != nil {
		return nil, err
	}
	return &imp, nil
}

func (r *impactRepository) SetDB(db *gorm.DB) {
	r.db = db
}
