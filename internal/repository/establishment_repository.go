package repository

import (
	"context"
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"gorm.io/gorm"
)

type EstablishmentRepository interface {
	Create(ctx context.Context, e *model.Establishment) error
	Update(ctx context.Context, e *model.Establishment) error
	FindByID(ctx context.Context, id uint64) (*model.Establishment, error)
	FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Establishment, error)
	ListByOwner(ctx context.Context, ownerUID string) ([]model.Establishment, error)
	ListByStatus(ctx context.Context, status model.VerificationStatus, limit, offset int) ([]model.Establishment, int64, error)
	UpdateVerification(ctx context.Context, id uint64, status model.VerificationStatus, note string, at time.Time) error
	SetActive(ctx context.Context, id uint64, active bool) error
	SetDB(db *gorm.DB)
}

type establishmentRepository struct {
	db *gorm.DB
}

func NewEstablishmentRepository(db *gorm.DB) EstablishmentRepository {
	return &establishmentRepository{db: db}
}

func (r *establishmentRepository) Create(ctx context.Context, e *model.Establishment) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *establishmentRepository) Update(ctx context.Context, e *model.Establishment) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Save(e).Error
}

func (r *establishmentRepository) FindByID(ctx context.Context, id uint64) (*model.Establishment, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var e model.Establishment
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *establishmentRepository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Establishment, error) {
	out := make(map[uint64]model.Establishment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Establishment
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for _, e := range list {
		out[e.ID] = e
	}
	return out, nil
}

func (r *establishmentRepository) ListByOwner(ctx context.Context, ownerUID string) ([]model.Establishment, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Establishment
	if err := r.db.WithContext(ctx).
		Where("owner_uid = ?", ownerUID).
		Order("id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *establishmentRepository) ListByStatus(ctx context.Context, status model.VerificationStatus, limit, offset int) ([]model.Establishment, int64, error) {
	if r.db == nil {
		return nil, 0, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).Model(&model.Establishment{})
	if status != "" {
		q = q.Where("verification_status = ?", status)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Establishment
	if err := q.Order("created_at ASC").Limit(limit).Offset(offset).Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *establishmentRepository) UpdateVerification(ctx context.Context, id uint64, status model.VerificationStatus, note string, at time.Time) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Establishment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"verification_status": status,
			"verification_note":   note,
			"verified_at":         at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *establishmentRepository) SetActive(ctx context.Context, id uint64, active bool) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).
		Model(&model.Establishment{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

func (r *establishmentRepository) SetDB(db *gorm.DB) {
	r.db = db
}
