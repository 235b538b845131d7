package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

// OpenPackFilter narrows the public listing. A zero bounding box disables the geo filter.
type OpenPackFilter struct {
	Category string
	MinLat   float64
	MaxLat   float64
	MinLng   float64
	MaxLng   float64
	Limit    int
	Offset   int
}

func (f OpenPackFilter) hasBox() bool {
	return f.MinLat != 0 || f.MaxLat != 0 || f.MinLng != 0 || f.MaxLng != 0
}

type PackRepository interface {
	Create(ctx context.Context, p *model.Pack) error
	// UpdateDetails writes the owner-editable columns and moves quantity by
	// delta. It never overwrites stock, image or CO2 columns.
	UpdateDetails(ctx context.Context, p *model.Pack, quantityDelta int) error
	SetImageURL(ctx context.Context, id uint64, url string) error
	SetCO2(ctx context.Context, id uint64, kg float64) error
	FindByID(ctx context.Context, id uint64) (*model.Pack, error)
	Delete(ctx context.Context, id uint64) error
	Deactivate(ctx context.Context, id uint64) error
	ListByEstablishment(ctx context.Context, establishmentID uint64, activeOnly bool) ([]model.Pack, error)
	ListOpen(ctx context.Context, now time.Time, f OpenPackFilter) ([]model.Pack, int64, error)
	SetDB(db *gorm.DB)
}

type packRepository struct {
	db *gorm.DB
}

func NewPackRepository(db *gorm.DB) PackRepository {
	return &packRepository{db: db}
}

func (r *packRepository) Create(ctx context.Context, p *model.Pack) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(p).Error
}

var packDetailColumns = []string{
	"title", "description", "original_price", "discounted_price",
	"available_from", "available_until", "pickup_time_start", "pickup_time_end",
	"updated_at",
}

func (r *packRepository) UpdateDetails(ctx context.Context, p *model.Pack, quantityDelta int) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Pack{}).
			Where("id = ?", p.ID).
			Select(packDetailColumns).
			Updates(p)
		if res.Error != nil {
			return res.Error
		}
		if quantityDelta == 0 {
			return nil
		}
		res = tx.Model(&model.Pack{}).
			Where("id = ? AND quantity + ? >= 0", p.ID, quantityDelta).
			Update("quantity", gorm.Expr("quantity + ?", quantityDelta))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStockExhausted
		}
		return nil
	})
}

func (r *packRepository) SetImageURL(ctx context.Context, id uint64, url string) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).
		Model(&model.Pack{}).
		Where("id = ?", id).
		Update("image_url", url).Error
}

func (r *packRepository) SetCO2(ctx context.Context, id uint64, kg float64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).
		Model(&model.Pack{}).
		Where("id = ?", id).
		Update("co2_saved_kg", kg).Error
}

func (r *packRepository) FindByID(ctx context.Context, id uint64) (*model.Pack, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var p model.Pack
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packRepository) Delete(ctx context.Context, id uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).Delete(&model.Pack{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *packRepository) Deactivate(ctx context.Context, id uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).
		Model(&model.Pack{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

func (r *packRepository) ListByEstablishment(ctx context.Context, establishmentID uint64, activeOnly bool) ([]model.Pack, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Pack
	q := r.db.WithContext(ctx).Where("establishment_id = ?", establishmentID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("available_from DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListOpen prefilters packs that can currently be purchased. Callers still run
// the eligibility evaluator on the result.
func (r *packRepository) ListOpen(ctx context.Context, now time.Time, f OpenPackFilter) ([]model.Pack, int64, error) {
	if r.db == nil {
		return nil, 0, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).
		Model(&model.Pack{}).
		Joins("JOIN establishments ON establishments.id = packs.establishment_id").
		Where("packs.is_active = ? AND packs.quantity > 0", true).
		Where("packs.available_from <= ? AND packs.available_until >= ?", now, now).
		Where("establishments.is_active = ? AND establishments.verification_status = ?", true, model.VerificationApproved)
	if f.Category != "" {
		q = q.Where("establishments.category = ?", f.Category)
	}
	if f.hasBox() {
		q = q.Where("establishments.latitude BETWEEN ? AND ?", f.MinLat, f.MaxLat).
			Where("establishments.longitude BETWEEN ? AND ?", f.MinLng, f.MaxLng)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var packs []model.Pack
	if err := q.Select("packs.*").
		Order("packs.available_until ASC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&packs).Error; err != nil {
		return nil, 0, err
	}
	return packs, total, nil
}

func (r *packRepository) SetDB(db *gorm.DB) {
	r.db = db
}
