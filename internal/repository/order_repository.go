package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shinyyama/foodrescue-backend/internal/model"
	"gorm.io/gorm"
)

var (
	// ErrStockExhausted means the conditional decrement matched no row because
	// fewer units remain than were requested.
	ErrStockExhausted = errors.New("stock_exhausted")
	// ErrPackClosed means the conditional decrement matched no row although
	// stock remains: the pack or its establishment stopped being purchasable.
	ErrPackClosed = errors.New("pack_closed")
)

type ReminderKind string

const (
	Reminder24h ReminderKind = "24h"
	Reminder2h  ReminderKind = "2h"
)

func (k ReminderKind) column() string {
	if k == Reminder2h {
		return "reminder_2h_sent_at"
	}
	return "reminder_24h_sent_at"
}

type OrderRepository interface {
	// CreateReserved decrements the pack and inserts the order in one transaction.
	CreateReserved(ctx context.Context, o *model.Order, now time.Time) error
	FindByID(ctx context.Context, id string) (*model.Order, error)
	// Transition moves the order from one status to another and applies updates.
	// It returns false when the order was no longer in the from status.
	Transition(ctx context.Context, id string, from, to model.OrderStatus, updates map[string]interface{}) (bool, error)
	// CancelAndRestock cancels the order if it is in one of the given statuses
	// and returns its quantity to the pack in the same transaction.
	CancelAndRestock(ctx context.Context, o *model.Order, from []model.OrderStatus, reason string, at time.Time) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id, paymentStatus string) error
	SetPreference(ctx context.Context, id, preferenceID, checkoutURL string) error
	ListByUser(ctx context.Context, userUID string) ([]model.Order, error)
	ListByEstablishment(ctx context.Context, establishmentID uint64, status model.OrderStatus) ([]model.Order, error)
	CountByPack(ctx context.Context, packID uint64) (int64, error)
	ListReminderCandidates(ctx context.Context, kind ReminderKind, statuses []model.OrderStatus, after, until time.Time) ([]model.Order, error)
	// ClaimReminder marks the reminder as sent; false means another sweep already did.
	ClaimReminder(ctx context.Context, id string, kind ReminderKind, at time.Time) (bool, error)
	EachBatch(ctx context.Context, size int, fn func(batch []model.Order) error) error
	SetDB(db *gorm.DB)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateReserved(ctx context.Context, o *model.Order, now time.Time) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Pack{}).
			Where("id = ? AND quantity >= ?", o.PackID, o.Quantity).
			Where("is_active = ? AND available_from <= ? AND available_until >= ?", true, now, now).
			Where("EXISTS (SELECT 1 FROM establishments e WHERE e.id = packs.establishment_id AND e.is_active = ? AND e.verification_status = ?)",
				true, model.VerificationApproved).
			Update("quantity", gorm.Expr("quantity - ?", o.Quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var p model.Pack
			if err := tx.Select("id", "quantity").First(&p, o.PackID).Error; err != nil {
				return err
			}
			if p.Quantity < o.Quantity {
				return ErrStockExhausted
			}
			return ErrPackClosed
		}
		return tx.Create(o).Error
	})
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*model.Order, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var o model.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) Transition(ctx context.Context, id string, from, to model.OrderStatus, updates map[string]interface{}) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	fields := map[string]interface{}{"status": to}
	for k, v := range updates {
		fields[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) CancelAndRestock(ctx context.Context, o *model.Order, from []model.OrderStatus, reason string, at time.Time) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	cancelled := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Order{}).
			Where("id = ? AND status IN ?", o.ID, from).
			Updates(map[string]interface{}{
				"status":        model.OrderStatusCancelled,
				"cancelled_at":  at,
				"cancel_reason": reason,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Model(&model.Pack{}).
			Where("id = ?", o.PackID).
			Update("quantity", gorm.Expr("quantity + ?", o.Quantity)).Error; err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return cancelled, nil
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id, paymentStatus string) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Update("payment_status", paymentStatus).Error
}

func (r *orderRepository) SetPreference(ctx context.Context, id, preferenceID, checkoutURL string) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"payment_preference_id": preferenceID,
			"checkout_url":          checkoutURL,
		}).Error
}

func (r *orderRepository) ListByUser(ctx context.Context, userUID string) ([]model.Order, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Order
	if err := r.db.WithContext(ctx).
		Where("user_uid = ?", userUID).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepository) ListByEstablishment(ctx context.Context, establishmentID uint64, status model.OrderStatus) ([]model.Order, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Order
	q := r.db.WithContext(ctx).Where("establishment_id = ?", establishmentID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("pickup_date ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepository) CountByPack(ctx context.Context, packID uint64) (int64, error) {
	if r.db == nil {
		return 0, ErrDBNotReady
	}
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("pack_id = ?", packID).
		Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *orderRepository) ListReminderCandidates(ctx context.Context, kind ReminderKind, statuses []model.OrderStatus, after, until time.Time) ([]model.Order, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Order
	if err := r.db.WithContext(ctx).
		Where("status IN ?", statuses).
		Where("pickup_date > ? AND pickup_date <= ?", after, until).
		Where(kind.column() + " IS NULL").
		Order("pickup_date ASC").
		Limit(500).
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *orderRepository) ClaimReminder(ctx context.Context, id string, kind ReminderKind, at time.Time) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Where(kind.column()+" IS NULL").
		Update(kind.column(), at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *orderRepository) EachBatch(ctx context.Context, size int, fn func(batch []model.Order) error) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	var batch []model.Order
	return r.db.WithContext(ctx).
		FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}

func (r *orderRepository) SetDB(db *gorm.DB) {
	r.db = db
}
