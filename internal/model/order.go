package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderStatusCompleted      OrderStatus = "COMPLETED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

var orderTransitions = map[OrderStatus]map[OrderStatus]struct{}{
	OrderStatusPending: {
		OrderStatusConfirmed:      {},
		OrderStatusReadyForPickup: {},
		OrderStatusCancelled:      {},
	},
	OrderStatusConfirmed: {
		OrderStatusReadyForPickup: {},
		OrderStatusCancelled:      {},
	},
	OrderStatusReadyForPickup: {
		OrderStatusCompleted: {},
	},
}

// CanTransition reports whether an order may move from current to next.
// Staying in the same status is not a transition.
func CanTransition(current, next OrderStatus) bool {
	allowed, ok := orderTransitions[current]
	if !ok {
		return false
	}
	_, ok = allowed[next]
	return ok
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// HoldsStock reports whether the order's quantity is still reserved against its pack.
func (s OrderStatus) HoldsStock() bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(s)
	switch st {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusReadyForPickup, OrderStatusCompleted, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

type Order struct {
	ID              string          `gorm:"primaryKey;size:36"`
	UserUID         string          `gorm:"column:user_uid;size:128;index;not null"`
	PackID          uint64          `gorm:"column:pack_id;index;not null"`
	EstablishmentID uint64          `gorm:"column:establishment_id;index;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:decimal(12,2);not null"`
	TotalAmount     decimal.Decimal `gorm:"column:total_amount;type:decimal(12,2);not null"`
	Currency        string          `gorm:"column:currency;size:8"`
	PickupDate      time.Time       `gorm:"column:pickup_date;index;not null"`
	Status          OrderStatus     `gorm:"column:status;size:32;index;not null"`

	PaymentPreferenceID string           `gorm:"column:payment_preference_id;size:255"`
	CheckoutURL         string           `gorm:"column:checkout_url;type:text"`
	PaymentID           string           `gorm:"column:payment_id;size:255;index"`
	PaymentStatus       string           `gorm:"column:payment_status;size:32"`
	PaymentMethod       string           `gorm:"column:payment_method;size:64"`
	PaidAmount          *decimal.Decimal `gorm:"column:paid_amount;type:decimal(12,2)"`
	PaidAt              *time.Time       `gorm:"column:paid_at"`

	ReadyAt      *time.Time `gorm:"column:ready_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at"`
	CancelReason string     `gorm:"column:cancel_reason;size:255"`

	// Reminder markers de-duplicate the pickup reminder sweep; they never imply a status.
	Reminder24hSentAt *time.Time `gorm:"column:reminder_24h_sent_at"`
	Reminder2hSentAt  *time.Time `gorm:"column:reminder_2h_sent_at"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
