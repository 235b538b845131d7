package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EstablishmentRevenue accumulates confirmed payments per establishment.
// Amount is the balance not yet paid out.
type EstablishmentRevenue struct {
	EstablishmentID uint64          `gorm:"column:establishment_id;primaryKey"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(14,2);not null;default:0"`
	PaidOut         decimal.Decimal `gorm:"column:paid_out;type:decimal(14,2);not null;default:0"`
	OrdersPaid      int64           `gorm:"column:orders_paid;not null;default:0"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
}

func (EstablishmentRevenue) TableName() string {
	return "establishment_revenues"
}

// UserImpact stores how much food a customer has rescued.
type UserImpact struct {
	UID            string    `gorm:"column:uid;primaryKey;size:128"`
	PacksRescued   int64     `gorm:"column:packs_rescued;not null;default:0"`
	CO2AvoidedKg   float64   `gorm:"column:co2_avoided_kg;not null;default:0"`
	OrdersPickedUp int64     `gorm:"column:orders_picked_up;not null;default:0"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (UserImpact) TableName() string {
	return "user_impacts"
}
