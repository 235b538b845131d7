package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pack is a surprise bundle of surplus food sold at a discount.
// Packs referenced by orders are deactivated instead of deleted.
type Pack struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	EstablishmentID uint64          `gorm:"column:establishment_id;index;not null"`
	Title           string          `gorm:"size:120;not null"`
	Description     string          `gorm:"type:text"`
	OriginalPrice   decimal.Decimal `gorm:"column:original_price;type:decimal(12,2);not null"`
	DiscountedPrice decimal.Decimal `gorm:"column:discounted_price;type:decimal(12,2);not null"`
	Quantity        int             `gorm:"column:quantity;not null;default:0"`
	AvailableFrom   time.Time       `gorm:"column:available_from;index;not null"`
	AvailableUntil  time.Time       `gorm:"column:available_until;index;not null"`
	PickupTimeStart string          `gorm:"column:pickup_time_start;size:5"`
	PickupTimeEnd   string          `gorm:"column:pickup_time_end;size:5"`
	ImageURL        *string         `gorm:"column:image_url;size:512"`
	CO2SavedKg      float64         `gorm:"column:co2_saved_kg;not null;default:0"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

func (Pack) TableName() string {
	return "packs"
}
