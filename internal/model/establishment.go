package model

import "time"

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return true
	}
	return false
}

type Establishment struct {
	ID                 uint64             `gorm:"primaryKey;autoIncrement"`
	OwnerUID           string             `gorm:"column:owner_uid;size:128;index;not null"`
	Name               string             `gorm:"size:120;not null"`
	Description        string             `gorm:"type:text"`
	Address            string             `gorm:"size:255;not null"`
	Phone              string             `gorm:"size:32"`
	Email              string             `gorm:"size:255"`
	Latitude           float64            `gorm:"column:latitude"`
	Longitude          float64            `gorm:"column:longitude"`
	Category           string             `gorm:"size:64;index"`
	VerificationStatus VerificationStatus `gorm:"column:verification_status;size:16;index;not null"`
	VerificationNote   string             `gorm:"column:verification_note;type:text"`
	VerifiedAt         *time.Time         `gorm:"column:verified_at"`
	IsActive           bool               `gorm:"column:is_active;not null;default:true"`
	CreatedAt          time.Time          `gorm:"autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime"`
}

func (Establishment) TableName() string {
	return "establishments"
}
