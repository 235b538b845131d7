package model

import "time"

type Notification struct {
	ID              uint64     `gorm:"primaryKey;autoIncrement"`
	UserUID         string     `gorm:"column:user_uid;size:128;index;not null"`
	Type            string     `gorm:"column:type;size:64;not null"`
	Title           string     `gorm:"column:title;size:255"`
	Body            string     `gorm:"column:body;type:text"`
	OrderID         *string    `gorm:"column:order_id;size:36;index"`
	EstablishmentID *uint64    `gorm:"column:establishment_id;index"`
	ReadAt          *time.Time `gorm:"column:read_at"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

// DeviceToken is an FCM registration token for a user's device.
type DeviceToken struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserUID   string    `gorm:"column:user_uid;size:128;index;not null"`
	Token     string    `gorm:"column:token;size:512;uniqueIndex;not null"`
	Platform  string    `gorm:"column:platform;size:16"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (DeviceToken) TableName() string {
	return "device_tokens"
}
