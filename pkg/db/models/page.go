package models

import (
	"time"

	"github.com/google/uuid"
)

// Page represents a connected ad platform page that sources leads. Pages are
// created and managed by the configuration surfaces; the delivery engine
// treats them as read-only.
type Page struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID      uuid.UUID `gorm:"column:account_id;type:uuid;not null"`
	PlatformPageID string    `gorm:"column:platform_page_id;uniqueIndex;not null"`
	Name           string    `gorm:"column:name;not null"`
	AccessToken    string    `gorm:"column:access_token;not null"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
