package models

import (
	"time"

	"github.com/google/uuid"
)

// DestinationBinding associates a page with a destination. The binding's own
// active flag gates delivery independently of the destination's global flag.
type DestinationBinding struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DestinationID uuid.UUID `gorm:"column:destination_id;type:uuid;not null;uniqueIndex:idx_bindings_destination_page"`
	PageID        uuid.UUID `gorm:"column:page_id;type:uuid;not null;uniqueIndex:idx_bindings_destination_page"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`

	Destination *Destination `gorm:"foreignKey:DestinationID"`
	Page        *Page        `gorm:"foreignKey:PageID"`
}
