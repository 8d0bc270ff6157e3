package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadrelay/leadrelay-backend/pkg/enums"
)

// DeliveryAttempt records one delivery try of a (lead, destination) pair.
// One row is created per executor invocation and updated in place on
// completion. NextRetryAt is set if and only if the status is RETRYING;
// the retry-worker scans on that column to recover pending retries after a
// restart.
type DeliveryAttempt struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DestinationID uuid.UUID            `gorm:"column:destination_id;type:uuid;not null;index"`
	LeadID        uuid.UUID            `gorm:"column:lead_id;type:uuid;not null;index"`
	Status        enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'PENDING'"`
	StatusCode    *int                 `gorm:"column:status_code"`
	ResponseBody  *string              `gorm:"column:response_body"`
	Error         *string              `gorm:"column:error"`
	AttemptNumber int                  `gorm:"column:attempt_number;not null;default:0"`
	NextRetryAt   *time.Time           `gorm:"column:next_retry_at;index"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	CompletedAt   *time.Time           `gorm:"column:completed_at"`

	Destination *Destination `gorm:"foreignKey:DestinationID"`
	Lead        *Lead        `gorm:"foreignKey:LeadID"`
}
