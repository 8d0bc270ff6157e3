package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

// Destination is a user-declared outbound HTTP target for lead delivery.
// AuthConfig's shape depends on AuthType: BASIC carries username/password,
// BEARER carries token, API_KEY carries header_name/api_key, CUSTOM carries
// an arbitrary headers map. The signing secret keys the HMAC signature on
// every outbound body.
type Destination struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID     uuid.UUID        `gorm:"column:account_id;type:uuid;not null"`
	Name          string           `gorm:"column:name;not null"`
	URL           string           `gorm:"column:url;not null"`
	Method        enums.HTTPMethod `gorm:"column:method;type:http_method;not null;default:'POST'"`
	Headers       types.FieldMap   `gorm:"column:headers;type:jsonb"`
	AuthType      enums.AuthType   `gorm:"column:auth_type;type:auth_type;not null;default:'NONE'"`
	AuthConfig    types.FieldMap   `gorm:"column:auth_config;type:jsonb"`
	SigningSecret string           `gorm:"column:signing_secret;not null"`
	RetryCount    int              `gorm:"column:retry_count;not null;default:3"`
	TimeoutMS     int              `gorm:"column:timeout_ms;not null;default:30000"`
	IsActive      bool             `gorm:"column:is_active;not null;default:true"`
	LastSuccessAt *time.Time       `gorm:"column:last_success_at"`
	LastFailureAt *time.Time       `gorm:"column:last_failure_at"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// Timeout returns the configured delivery timeout.
func (d Destination) Timeout() time.Duration {
	return time.Duration(d.TimeoutMS) * time.Millisecond
}
