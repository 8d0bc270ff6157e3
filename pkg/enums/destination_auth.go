package enums

import "fmt"

// AuthType maps to the auth_type enum in Postgres and selects which
// credential shape a destination's auth_config must carry.
type AuthType string

const (
	AuthTypeNone   AuthType = "NONE"
	AuthTypeBasic  AuthType = "BASIC"
	AuthTypeBearer AuthType = "BEARER"
	AuthTypeAPIKey AuthType = "API_KEY"
	AuthTypeCustom AuthType = "CUSTOM"
)

var validAuthTypes = []AuthType{
	AuthTypeNone,
	AuthTypeBasic,
	AuthTypeBearer,
	AuthTypeAPIKey,
	AuthTypeCustom,
}

// IsValid checks whether the given type matches the canonical enum.
func (a AuthType) IsValid() bool {
	for _, candidate := range validAuthTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuthType converts raw strings into AuthType.
func ParseAuthType(value string) (AuthType, error) {
	for _, candidate := range validAuthTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auth type %q", value)
}
