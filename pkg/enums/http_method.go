package enums

import "fmt"

// HTTPMethod restricts destination delivery to the supported verbs.
type HTTPMethod string

const (
	HTTPMethodPost  HTTPMethod = "POST"
	HTTPMethodPut   HTTPMethod = "PUT"
	HTTPMethodPatch HTTPMethod = "PATCH"
)

var validHTTPMethods = []HTTPMethod{
	HTTPMethodPost,
	HTTPMethodPut,
	HTTPMethodPatch,
}

// IsValid checks whether the given method matches the canonical enum.
func (m HTTPMethod) IsValid() bool {
	for _, candidate := range validHTTPMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseHTTPMethod converts raw strings into HTTPMethod.
func ParseHTTPMethod(value string) (HTTPMethod, error) {
	for _, candidate := range validHTTPMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid http method %q", value)
}
