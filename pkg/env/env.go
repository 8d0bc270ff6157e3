// Package env provides fallback-aware environment lookups for the handful
// of settings read before envconfig-managed configuration is available,
// such as the log format the logger needs at construction time.
package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key, or fallback when the variable is
// unset or blank.
func Get(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
