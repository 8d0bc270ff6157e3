package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/leadrelay/leadrelay-backend/api/responses"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
	"github.com/leadrelay/leadrelay-backend/pkg/logger"
)

// ServiceAuth guards the management API with a shared service token carried
// as a bearer credential. An empty configured token disables the guard,
// which is only acceptable in dev.
func ServiceAuth(token string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			presented := bearerToken(r)
			if presented == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
