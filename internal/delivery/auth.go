package delivery

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/leadrelay/leadrelay-backend/pkg/enums"
	pkgerrors "github.com/leadrelay/leadrelay-backend/pkg/errors"
	"github.com/leadrelay/leadrelay-backend/pkg/types"
)

// Auth config keys by auth type.
const (
	authKeyUsername   = "username"
	authKeyPassword   = "password"
	authKeyToken      = "token"
	authKeyHeaderName = "header_name"
	authKeyAPIKey     = "api_key"
)

// ApplyAuth decorates the outbound request with the destination's credential
// scheme. CUSTOM treats the whole config as a header map.
func ApplyAuth(req *http.Request, authType enums.AuthType, config types.FieldMap) error {
	switch authType {
	case enums.AuthTypeNone, "":
		return nil
	case enums.AuthTypeBasic:
		username := config.Get(authKeyUsername)
		password := config.Get(authKeyPassword)
		if username == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "basic auth requires a username")
		}
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		req.Header.Set("Authorization", "Basic "+credentials)
		return nil
	case enums.AuthTypeBearer:
		token := config.Get(authKeyToken)
		if token == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "bearer auth requires a token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	case enums.AuthTypeAPIKey:
		name := config.Get(authKeyHeaderName)
		key := config.Get(authKeyAPIKey)
		if name == "" || key == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "api key auth requires header_name and api_key")
		}
		req.Header.Set(name, key)
		return nil
	case enums.AuthTypeCustom:
		for name, value := range config {
			if name == "" {
				continue
			}
			req.Header.Set(name, value)
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported auth type %q", authType))
	}
}
