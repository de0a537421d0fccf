package middleware

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ErrNoIdentity is returned by UserIDFrom when the request carries no
// usable user id.
var ErrNoIdentity = errors.New("invalid user_id in context")

// UserIDFrom returns the authenticated user's id as stored by JWTAuth.
// Numeric claims arrive as float64 from JSON, string subjects as
// decimal text.
func UserIDFrom(c echo.Context) (uint64, error) {
	switch t := c.Get(ContextUserID).(type) {
	case uint64:
		return t, nil
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case float64:
		if t > 0 && t == float64(uint64(t)) {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, ErrNoIdentity
}

// RoleFrom returns the role claim, or "" when absent.
func RoleFrom(c echo.Context) string {
	role, _ := c.Get(ContextRole).(string)
	return role
}

// rateKeyUser names the caller for rate limiting.
func rateKeyUser(c echo.Context) string {
	if id, err := UserIDFrom(c); err == nil {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
