package middleware

// identity.go holds the context keys JWTAuth writes and the accessor
// handlers and the rate limiter read them through.

import "github.com/labstack/echo/v4"

const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// CurrentUser returns the authenticated user ID and role, or empty strings
// for anonymous requests.
func CurrentUser(c echo.Context) (userID, role string) {
    userID, _ = c.Get(ctxUserID).(string)
    role, _ = c.Get(ctxRole).(string)
    return userID, role
}
